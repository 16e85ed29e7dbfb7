package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"clinic-console/internal/model"
	"clinic-console/internal/rest"
	"clinic-console/pkg/logger"
	"clinic-console/pkg/validator"
)

// Holder is the live bearer token handed to the rest client. It is
// split from Store so the client and the store can be constructed
// without a cycle.
type Holder struct {
	mu    sync.RWMutex
	token string
}

func NewHolder() *Holder {
	return &Holder{}
}

// Token implements rest.TokenSource.
func (h *Holder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *Holder) set(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

// Store holds the console's authentication state: the bearer token
// and the minimal identity of the signed-in user.
type Store struct {
	mu     sync.RWMutex
	client *rest.Client
	holder *Holder
	tokens TokenStore
	valid  *validator.Validator
	log    *logger.Logger

	session model.Session
}

func NewStore(client *rest.Client, holder *Holder, tokens TokenStore, log *logger.Logger) *Store {
	return &Store{
		client: client,
		holder: holder,
		tokens: tokens,
		valid:  validator.New(),
		log:    log,
	}
}

// Current returns a copy of the active session.
func (s *Store) Current() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Login authenticates against the backend. On success the token is
// persisted under the fixed storage key and the email used becomes
// the displayed identity; the backend returns no profile on login.
// On failure any prior session is left untouched.
func (s *Store) Login(ctx context.Context, email, password string) error {
	req := model.LoginRequest{Email: email, Password: password}
	if err := s.valid.Validate(req); err != nil {
		return err
	}

	var resp model.LoginResponse
	err := s.client.Post(ctx, "/auth/login", req, &resp)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("login: backend returned no token")
	}

	if err := s.tokens.Save(ctx, resp.Token); err != nil {
		s.log.Error(err, "failed to persist session token")
	}

	s.mu.Lock()
	s.session = model.Session{
		Token: resp.Token,
		User:  identityFromToken(resp.Token, email),
	}
	s.mu.Unlock()
	s.holder.set(resp.Token)

	s.log.Info("session established", "email", email)
	return nil
}

// Register submits a new account request. It does not authenticate
// the caller.
func (s *Store) Register(ctx context.Context, email, password string) error {
	if err := s.valid.Validate(model.LoginRequest{Email: email, Password: password}); err != nil {
		return err
	}

	req := model.RegisterRequest{Email: email, PasswordHash: password}
	if err := s.client.Post(ctx, "/auth/register", req, nil); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// Logout tears the session down without a backend call. The durable
// token is cleared so a restart does not resurrect it.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.session = model.Session{}
	s.mu.Unlock()
	s.holder.set("")

	if err := s.tokens.Clear(ctx); err != nil {
		s.log.Error(err, "failed to clear stored session token")
	}
}

// Restore loads a previously persisted token. Identity is re-derived
// from the token's claims; a token whose claims cannot be read still
// restores an authenticated session with unknown identity.
func (s *Store) Restore(ctx context.Context) error {
	token, err := s.tokens.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if token == "" {
		return nil
	}

	s.mu.Lock()
	s.session = model.Session{
		Token: token,
		User:  identityFromToken(token, ""),
	}
	s.mu.Unlock()
	s.holder.set(token)

	s.log.Info("session restored from stored token")
	return nil
}

// identityFromToken reads identity out of the JWT's claims without
// verifying the signature; verification is the backend's concern, the
// console only reads who the backend says the token belongs to. The
// auth service puts the email in the subject and the role in a "role"
// claim.
func identityFromToken(token, fallbackEmail string) model.User {
	user := model.User{Email: fallbackEmail}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return user
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		user.Email = sub
	}
	if role, ok := claims["role"].(string); ok {
		user.Role = role
	}
	if id, ok := claims["userId"].(string); ok {
		user.ID = id
	}
	return user
}
