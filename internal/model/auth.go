package model

// User is the minimal identity the console holds for the signed-in
// staff member. It is derived from the login form or from the stored
// token's claims, never from a profile endpoint.
type User struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session is the authenticated state of the console. An empty Token
// means no authenticated backend call can be made.
type Session struct {
	Token string `json:"-"`
	User  User   `json:"user"`
}

func (s Session) Authenticated() bool {
	return s.Token != ""
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// RegisterRequest provisions a backend account. PasswordHash is the
// transport field name the auth service expects for the raw password
// value; an empty value makes the backend assign its default.
type RegisterRequest struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	Role         string `json:"role,omitempty"`
}

type RegisterResponse struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}
