package auth

import (
	"github.com/gin-gonic/gin"

	"clinic-console/internal/model"
	"clinic-console/internal/session"
	apperrors "clinic-console/pkg/errors"
	"clinic-console/pkg/httputil"
)

type Handler struct {
	sessions *session.Store
}

func NewHandler(sessions *session.Store) *Handler {
	return &Handler{sessions: sessions}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/register", h.Register)
		auth.POST("/logout", h.Logout)
		auth.GET("/session", h.Session)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("email and password are required"))
		return
	}

	if err := h.sessions.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		httputil.RespondWithError(c, apperrors.Unauthorized(err))
		return
	}
	httputil.RespondWithSuccess(c, h.sessions.Current())
}

func (h *Handler) Register(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("email and password are required"))
		return
	}

	if err := h.sessions.Register(c.Request.Context(), req.Email, req.Password); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"registered": true})
}

func (h *Handler) Logout(c *gin.Context) {
	h.sessions.Logout(c.Request.Context())
	httputil.RespondWithSuccess(c, gin.H{"authenticated": false})
}

func (h *Handler) Session(c *gin.Context) {
	current := h.sessions.Current()
	httputil.RespondWithSuccess(c, gin.H{
		"authenticated": current.Authenticated(),
		"user":          current.User,
	})
}
