package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/helioslab/credgate/internal/config"
	"github.com/helioslab/credgate/internal/http/middleware"
	"github.com/helioslab/credgate/internal/service"
)

const refreshCookieName = "refresh_token"

// SessionHandler exposes the session flows over HTTP.
type SessionHandler struct {
	Sessions *service.SessionService
	cfg      config.Config
}

// NewSessionHandler creates the handler set.
func NewSessionHandler(sessions *service.SessionService, cfg config.Config) *SessionHandler {
	return &SessionHandler{Sessions: sessions, cfg: cfg}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account locally and on the identity provider and
// returns an access token. No refresh cookie is set on register.
func (h *SessionHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid payload."})
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Email and password are required."})
		return
	}

	result, err := h.Sessions.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Login authenticates the account and sets the refresh cookie alongside the
// access token in the body.
func (h *SessionHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid payload."})
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Email and password are required."})
		return
	}

	result, err := h.Sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, int(h.Sessions.RefreshTTLSeconds()))
	c.JSON(http.StatusOK, gin.H{"access_token": result.AccessToken})
}

// Refresh mints a new access token from the refresh cookie. The token is read
// from the cookie only, never from the body or a header.
func (h *SessionHandler) Refresh(c *gin.Context) {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || strings.TrimSpace(cookie) == "" {
		respondAuthError(c, service.ErrMissingRefreshToken())
		return
	}

	access, err := h.Sessions.Refresh(c.Request.Context(), cookie)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": access})
}

// Logout clears the refresh cookie. It always succeeds and verifies nothing.
func (h *SessionHandler) Logout(c *gin.Context) {
	h.setRefreshCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Me returns the account behind the verified bearer token.
func (h *SessionHandler) Me(c *gin.Context) {
	subject, ok := middleware.GetSubject(c)
	if !ok || strings.TrimSpace(subject) == "" {
		respondAuthError(c, service.ErrInvalidAccessToken())
		return
	}

	profile, err := h.Sessions.Me(c.Request.Context(), subject)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// Healthz is a liveness probe.
func (h *SessionHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SessionHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func respondAuthError(c *gin.Context, err error) {
	if authErr, ok := err.(*service.AuthError); ok {
		c.JSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Description})
		return
	}
	zap.L().Error("session flow failure", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
}
