package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/helioslab/credgate/internal/service"
)

const subjectKey = "tokenSubject"

// Auth validates the Authorization header and attaches the token subject.
type Auth struct {
	Sessions *service.SessionService
}

// ValidateBearer ensures the request carries a valid access token.
func (m *Auth) ValidateBearer(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		abortAuth(c, service.ErrMissingAuthorization())
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		abortAuth(c, service.ErrMissingAuthorization())
		return
	}

	subject, err := m.Sessions.VerifyAccess(strings.TrimSpace(parts[1]))
	if err != nil {
		abortAuth(c, service.ErrInvalidAccessToken())
		return
	}

	c.Set(subjectKey, subject)
	c.Next()
}

// GetSubject exposes the verified token subject to handlers.
func GetSubject(c *gin.Context) (string, bool) {
	value, ok := c.Get(subjectKey)
	if !ok {
		return "", false
	}
	subject, ok := value.(string)
	return subject, ok
}

func abortAuth(c *gin.Context, err *service.AuthError) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Code, "error_description": err.Description})
}
