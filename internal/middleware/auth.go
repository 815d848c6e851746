package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
	"github.com/noah-isme/classroom-portal/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the authenticated caller.
const ContextPrincipalKey = "principal"

// StateHeader carries the id of a persisted application context.
const StateHeader = "X-Portal-State"

type authenticator interface {
	Authenticate(ctx context.Context, bearer, stateID string) (*models.Principal, error)
}

// Auth requires a bearer token or a persisted state id and attaches the caller
// to both the gin context and the request context.
func Auth(auth authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer, ok := BearerToken(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}
		stateID := strings.TrimSpace(c.GetHeader(StateHeader))
		if bearer == "" && stateID == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), bearer, stateID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextPrincipalKey, principal)
		c.Request = c.Request.WithContext(models.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// BearerToken extracts the token of an Authorization header. ok is false when
// a header is present but malformed.
func BearerToken(c *gin.Context) (token string, ok bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", true
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// PrincipalFrom returns the caller attached by Auth.
func PrincipalFrom(c *gin.Context) *models.Principal {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return nil
	}
	principal, _ := value.(*models.Principal)
	return principal
}
