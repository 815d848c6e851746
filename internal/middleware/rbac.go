package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
	"github.com/noah-isme/classroom-portal/pkg/response"
)

// RequireRoles lets the request through only for the listed roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		principal := PrincipalFrom(c)
		if principal == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[principal.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "this page is not available for your role"))
			c.Abort()
			return
		}
		c.Next()
	}
}
