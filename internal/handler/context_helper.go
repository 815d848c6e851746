package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-portal/internal/middleware"
	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
	"github.com/noah-isme/classroom-portal/pkg/response"
)

// principalOrAbort returns the authenticated caller or writes a 401.
func principalOrAbort(c *gin.Context) (*models.Principal, bool) {
	principal := middleware.PrincipalFrom(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return principal, true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
