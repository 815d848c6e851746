package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

// Envelope represents the common response contract shared with the upstream classroom API.
type Envelope struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message,omitempty"`
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Errors     []appErrors.FieldError `json:"errors,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// RedirectHeader tells the browser bundle where to navigate after an auth failure.
const RedirectHeader = "X-Portal-Redirect"

// LoginPath is the browser route shown after the session is cleared.
const LoginPath = "/login"

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	Message(c, status, "", data, pagination, meta...)
}

// Message sends a success response carrying a human readable message.
func Message(c *gin.Context, status int, message string, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Success: true, Message: message, Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, message string, data interface{}) {
	Message(c, http.StatusCreated, message, data, nil)
}

// Error sends an error response converting the error to the common structure.
// Field-scoped validation failures are rendered as an errors list only, never
// duplicated as a general error.
func Error(c *gin.Context, err error) {
	ErrorWithMeta(c, err, nil)
}

// ErrorWithMeta is Error carrying response metadata, such as the state of an
// open dialog that failed to submit.
func ErrorWithMeta(c *gin.Context, err error, meta map[string]interface{}) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Success: false, Message: appErr.Message, Meta: meta}
	switch appErrors.Classify(appErr) {
	case appErrors.KindValidation:
		envelope.Errors = appErr.Fields
	case appErrors.KindAuth:
		c.Header(RedirectHeader, LoginPath)
		envelope.Error = appErr
	default:
		envelope.Error = appErr
	}
	c.JSON(appErr.Status, envelope)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
