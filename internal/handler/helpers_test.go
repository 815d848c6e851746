package handler

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-portal/internal/middleware"
	"github.com/noah-isme/classroom-portal/internal/models"
)

type responseEnvelope struct {
	Success    bool                     `json:"success"`
	Message    string                   `json:"message"`
	Data       interface{}              `json:"data"`
	Errors     []map[string]interface{} `json:"errors"`
	Error      map[string]interface{}   `json:"error"`
	Pagination map[string]interface{}   `json:"pagination"`
	Meta       map[string]interface{}   `json:"meta"`
}

func newContext(method, target string, body io.Reader, principal *models.Principal) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, body)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if principal != nil {
		c.Set(middleware.ContextPrincipalKey, principal)
	}
	return c, rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func studentPrincipal() *models.Principal {
	return &models.Principal{UserID: "stu-1", Role: models.RoleStudent, Token: "student-token", StateID: "state-1"}
}

func teacherPrincipal() *models.Principal {
	return &models.Principal{UserID: "tea-1", Role: models.RoleTeacher, Token: "teacher-token", StateID: "state-2"}
}
