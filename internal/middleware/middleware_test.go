package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-portal/internal/models"
	"github.com/noah-isme/classroom-portal/internal/service"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

type stubAuthenticator struct {
	bearer, stateID string
	principal       *models.Principal
	err             error
}

func (s *stubAuthenticator) Authenticate(_ context.Context, bearer, stateID string) (*models.Principal, error) {
	s.bearer, s.stateID = bearer, stateID
	return s.principal, s.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", append(handlers, func(c *gin.Context) {
		principal := PrincipalFrom(c)
		fromCtx, _ := models.PrincipalFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user": principal.UserID, "ctx": fromCtx.UserID})
	})...)
	return r
}

func TestAuthAttachesPrincipal(t *testing.T) {
	auth := &stubAuthenticator{principal: &models.Principal{UserID: "stu-1", Role: models.RoleStudent}}
	r := newRouter(Auth(auth))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	req.Header.Set(StateHeader, "state-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"stu-1","ctx":"stu-1"}`, rec.Body.String())
	assert.Equal(t, "abc.def", auth.bearer)
	assert.Equal(t, "state-1", auth.stateID)
}

func TestAuthRejections(t *testing.T) {
	cases := []struct {
		name   string
		header string
		state  string
		err    error
		status int
	}{
		{name: "missing credentials", status: http.StatusUnauthorized},
		{name: "malformed header", header: "Token abc", status: http.StatusUnauthorized},
		{name: "forbidden role", header: "Bearer abc", err: appErrors.ErrForbidden, status: http.StatusForbidden},
		{name: "expired state", state: "gone", err: appErrors.ErrUnauthorized, status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(Auth(&stubAuthenticator{err: tc.err}))
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.state != "" {
				req.Header.Set(StateHeader, tc.state)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextPrincipalKey, &models.Principal{UserID: "stu-1", Role: models.RoleStudent})
	})
	r.GET("/teacher", RequireRoles(models.RoleTeacher), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/any", RequireRoles(models.RoleStudent, models.RoleTeacher), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teacher", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/any", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics, "/metrics"))
	r.GET("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/abc", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `portal_http_requests_total{method="GET",path="/sessions/:id",status="204"} 1`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `path="unmatched",status="404"`)
	assert.NotContains(t, body, `path="/metrics"`)
}

func TestResponseMetaAndFresh(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	var meta map[string]interface{}
	var fresh bool
	r.GET("/x", func(c *gin.Context) {
		SetMeta(c, "dialog", "closed")
		fresh = Fresh(c)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x?fresh=true", nil))
	assert.True(t, fresh)
	assert.Equal(t, "closed", meta["dialog"])
	assert.Contains(t, meta, "processing_time_ms")

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Cache-Control", "no-cache")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, fresh)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.False(t, fresh)
}
