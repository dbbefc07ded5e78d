package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"parkingspace/internal/domain"
)

type stubValidator map[string]domain.Actor

func (s stubValidator) ValidateToken(token string) (*domain.Actor, error) {
	actor, ok := s[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &actor, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRouter(mw *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	whoami := func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.String(http.StatusOK, actor.Username)
	}
	r.GET("/any", mw.Authenticate(), whoami)
	r.GET("/staff", mw.Authenticate(), mw.RequireStaff(), whoami)
	r.GET("/admin", mw.Authenticate(), mw.AuthorizeRole(domain.RoleAdmin), whoami)
	r.GET("/ws", mw.AuthenticateWebSocket(), whoami)
	return r
}

func get(r http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set(AuthorizationHeaderKey, authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthorizeRoles(t *testing.T) {
	mw := NewAuthMiddleware(stubValidator{
		"u": {UserID: 1, Username: "alice", Role: domain.RoleUser},
		"s": {UserID: 2, Username: "attendant", Role: domain.RoleStaff},
		"a": {UserID: 3, Username: "root", Role: domain.RoleAdmin},
	}, quietLogger())
	r := newTestRouter(mw)

	tests := []struct {
		path   string
		header string
		want   int
	}{
		{"/any", "", http.StatusUnauthorized},
		{"/any", "Token u", http.StatusUnauthorized},
		{"/any", "Bearer nope", http.StatusUnauthorized},
		{"/any", "Bearer u", http.StatusOK},
		{"/any", "bearer u", http.StatusOK},
		{"/staff", "Bearer u", http.StatusForbidden},
		{"/staff", "Bearer s", http.StatusOK},
		{"/staff", "Bearer a", http.StatusOK},
		{"/admin", "Bearer s", http.StatusForbidden},
		{"/admin", "Bearer a", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path+" "+tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, get(r, tt.path, tt.header).Code)
		})
	}
}

func TestWebSocketTokenFromQuery(t *testing.T) {
	mw := NewAuthMiddleware(stubValidator{"u": {UserID: 1, Username: "alice", Role: domain.RoleUser}}, quietLogger())
	r := newTestRouter(mw)

	w := get(r, "/ws?token=u", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(r, "/any?token=u", "").Code, "query tokens are only accepted on the socket route")
}

func TestRateLimiterPerClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.Use(rl.Limit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	request := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1"))
	assert.Equal(t, http.StatusOK, request("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1"))
	assert.Equal(t, http.StatusOK, request("10.0.0.2"), "buckets are per IP")
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.getLimiter("10.0.0.1")
	rl.evictIdle(time.Now().Add(time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.visitors)
}

func TestRequestIDIsPropagated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(quietLogger()))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}
