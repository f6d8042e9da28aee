package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lifelink/internal/domain"
	"lifelink/internal/service"
	apperrors "lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthService struct {
	tokens map[string]domain.Identity
}

func (s *stubAuthService) Login(ctx context.Context, kind, email, password string) (*service.LoginResponse, error) {
	return nil, apperrors.ErrInvalidCredentials
}

func (s *stubAuthService) ValidateToken(ctx context.Context, token string) (domain.Identity, error) {
	ident, ok := s.tokens[token]
	if !ok {
		return domain.Identity{}, apperrors.ErrInvalidToken
	}
	return ident, nil
}

type stubRateLimitService struct {
	limit int
	hits  map[string]int
	err   error
}

func (s *stubRateLimitService) Limit() int { return s.limit }

func (s *stubRateLimitService) Allow(ctx context.Context, key string) (bool, int, error) {
	if s.err != nil {
		return false, 0, s.err
	}
	s.hits[key]++
	remaining := s.limit - s.hits[key]
	if remaining < 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

func whoami(c *gin.Context) {
	ident, ok := ParticipantFromContext(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"participant": ""})
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant": ident.String()})
}

func newAuthRouter() *gin.Engine {
	donor := domain.Identity{ID: 7, Kind: domain.KindDonor}
	m := NewAuthMiddleware(&stubAuthService{tokens: map[string]domain.Identity{"good": donor}}, logger.Nop())

	r := gin.New()
	r.GET("/required", m.RequireAuth(), whoami)
	r.GET("/optional", m.OptionalAuth(), whoami)
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequireAuth(t *testing.T) {
	r := newAuthRouter()

	w := do(r, httptest.NewRequest(http.MethodGet, "/required", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/required", nil)
	req.Header.Set("Authorization", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/required", nil)
	req.Header.Set("Authorization", "Token good")
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/required", nil)
	req.Header.Set("Authorization", "Bearer good")
	w = do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "donor:7", decodeBody(t, w)["participant"])
}

func TestOptionalAuth(t *testing.T) {
	r := newAuthRouter()

	w := do(r, httptest.NewRequest(http.MethodGet, "/optional", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", decodeBody(t, w)["participant"])

	w = do(r, httptest.NewRequest(http.MethodGet, "/optional?token=good", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "donor:7", decodeBody(t, w)["participant"])

	// A token that is present but wrong is rejected even on optional routes.
	w = do(r, httptest.NewRequest(http.MethodGet, "/optional?token=bad", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit(t *testing.T) {
	svc := &stubRateLimitService{limit: 2, hits: map[string]int{}}
	r := gin.New()
	r.Use(ErrorHandler(logger.Nop()))
	r.GET("/limited", NewRateLimitMiddleware(svc, logger.Nop()).Limit(), whoami)

	for i, want := range []string{"1", "0"} {
		w := do(r, httptest.NewRequest(http.MethodGet, "/limited", nil))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, want, w.Header().Get("X-RateLimit-Remaining"))
	}

	w := do(r, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, apperrors.ErrRateLimited.Error(), decodeBody(t, w)["error"])
	assert.Len(t, svc.hits, 1)
}

func TestRateLimit_KeyedByParticipant(t *testing.T) {
	svc := &stubRateLimitService{limit: 5, hits: map[string]int{}}
	auth := NewAuthMiddleware(&stubAuthService{tokens: map[string]domain.Identity{
		"good": {ID: 3, Kind: domain.KindPatient},
	}}, logger.Nop())

	r := gin.New()
	r.GET("/limited", auth.OptionalAuth(), NewRateLimitMiddleware(svc, logger.Nop()).Limit(), whoami)

	do(r, httptest.NewRequest(http.MethodGet, "/limited?token=good", nil))
	do(r, httptest.NewRequest(http.MethodGet, "/limited", nil))

	assert.Equal(t, 1, svc.hits["participant:patient:3"])
	assert.Len(t, svc.hits, 2)
}

func TestRateLimit_BackendFailure(t *testing.T) {
	svc := &stubRateLimitService{limit: 5, hits: map[string]int{}, err: errors.New("redis down")}
	r := gin.New()
	r.Use(ErrorHandler(logger.Nop()))
	r.GET("/limited", NewRateLimitMiddleware(svc, logger.Nop()).Limit(), whoami)

	w := do(r, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "redis down")
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(logger.Nop()))
	r.GET("/validation", func(c *gin.Context) {
		_ = c.Error(apperrors.NewValidationError("message", "must not be empty"))
	})
	r.GET("/storage", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("create chat message: %w: %w", apperrors.ErrStorageUnavailable, errors.New("dial tcp: refused")))
	})
	r.GET("/written", func(c *gin.Context) {
		c.JSON(http.StatusTeapot, gin.H{"ok": "yes"})
		_ = c.Error(apperrors.ErrParticipantNotFound)
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/validation", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "must not be empty")

	w = do(r, httptest.NewRequest(http.MethodGet, "/storage", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, http.StatusText(http.StatusServiceUnavailable), decodeBody(t, w)["error"])

	w = do(r, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://lifelink.example"}))
	r.GET("/x", whoami)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://lifelink.example")
	w := do(r, req)
	assert.Equal(t, "https://lifelink.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = do(r, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	assert.Equal(t, http.StatusNoContent, do(r, req).Code)

	allowed := OriginAllowed([]string{"https://lifelink.example"})
	req = httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	assert.True(t, allowed(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, allowed(req))
	assert.True(t, OriginAllowed([]string{"*"})(req))
}
