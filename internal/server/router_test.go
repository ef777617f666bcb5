package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mailgate/gmailapi/internal/auth"
	"github.com/mailgate/gmailapi/internal/codec"
	"github.com/mailgate/gmailapi/internal/config"
	"github.com/mailgate/gmailapi/internal/gmail"
	"github.com/mailgate/gmailapi/internal/httpx"
	"github.com/mailgate/gmailapi/internal/ratelimit"
	"github.com/mailgate/gmailapi/internal/refresh"
	"github.com/mailgate/gmailapi/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type plainSealer struct{}

func (plainSealer) Encrypt(s string) (string, error) { return s, nil }
func (plainSealer) Decrypt(s string) (string, error) { return s, nil }

func testConfig() config.Config {
	return config.Config{
		Frontend: config.FrontendConfig{
			URL:            "http://localhost:3000",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Auth: config.AuthConfig{
			TokenTTL:          time.Hour,
			BcryptCost:        bcrypt.MinCost,
			CookieMaxAge:      time.Hour,
			MinPasswordLength: 8,
		},
		Metrics: config.MetricsConfig{PrometheusPath: "/metrics"},
	}
}

func newTestRouter(t *testing.T, checks ...ReadinessCheck) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	repo := user.NewMemoryRepository(plainSealer{})
	manager := refresh.NewManager(repo, nil, nil)
	authService := auth.NewService(repo, codec.NewJWT("test-secret", cfg.Auth.TokenTTL), manager, cfg.Auth, nil)

	return NewRouter(Dependencies{
		Config:          cfg,
		ReadinessChecks: checks,
		AuthService:     authService,
		GmailService:    gmail.NewService(manager, nil),
		Limiter:         ratelimit.NewMemoryLimiter(100, time.Minute),
		Throttle:        ratelimit.NewThrottle(time.Millisecond, 100),
	})
}

func send(r http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	var decoded map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &decoded)
	return rr, decoded
}

func TestRegisterTwiceConflicts(t *testing.T) {
	r := newTestRouter(t)
	payload := `{"email":"a@test.com","password":"longenough1"}`

	rr, _ := send(r, http.MethodPost, "/api/auth/register", payload, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr, body := send(r, http.MethodPost, "/api/auth/register", payload, nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, string(httpx.ConflictError), body["error"])
}

func TestGmailRequiresToken(t *testing.T) {
	r := newTestRouter(t)

	rr, body := send(r, http.MethodGet, "/api/gmail/labels", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, httpx.CodeMissingToken, body["code"])
	assert.Equal(t, "100", rr.Header().Get("X-RateLimit-Limit"))
}

func TestPasswordAccountCannotReadGmail(t *testing.T) {
	r := newTestRouter(t)

	_, body := send(r, http.MethodPost, "/api/auth/register", `{"email":"a@test.com","password":"longenough1"}`, nil)
	token, _ := body["accessToken"].(string)
	require.NotEmpty(t, token)

	rr, body := send(r, http.MethodGet, "/api/gmail/labels", "", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, httpx.CodeNoGoogleAccount, body["code"])
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	r := newTestRouter(t)

	rr, body := send(r, http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, string(httpx.NotFoundError), body["error"])
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	rr, _ := send(r, http.MethodOptions, "/api/auth/login", "", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	rr, _ = send(r, http.MethodOptions, "/api/auth/login", "", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestReadiness(t *testing.T) {
	healthy := newTestRouter(t, ReadinessCheck{Component: "store", Check: func(context.Context) error { return nil }})
	rr, _ := send(healthy, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	down := newTestRouter(t,
		ReadinessCheck{Component: "store", Check: func(context.Context) error { return nil }},
		ReadinessCheck{Component: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)
	rr, body := send(down, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "redis", body["component"])

	rr, _ = send(down, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
