package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/config"
	"github.com/callvista/cdr-analytics-service/internal/domain"
	"github.com/callvista/cdr-analytics-service/pkg/metrics"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, username string, role domain.Role, ttl time.Duration) string {
	t.Helper()
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestParseToken(t *testing.T) {
	token := signToken(t, "alice", domain.RoleManager, time.Hour)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.RoleManager, claims.Role)
}

func TestParseTokenRejections(t *testing.T) {
	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "alice", domain.RoleUser, time.Hour)
		_, err := ParseToken(token, "other-secret")
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token := signToken(t, "alice", domain.RoleUser, -time.Minute)
		_, err := ParseToken(token, testSecret)
		assert.Error(t, err)
	})

	t.Run("missing identity claims", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, parseErr := ParseToken(token, testSecret)
		assert.Error(t, parseErr)
	})
}

func authedRequest(t *testing.T, role domain.Role) *http.Request {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/calls", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "someone", role, time.Hour))
	return req
}

func TestAuthMiddleware(t *testing.T) {
	authCfg := config.AuthConfig{JWTSecret: testSecret}
	var captured *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	protected := AuthMiddleware(authCfg, nil)(next)

	t.Run("valid token passes and exposes claims", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, authedRequest(t, domain.RoleUser))
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, captured)
		assert.Equal(t, domain.RoleUser, captured.Role)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest("GET", "/api/calls", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("mangled token rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/calls", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireStatsRole(t *testing.T) {
	authCfg := config.AuthConfig{JWTSecret: testSecret}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	gated := AuthMiddleware(authCfg, nil)(RequireStatsRole(next))

	cases := []struct {
		role domain.Role
		want int
	}{
		{domain.RoleAdmin, http.StatusOK},
		{domain.RoleManager, http.StatusOK},
		{domain.RoleUser, http.StatusForbidden},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		gated.ServeHTTP(rec, authedRequest(t, tc.role))
		assert.Equal(t, tc.want, rec.Code, "role %s", tc.role)
	}
}

func TestRequireAdminRole(t *testing.T) {
	authCfg := config.AuthConfig{JWTSecret: testSecret}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	gated := AuthMiddleware(authCfg, nil)(RequireAdminRole(next))

	rec := httptest.NewRecorder()
	gated.ServeHTTP(rec, authedRequest(t, domain.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	gated.ServeHTTP(rec, authedRequest(t, domain.RoleManager))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func scrapeMetrics(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetricsMiddlewareCountsErrors(t *testing.T) {
	m := metrics.New()
	wrapped := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/api/calls", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := scrapeMetrics(t, m)
	assert.Contains(t, body, `cdr_errors_total 1`)
	assert.Contains(t, body, `cdr_http_requests_total{code="500",route="/api/calls"} 1`)
}

func TestMetricsMiddlewareIgnoresSuccesses(t *testing.T) {
	m := metrics.New()
	wrapped := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/api/calls", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := scrapeMetrics(t, m)
	assert.Contains(t, body, `cdr_errors_total 0`)
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	})
	wrapped := CORSMiddleware([]string{"https://dashboard.example.com"})(next)

	req := httptest.NewRequest("OPTIONS", "/api/calls", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://dashboard.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	// An origin outside the allow list gets no CORS grant.
	req = httptest.NewRequest("OPTIONS", "/api/calls", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:41832"
	assert.Equal(t, "10.0.0.5", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
