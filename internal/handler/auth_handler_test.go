package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/config"
	"github.com/callvista/cdr-analytics-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

type fakeUserRepo struct {
	users map[string]*domain.DashboardUser
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.DashboardUser) error {
	f.users[user.Username] = user
	return nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.DashboardUser, error) {
	return f.users[username], nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.DashboardUser, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) EnsureAdmin(ctx context.Context, username, passwordHash string) error {
	if _, ok := f.users[username]; !ok {
		f.users[username] = &domain.DashboardUser{
			ID: "seed", Username: username, PasswordHash: passwordHash, Role: domain.RoleAdmin,
		}
	}
	return nil
}

func newTestAuthHandler(t *testing.T) (*AuthHandler, *fakeUserRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &fakeUserRepo{users: map[string]*domain.DashboardUser{
		"alice": {ID: "u1", Username: "alice", PasswordHash: string(hash), Role: domain.RoleManager},
	}}
	authCfg := config.AuthConfig{
		JWTSecret:          testSecret,
		TokenTTL:           time.Hour,
		LoginRatePerSecond: 100,
		LoginBurst:         100,
	}
	return NewAuthHandler(repo, authCfg, nil), repo
}

func doLogin(h *AuthHandler, username, password string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(loginRequest{Username: username, Password: password})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:55000"
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func TestLoginIssuesUsableToken(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	rec := doLogin(h, "alice", "s3cret")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "manager", resp.Role)

	claims, err := ParseToken(resp.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.RoleManager, claims.Role)
	assert.Equal(t, "u1", claims.Subject)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h, repo := newTestAuthHandler(t)

	assert.Equal(t, http.StatusUnauthorized, doLogin(h, "alice", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, doLogin(h, "nobody", "s3cret").Code)

	repo.users["alice"].Disabled = true
	assert.Equal(t, http.StatusUnauthorized, doLogin(h, "alice", "s3cret").Code)
}

func TestLoginValidatesBody(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusBadRequest, doLogin(h, "", "").Code)
}

func TestLoginThrottlesPerClient(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	h.authCfg.LoginRatePerSecond = 0.001
	h.authCfg.LoginBurst = 2

	assert.Equal(t, http.StatusUnauthorized, doLogin(h, "alice", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, doLogin(h, "alice", "wrong").Code)
	assert.Equal(t, http.StatusTooManyRequests, doLogin(h, "alice", "wrong").Code)

	// A different client address keeps its own budget.
	body, _ := json.Marshal(loginRequest{Username: "alice", Password: "s3cret"})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.99:55000"
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginLimiterSweepsIdleClients(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	h.limiters["198.51.100.1"] = &limiterEntry{
		limiter:  rate.NewLimiter(1, 1),
		lastSeen: time.Now().Add(-2 * limiterIdleTimeout),
	}
	h.limiters["198.51.100.2"] = &limiterEntry{
		limiter:  rate.NewLimiter(1, 1),
		lastSeen: time.Now(),
	}

	assert.True(t, h.allowAttempt("192.0.2.10"))

	assert.NotContains(t, h.limiters, "198.51.100.1")
	assert.Contains(t, h.limiters, "198.51.100.2")
	assert.Contains(t, h.limiters, "192.0.2.10")
}

func TestCreateUser(t *testing.T) {
	h, repo := newTestAuthHandler(t)

	doCreate := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/auth/users", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()
		h.CreateUser(rec, req)
		return rec
	}

	rec := doCreate(`{"username":"bob","password":"longenough","role":"manager"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := repo.users["bob"]
	require.NotNil(t, created)
	assert.Equal(t, domain.RoleManager, created.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("longenough")))

	// Duplicate username.
	assert.Equal(t, http.StatusConflict, doCreate(`{"username":"bob","password":"longenough"}`).Code)
	// Weak password.
	assert.Equal(t, http.StatusBadRequest, doCreate(`{"username":"carol","password":"short"}`).Code)
	// Unknown role.
	assert.Equal(t, http.StatusBadRequest, doCreate(`{"username":"carol","password":"longenough","role":"root"}`).Code)

	// Missing role defaults to plain user.
	require.Equal(t, http.StatusCreated, doCreate(`{"username":"carol","password":"longenough"}`).Code)
	assert.Equal(t, domain.RoleUser, repo.users["carol"].Role)
}

func TestMeReturnsClaims(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	ctx := context.WithValue(req.Context(), userContextKey, &Claims{Username: "alice", Role: domain.RoleManager})
	rec := httptest.NewRecorder()
	h.Me(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "alice", resp["username"])
	assert.Equal(t, "manager", resp["role"])
}
