package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/config"
	"github.com/callvista/cdr-analytics-service/internal/domain"
	"github.com/callvista/cdr-analytics-service/internal/repository"
	"github.com/callvista/cdr-analytics-service/pkg/logger"
	"github.com/callvista/cdr-analytics-service/pkg/metrics"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// limiterIdleTimeout is how long a client's login limiter survives without
// new attempts before the sweep drops it.
const limiterIdleTimeout = time.Hour

// AuthHandler handles login and token issuance for dashboard accounts
type AuthHandler struct {
	userRepo repository.UserRepository
	authCfg  config.AuthConfig
	metrics  *metrics.Metrics

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userRepo repository.UserRepository, authCfg config.AuthConfig, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		userRepo: userRepo,
		authCfg:  authCfg,
		metrics:  m,
		limiters: make(map[string]*limiterEntry),
	}
}

// SetupAuthRoutes sets up the auth-related routes
func (h *AuthHandler) SetupAuthRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.Login).Methods("POST")
}

// SetupSessionRoutes registers routes that require an authenticated session.
func (h *AuthHandler) SetupSessionRoutes(router *mux.Router) {
	router.HandleFunc("/auth/me", h.Me).Methods("GET")
}

// SetupAdminRoutes registers account management routes; the caller is
// expected to gate the router with RequireAdminRole.
func (h *AuthHandler) SetupAdminRoutes(router *mux.Router) {
	router.HandleFunc("/auth/users", h.CreateUser).Methods("POST")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

// Login authenticates a dashboard user and returns a signed JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.allowAttempt(clientIP(r)) {
		http.Error(w, "Too many login attempts", http.StatusTooManyRequests)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.userRepo.GetByUsername(r.Context(), req.Username)
	if err != nil {
		logger.Base().Error("login lookup failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if user == nil || user.Disabled ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		logger.Base().Warn("login rejected",
			zap.String("username", req.Username),
			zap.String("remote_addr", r.RemoteAddr))
		if h.metrics != nil {
			h.metrics.IncAuthFailure()
		}
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	expiresAt := time.Now().Add(h.authCfg.TokenTTL)
	claims := &Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.authCfg.JWTSecret))
	if err != nil {
		logger.Base().Error("token signing failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	logger.Base().Info("login succeeded",
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		Username:  user.Username,
		Role:      string(user.Role),
	})
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateUser registers a new dashboard account. Admin only.
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || len(req.Password) < 8 {
		http.Error(w, "username and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	role := domain.Role(req.Role)
	switch role {
	case domain.RoleAdmin, domain.RoleManager, domain.RoleUser:
	case "":
		role = domain.RoleUser
	default:
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}

	existing, err := h.userRepo.GetByUsername(r.Context(), req.Username)
	if err != nil {
		logger.Base().Error("user lookup failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "username already taken", http.StatusConflict)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Base().Error("password hashing failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	user := &domain.DashboardUser{
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := h.userRepo.Create(r.Context(), user); err != nil {
		logger.Base().Error("user creation failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	logger.Base().Info("dashboard user created",
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// Me returns the identity behind the current token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"username": claims.Username,
		"role":     string(claims.Role),
	})
}

// allowAttempt throttles login attempts per client address. Each call also
// sweeps limiters that have been idle past limiterIdleTimeout so the map
// does not grow with every address ever seen.
func (h *AuthHandler) allowAttempt(ip string) bool {
	now := time.Now()

	h.mu.Lock()
	for addr, entry := range h.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTimeout {
			delete(h.limiters, addr)
		}
	}

	entry, ok := h.limiters[ip]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(h.authCfg.LoginRatePerSecond), h.authCfg.LoginBurst),
		}
		h.limiters[ip] = entry
	}
	entry.lastSeen = now
	h.mu.Unlock()

	return entry.limiter.Allow()
}
