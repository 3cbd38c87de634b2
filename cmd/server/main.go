package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/config"
	"github.com/callvista/cdr-analytics-service/internal/handler"
	"github.com/callvista/cdr-analytics-service/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Server represents the CDR analytics API server
type Server struct {
	config         config.Config
	router         *mux.Router
	handlerManager *handler.HandlerManager
}

// NewServer creates a new analytics server
func NewServer(cfg config.Config, authCfg config.AuthConfig) *Server {
	router := mux.NewRouter()

	// Initialize handler manager - it will create all services internally
	handlerManager, err := handler.NewHandlerManager(cfg, authCfg)
	if err != nil {
		logger.Base().Error("Failed to initialize handler manager", zap.Error(err))
		return nil
	}

	// Setup all routes through handler manager
	handlerManager.SetupAllRoutes(router)

	return &Server{
		config:         cfg,
		router:         router,
		handlerManager: handlerManager,
	}
}

// Start runs the HTTP server until the context is cancelled, then drains it.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%s", s.config.ServerPort)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Base().Info("Starting server", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Base().Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return s.handlerManager.GetRepoManager().Close()
	}
}

// seedAdminAccount creates the bootstrap admin user when credentials are set.
func seedAdminAccount(ctx context.Context, s *Server) {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		logger.Base().Info("admin seeding skipped, ADMIN_USERNAME/ADMIN_PASSWORD not set")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Base().Error("failed to hash admin password", zap.Error(err))
		return
	}

	if err := s.handlerManager.GetRepoManager().User().EnsureAdmin(ctx, username, string(hash)); err != nil {
		logger.Base().Error("failed to seed admin account", zap.Error(err))
		return
	}
	logger.Base().Info("admin account ensured", zap.String("username", username))
}

func main() {
	// Load .env file for local development if it exists.
	// This will not override environment variables set by the deployment.
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: .env file not found or skipped (expected in production): %v", err)
	}

	if _, err := logger.Init(os.Getenv("APP_ENV")); err != nil {
		log.Printf("Failed to initialize zap logger, falling back to std log: %v", err)
	}
	defer logger.Sync()

	cfg := config.LoadConfig()
	authCfg := config.LoadAuthConfig()

	server := NewServer(cfg, authCfg)
	if server == nil {
		log.Fatal("Failed to create server")
	}
	logger.Base().Info("Server initialized successfully",
		zap.String("port", cfg.ServerPort),
		zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seedAdminAccount(ctx, server)

	if err := server.Start(ctx); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
