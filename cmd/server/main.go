package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperbase/paperbase/internal/api"
	"github.com/paperbase/paperbase/internal/apikey"
	"github.com/paperbase/paperbase/internal/auth"
	"github.com/paperbase/paperbase/internal/config"
	"github.com/paperbase/paperbase/internal/user"
	"github.com/paperbase/paperbase/internal/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	userRepo := user.NewRepository(pool)
	keyRepo := apikey.NewRepository(pool)
	workspaceRepo := workspace.NewRepository(pool)

	keyService := apikey.NewService(keyRepo, cfg.BcryptCost)

	if err := bootstrap(context.Background(), userRepo, keyService); err != nil {
		slog.Error("failed to bootstrap admin credentials", "error", err)
		os.Exit(1)
	}

	audit := auth.SlogRecorder{}
	authenticator := buildAuthenticator(cfg, keyService, userRepo, audit)

	router := api.NewRouter(api.RouterDeps{
		Authenticator: authenticator,
		Audit:         audit,
		KeyService:    keyService,
		KeyRepo:       keyRepo,
		UserRepo:      userRepo,
		WorkspaceRepo: workspaceRepo,
		DBPinger:      pool,
		Version:       cfg.Version,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting paperbase server", "port", cfg.Port, "version", cfg.Version,
			"externalAuth", cfg.ExternalAuthEnabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

// buildAuthenticator wires the verification paths from configuration. The
// introspection client is only constructed when external auth is enabled;
// external tokens are rejected closed otherwise.
func buildAuthenticator(cfg *config.Config, keyService *apikey.Service, userRepo user.Repository, audit auth.Recorder) *auth.Authenticator {
	adminValidator := auth.NewAdminValidator(
		[]byte(cfg.AdminJWTSecret),
		cfg.AdminJWTIssuer,
		time.Duration(cfg.ClockSkewSeconds)*time.Second,
	)

	var introspect *auth.IntrospectionClient
	if cfg.ExternalAuthEnabled {
		cache := auth.NewCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
		introspect = auth.NewIntrospectionClient(auth.IntrospectionConfig{
			Endpoint:         cfg.IntrospectionURL,
			ServiceToken:     cfg.ServiceToken,
			Provider:         cfg.ExternalProvider,
			ExpectedIssuer:   cfg.ExpectedIssuer,
			ExpectedAudience: cfg.ExpectedAudience,
			Timeout:          time.Duration(cfg.IntrospectionTimeoutS) * time.Second,
			ClockSkew:        time.Duration(cfg.ClockSkewSeconds) * time.Second,
		}, cache)
	}

	provisioner := auth.NewProvisioner(userRepo)

	return auth.NewAuthenticator(keyService, adminValidator, introspect, provisioner, audit)
}

// bootstrap creates the initial admin user and API key when the store is
// empty. The raw key is logged once and never recoverable afterwards.
func bootstrap(ctx context.Context, userRepo user.Repository, keyService *apikey.Service) error {
	count, err := userRepo.CountAll(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}

	admin := &user.User{
		Username:     "admin",
		Role:         user.RoleAdmin,
		PasswordHash: disabledPassword(),
	}

	if count == 0 {
		if err := userRepo.Create(ctx, admin); err != nil {
			return fmt.Errorf("creating admin user: %w", err)
		}
		slog.Info("admin user created", "userId", admin.ID)
	} else {
		existing, err := userRepo.GetByUsername(ctx, "admin")
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				return nil // operator manages accounts themselves
			}
			return fmt.Errorf("looking up admin user: %w", err)
		}
		admin = existing
	}

	if _, err := keyService.Bootstrap(ctx, admin.ID); err != nil {
		return fmt.Errorf("bootstrapping api key: %w", err)
	}

	return nil
}

// disabledPassword returns a credential that can never verify; the admin
// account authenticates with API keys or admin tokens, never a password.
func disabledPassword() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return "!disabled:" + base64.RawURLEncoding.EncodeToString(b)
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
