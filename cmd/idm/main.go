package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tenantops/admin-idm/pkg/audit"
	"github.com/tenantops/admin-idm/pkg/auth"
	authapi "github.com/tenantops/admin-idm/pkg/auth/api"
	"github.com/tenantops/admin-idm/pkg/client"
	"github.com/tenantops/admin-idm/pkg/config"
	"github.com/tenantops/admin-idm/pkg/iam"
	"github.com/tenantops/admin-idm/pkg/impersonate"
	impersonateapi "github.com/tenantops/admin-idm/pkg/impersonate/api"
	"github.com/tenantops/admin-idm/pkg/refreshtoken"
	"github.com/tenantops/admin-idm/pkg/tokengenerator"
)

// Config is the full environment configuration for the service
type Config struct {
	DatabaseConfig      config.DatabaseConfig
	JWTConfig           config.JWTConfig
	RefreshTokenConfig  config.RefreshTokenConfig
	ImpersonationConfig config.ImpersonationConfig
	// How often to sweep active impersonation sessions past their expiry
	ExpirySweepInterval string `env:"IMPERSONATION_SWEEP_INTERVAL" env-default:"1m"`
}

// loadEnvFile loads environment variables from a .env file if one exists
// next to the executable or in the working directory
func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		slog.Error("Failed to get executable path", "err", err)
		return
	}

	envFile := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, err := os.Getwd()
		if err != nil {
			slog.Error("Failed to get current working directory", "err", err)
			return
		}
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return
	}

	if err := godotenv.Load(envFile); err != nil {
		slog.Error("Failed to load .env file", "err", err, "path", envFile)
		return
	}
	slog.Info("Configuration loaded from .env file", "path", envFile)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	loadEnvFile()

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	pool, err := cfg.DatabaseConfig.NewDbPool(context.Background())
	if err != nil {
		slog.Error("Failed to create database pool", "err", err)
		os.Exit(-1)
	}
	defer pool.Close()

	accessTokenExpiry, err := cfg.JWTConfig.ParseAccessTokenExpiry()
	if err != nil {
		slog.Error("Failed to parse access token expiry", "err", err)
		os.Exit(-1)
	}
	refreshTokenExpiry, err := cfg.RefreshTokenConfig.ParseExpiry()
	if err != nil {
		slog.Error("Failed to parse refresh token expiry", "err", err)
		os.Exit(-1)
	}
	defaultImpersonation, err := cfg.ImpersonationConfig.ParseDefaultDuration()
	if err != nil {
		slog.Error("Failed to parse default impersonation duration", "err", err)
		os.Exit(-1)
	}
	maxImpersonation, err := cfg.ImpersonationConfig.ParseMaxDuration()
	if err != nil {
		slog.Error("Failed to parse max impersonation duration", "err", err)
		os.Exit(-1)
	}
	sweepInterval, err := config.ParseDuration(cfg.ExpirySweepInterval)
	if err != nil {
		slog.Error("Failed to parse sweep interval", "err", err)
		os.Exit(-1)
	}

	recorder := audit.NewRecorder(audit.NewPostgresSink(pool))
	defer recorder.Close()

	generator := tokengenerator.NewJwtTokenGenerator(cfg.JWTConfig.Secret, cfg.JWTConfig.Issuer, cfg.JWTConfig.Audience)
	tokenService := tokengenerator.NewTokenService(generator,
		tokengenerator.WithAccessTokenExpiry(accessTokenExpiry))
	cookieSetter := tokengenerator.NewCookieSetter(
		cfg.JWTConfig.CookieHttpOnly, cfg.JWTConfig.CookieSecure, cfg.JWTConfig.CookieSameSite())

	iamRepo := iam.NewPostgresRepository(pool)

	refreshTokenService := refreshtoken.NewService(
		refreshtoken.NewPostgresRepository(pool), tokenService, iamRepo, iamRepo,
		refreshtoken.WithExpiry(refreshTokenExpiry),
		refreshtoken.WithSecretBytes(cfg.RefreshTokenConfig.SecretBytes),
		refreshtoken.WithRecorder(recorder))

	authService := auth.NewService(
		auth.NewPostgresCredentialStore(pool), iamRepo, iamRepo,
		refreshTokenService, tokenService,
		auth.WithRecorder(recorder))

	impersonateService := impersonate.NewService(
		impersonate.NewPostgresRepository(pool), iamRepo, iamRepo, tokenService,
		impersonate.WithDefaultDuration(defaultImpersonation),
		impersonate.WithMaxDuration(maxImpersonation),
		impersonate.WithRecorder(recorder))

	authHandler := authapi.NewHandler(authService, cookieSetter)
	impersonateHandler := impersonateapi.NewHandler(impersonateService, cookieSetter)

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JWTConfig.Secret), nil)

	server.R.Route("/auth", func(r chi.Router) {
		authHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(client.Verifier(tokenAuth))
			r.Use(jwtauth.Authenticator(tokenAuth))
			r.Use(client.AuthUserMiddleware)
			authHandler.RegisterProtectedRoutes(r)
		})
	})

	server.R.Route("/admin/impersonate", func(r chi.Router) {
		r.Use(client.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Use(client.AuthUserMiddleware)
		r.Use(client.AdminRoleMiddleware)
		impersonateHandler.RegisterRoutes(r)
	})

	// Background sweep so abandoned impersonation sessions do not linger
	// as active
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := impersonateService.ExpireOldSessions(ctx); err != nil {
				slog.Error("Failed to sweep expired impersonation sessions", "err", err)
			}
			cancel()
		}
	}()

	server.Run()
}
