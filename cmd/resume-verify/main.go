// The resume-verify server gates resume-optimization features behind email
// verification: it issues signed verification tokens, redeems them exactly
// once, and answers status queries for the rest of the application.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/resumeworks/resume-verify/migrations"
	"github.com/resumeworks/resume-verify/pkg/audit"
	"github.com/resumeworks/resume-verify/pkg/config"
	"github.com/resumeworks/resume-verify/pkg/gate"
	"github.com/resumeworks/resume-verify/pkg/notification"
	"github.com/resumeworks/resume-verify/pkg/profile"
	"github.com/resumeworks/resume-verify/pkg/ratelimit"
	"github.com/resumeworks/resume-verify/pkg/tokencodec"
	"github.com/resumeworks/resume-verify/pkg/tokenstore"
	"github.com/resumeworks/resume-verify/pkg/verification"
	verificationapi "github.com/resumeworks/resume-verify/pkg/verification/api"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment")
	}

	var cfg config.Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	signingKey, err := cfg.SigningKey()
	if err != nil {
		slog.Error("Failed to resolve signing key", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(cfg.Db.ToDatabaseURL()); err != nil {
		slog.Error("Failed to run migrations", "err", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.Db.ToDatabaseURL())
	if err != nil {
		slog.Error("Failed to create connection pool", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	codec, err := tokencodec.NewCodec(signingKey, cfg.Verify.Issuer, cfg.Verify.Audience)
	if err != nil {
		slog.Error("Failed to create token codec", "err", err)
		os.Exit(1)
	}

	tokenRepo, err := tokenstore.NewRepository("postgres", tokenstore.RepositoryConfig{Pool: pool})
	if err != nil {
		slog.Error("Failed to create token repository", "err", err)
		os.Exit(1)
	}

	profileStore := profile.NewPostgresStore(pool)
	auditLog := audit.NewLog(audit.NewPostgresAppender(pool))
	limiter := ratelimit.NewSlidingWindow()

	notifier, err := notification.NewEmailNotifier(notification.SMTPConfig{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		TLS:      cfg.Email.TLS,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})
	if err != nil {
		slog.Error("Failed to create email notifier", "err", err)
		os.Exit(1)
	}
	mailer := notification.NewVerificationMailer(notification.NewManager(notifier))

	service := verification.NewService(
		tokenRepo,
		profileStore,
		codec,
		limiter,
		auditLog,
		mailer,
		cfg.App.BaseURL,
		verification.WithTokenTTL(cfg.Verify.TokenTTL),
		verification.WithMaxAttempts(int32(cfg.Verify.MaxAttempts)),
		verification.WithResendLimit(cfg.Verify.ResendLimit),
		verification.WithResendWindow(cfg.Verify.ResendWindow),
	)

	sweeper := verification.NewSweeper(tokenRepo, auditLog,
		verification.WithSweepInterval(cfg.Verify.SweepInterval))
	go sweeper.Run(ctx)

	provider := gate.NewJWTIdentityProvider(cfg.Identity.JwtSecret)
	g := gate.New(provider, service)

	handler := verificationapi.NewHandler(service, cfg.Verify.SuccessURL, cfg.Verify.FailureURL)
	limitMw := ratelimit.NewMiddleware(&ratelimit.Config{
		PerIPMax:       cfg.RateLimit.PerIPMax,
		PerIPWindow:    cfg.RateLimit.PerIPWindow,
		IncludeHeaders: true,
	}, limiter)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Mount("/", verificationapi.Routes(handler, g, limitMw))

	// Routes behind RequireVerified are only reachable by verified subjects;
	// the wider resume app mounts its optimization API the same way.
	r.Group(func(r chi.Router) {
		r.Use(g.RequireVerified)
		r.Get("/api/me", handleMe)
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "err", err)
		}
	}()

	slog.Info("Starting resume-verify server", "port", cfg.App.Port, "env", cfg.App.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "err", err)
		os.Exit(1)
	}
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := gate.IdentityFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "Unauthorized"})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{
		"subject_id": identity.SubjectID.String(),
		"email":      identity.Email,
	})
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Embed)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.Up(db, ".")
}
