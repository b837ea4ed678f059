// The resume-verify-dev server runs the verification core without a database
// or SMTP: stores are in-memory, verification links go to the process log,
// and the gate bypass can be enabled for frontend work. All data is lost when
// the process stops. This binary is the only entry point that constructs the
// bypass gate; the production binary rejects the flag outright.
package main

import (
	"context"
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
	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

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

const devSigningSecret = "dev-signing-secret-change-in-production"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment")
	}

	var cfg config.Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		slog.Error("The dev binary must not run with APP_ENV=production")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	codec, err := tokencodec.NewCodec([]byte(devSigningSecret), cfg.Verify.Issuer, cfg.Verify.Audience)
	if err != nil {
		slog.Error("Failed to create token codec", "err", err)
		os.Exit(1)
	}

	tokenRepo := tokenstore.NewInMemoryRepository()
	profileStore := profile.NewInMemoryStore()
	auditLog := audit.NewLog(audit.NewInMemoryAppender())
	limiter := ratelimit.NewSlidingWindow()
	mailer := notification.NewVerificationMailer(notification.NewManager(notification.LogNotifier{}))

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

	devID := uuid.New()
	var g gate.Middleware = gate.New(provider, service)
	if cfg.Gate.Bypass {
		slog.Warn("Gate bypass enabled: all requests run as a synthetic verified identity")
		g = gate.NewBypassGate(gate.Identity{SubjectID: devID, Email: "dev@example.com"})
	} else {
		// Mint a bearer token so the API is usable from curl right away.
		_, bearer, err := provider.JWTAuth().Encode(map[string]interface{}{
			"sub":   devID.String(),
			"email": "dev@example.com",
			"exp":   time.Now().Add(24 * time.Hour).Unix(),
		})
		if err != nil {
			slog.Error("Failed to mint dev bearer token", "err", err)
			os.Exit(1)
		}
		slog.Info("Dev identity ready", "subject_id", devID, "bearer", bearer)
	}

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

	r.Group(func(r chi.Router) {
		r.Use(g.RequireVerified)
		r.Get("/api/me", func(w http.ResponseWriter, r *http.Request) {
			identity, _ := gate.IdentityFromContext(r.Context())
			render.JSON(w, r, map[string]string{
				"subject_id": identity.SubjectID.String(),
				"email":      identity.Email,
			})
		})
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "err", err)
		}
	}()

	slog.Info("Starting resume-verify dev server (in-memory, no database)", "port", cfg.App.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "err", err)
		os.Exit(1)
	}
}
