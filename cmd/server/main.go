package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ssokeeper/ssokeeper/internal/api"
	"github.com/ssokeeper/ssokeeper/internal/browser"
	"github.com/ssokeeper/ssokeeper/internal/config"
	"github.com/ssokeeper/ssokeeper/internal/login"
	"github.com/ssokeeper/ssokeeper/internal/ratelimit"
	"github.com/ssokeeper/ssokeeper/internal/session"
	"github.com/ssokeeper/ssokeeper/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.Logger(os.Stderr))

	st, err := store.NewFileStore(cfg.SessionsDir)
	if err != nil {
		return err
	}
	slog.Info("session store ready", "root", st.Root())

	profiles := login.DefaultProfiles()
	if cfg.ProfilesPath != "" {
		profiles, err = login.LoadProfiles(cfg.ProfilesPath)
		if err != nil {
			return err
		}
		slog.Info("provider profiles loaded", "path", cfg.ProfilesPath)
	}

	rt, err := browser.Start(browser.Config{
		Engine:    cfg.BrowserEngine,
		Channel:   cfg.BrowserChannel,
		RemoteURL: cfg.BrowserRemote,
		Image:     cfg.BrowserImage,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Stop(); err != nil {
			slog.Warn("stopping browser runtime", "error", err)
		}
	}()

	if cfg.BrowserImage != "" {
		pullCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		err := rt.EnsureImage(pullCtx)
		cancel()
		if err != nil {
			return err
		}
		slog.Info("browser image ready", "image", cfg.BrowserImage)
	}

	locks := session.NewKeyring()
	hub := session.NewHub()
	limiter := ratelimit.NewLimiter(cfg.AttemptsPerMinute, cfg.AttemptBurst)
	automator := login.NewAutomator(rt, profiles)
	validator := session.NewValidator(rt, profiles, st, locks, cfg.CheckTimeout)

	mgr := session.NewManager(automator, validator, st, locks, limiter, hub, session.Limits{
		MaxConcurrent:  cfg.MaxConcurrentLogins,
		DefaultTimeout: cfg.LoginTimeout,
	})

	router, err := api.NewRouter(mgr, cfg.AllowedDomains)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// no write timeout: login requests legitimately run for minutes
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
