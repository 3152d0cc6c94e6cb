package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gerry9000/guacamole-auth-sso-oauth2/internal/api"
	"github.com/Gerry9000/guacamole-auth-sso-oauth2/internal/auth"
	"github.com/Gerry9000/guacamole-auth-sso-oauth2/internal/conf"
	"github.com/Gerry9000/guacamole-auth-sso-oauth2/internal/data"
)

var flagconf string

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// load config
	cfg, err := conf.Load(flagconf)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		// A missing endpoint or credential is fatal; the extension never
		// becomes active with a partial configuration.
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// session store (host side of the identity hand-off)
	sessions, err := data.NewSessionStore(cfg.Server.SessionDBPath, cfg.Server.SessionTTL())
	if err != nil {
		logger.Error("failed to init session store", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	// login flow
	redirectURI := cfg.OAuth2.GetRedirectURI(cfg.Server.BaseURL)
	client, err := auth.NewClient(ctx, &cfg.OAuth2, redirectURI)
	if err != nil {
		logger.Error("failed to init OAuth2 client", "error", err)
		os.Exit(1)
	}

	states := auth.NewStateRegistry(cfg.OAuth2.MaxStateValidity())
	defer states.Close()

	flow := auth.NewFlow(states, client)
	logger.Info("OAuth2 login flow ready", "redirect_uri", redirectURI)

	// http surface
	authHandler := api.NewAuthHandler(flow, sessions, cfg.Server.BaseURL)
	router := api.NewRouter(authHandler, api.SessionMiddleware(sessions))

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("server started", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// sweep expired sessions in the background
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if err := sessions.PurgeExpired(); err != nil {
				logger.Error("failed to purge expired sessions", "error", err)
			}
		}
	}()

	// wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
