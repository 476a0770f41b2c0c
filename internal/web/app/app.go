// Package app wires the web frontend and runs its HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/trongdv/bookstore/pkg/health"

	"github.com/trongdv/bookstore/internal/web/apiclient"
	"github.com/trongdv/bookstore/internal/web/config"
	"github.com/trongdv/bookstore/internal/web/handler"
	"github.com/trongdv/bookstore/internal/web/session"
)

// App runs the bookstore web frontend.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
}

// NewApp creates a new frontend instance.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	api := apiclient.New(cfg.APIBaseURL, logger)
	sessions := session.NewManager(cfg.SecureCookies)

	h, err := handler.New(api, sessions, cfg.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("build handler: %w", err)
	}

	// The frontend is ready when the API answers its liveness probe.
	healthHandler := health.NewHandler()
	healthHandler.Register("api", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.APIBaseURL+"/health/live", http.NoBody)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("api liveness returned %d", resp.StatusCode)
		}
		return nil
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           h.Routes(healthHandler),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	a.logger.Info("application stopped")
	return nil
}
