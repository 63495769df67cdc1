package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/raysh454/sightline/internal/config"
	"github.com/raysh454/sightline/internal/logging"
	"github.com/raysh454/sightline/internal/server"
)

// ShutdownTimeout bounds how long Run waits for requests and captures in
// flight once its context is cancelled.
const ShutdownTimeout = 15 * time.Second

// Application is the sightline server process: configuration, the shared
// components and the HTTP server in front of them.
type Application struct {
	Config     *config.Config
	Logger     logging.Logger
	Components *Components
	Server     *server.Server

	httpSrv *http.Server

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewApplication builds every component from cfg. Nothing runs until Start.
func NewApplication(cfg *config.Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	comps, err := NewComponents(cfg, logger)
	if err != nil {
		return nil, err
	}

	srv := server.NewServer(server.ConfigFrom(cfg.Server, logger), comps.Monitor, comps.Store)

	return &Application{
		Config:     cfg,
		Logger:     logger,
		Components: comps,
		Server:     srv,
		httpSrv:    srv.HTTPServer(),
	}, nil
}

// Start schedules every persisted site.
func (a *Application) Start(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application starting",
		logging.Field{Key: "listen_addr", Value: a.Config.Server.ListenAddr},
		logging.Field{Key: "storage_root", Value: a.Config.Storage.Root},
		logging.Field{Key: "auth", Value: a.Config.Server.AuthPasswordHash != ""})
	if err := a.Components.Monitor.Start(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	return nil
}

// Run starts the application and serves HTTP on the configured address until
// ctx is cancelled, then shuts down.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpSrv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.httpSrv.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.Start(ctx); err != nil {
		ln.Close()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", logging.Field{Key: "addr", Value: ln.Addr().String()})
		errCh <- a.httpSrv.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// Shutdown stops accepting requests, waits for running captures and closes
// the components. It is safe to call more than once.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.shutdownOnce.Do(func() {
		a.Logger.Info("application shutdown initiated")

		if err := a.httpSrv.Shutdown(ctx); err != nil {
			a.Logger.Warn("http server shutdown returned error", logging.Field{Key: "error", Value: err.Error()})
		}
		if err := a.Components.Monitor.Close(ctx); err != nil {
			a.Logger.Warn("monitor shutdown returned error", logging.Field{Key: "error", Value: err.Error()})
		}
		a.shutdownErr = a.Components.Close()
	})
	return a.shutdownErr
}
