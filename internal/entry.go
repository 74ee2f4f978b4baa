// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/bhc/internal/api"
	"github.com/starford/bhc/internal/apperr"
	"github.com/starford/bhc/internal/cache"
	"github.com/starford/bhc/internal/lsp"
	"github.com/starford/bhc/internal/mcpserver"
	"github.com/starford/bhc/internal/sse"
	"github.com/starford/bhc/internal/workspace"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger builds the JSON logger. It writes to stderr because stdout may
// carry LSP or MCP traffic.
func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openSession creates the workspace session, backed by the parse cache when
// enabled, and opens every configured root. The returned func releases the
// cache.
func (app *application) openSession(logger *slog.Logger, extra ...workspace.Option) (*workspace.Session, func(), error) {
	cfg := app.config
	cleanup := func() {}

	opts := []workspace.Option{workspace.WithIgnoreDirs(cfg.Workspace.IgnoreDirs)}
	if cfg.Cache.Enabled {
		db, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init cache: %w", err)
		}
		cleanup = func() {
			app.cache = nil
			if err := db.Close(); err != nil {
				logger.Warn("cache close failed", slog.String("error", err.Error()))
			}
		}
		if entries, err := db.Entries(); err == nil {
			logger.Debug("Parse cache opened",
				slog.String("path", cfg.Cache.Path),
				slog.Int("entries", len(entries)))
		}
		app.cache = db
		opts = append(opts, workspace.WithParseFunc(db.ParseFunc(logger)))
	}
	opts = append(opts, extra...)

	session := workspace.NewSession(logger, opts...)
	for _, root := range append(append([]string(nil), cfg.Workspace.Roots...), app.roots...) {
		abs, err := session.AddRoot(root)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open workspace %s: %w", root, err)
		}
		logger.Info("Workspace opened", slog.String("root", abs))
	}
	return session, cleanup, nil
}

// Run starts the long-running server: LSP on stdio when enabled, a watcher
// per configured workspace, and the optional inspection API with its SSE
// stream.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg)

	logger.Info("Configuration loaded",
		slog.Bool("http_enabled", cfg.App.HTTP.Enabled),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.Bool("cache_enabled", cfg.Cache.Enabled),
		slog.Bool("watch_enabled", cfg.Watch.Enabled),
		slog.Bool("lsp_stdio", app.stdio),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(cfg.Events.Throttle)
	defer broker.Close()

	session, closeCache, err := app.openSession(logger, workspace.WithEventCallback(broker.PublishSessionEvent))
	if err != nil {
		return err
	}
	defer closeCache()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if _, err := session.ReconcileAll(ctx); err != nil {
		logger.Warn("initial reconcile failed", slog.String("error", err.Error()))
	}

	if app.stdio {
		// The stdio loop cannot be interrupted; a disconnecting client ends
		// the run, and a signal ends it without waiting for the loop.
		go func() {
			defer cancel()
			if err := lsp.New(ctx, session, logger, app.version).RunStdio(); err != nil {
				logger.Error("LSP server error", slog.String("error", err.Error()))
			}
			logger.Info("LSP client disconnected")
		}()
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		for _, root := range session.Roots() {
			g.Go(func() error {
				err := workspace.Watch(gCtx, session, root, cfg.Watch.Debounce, cfg.Workspace.IgnoreDirs, logger, app.fileEvents(root, broker, logger))
				if err != nil {
					logger.Error("watcher failed", slog.String("root", root), slog.String("error", err.Error()))
				}
				return nil
			})
		}
	}

	var httpServer *http.Server
	if cfg.App.HTTP.Enabled {
		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		// Health check endpoints (unauthenticated).
		r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})

		r.Mount("/api", api.NewRouter(session, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

		httpServer = &http.Server{
			Addr:    cfg.App.HTTP.Address(),
			Handler: r,
		}

		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		if httpServer != nil {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// fileEvents returns the watcher callback for root. It publishes every change
// and drops the cached parse of a deleted stylesheet.
func (app *application) fileEvents(root string, broker *sse.Broker, logger *slog.Logger) workspace.FileEventCallback {
	return func(kind, path string) {
		broker.PublishFileEvent(root, kind, path)
		if kind != "deleted" || app.cache == nil || !workspace.IsStylesheet(path) {
			return
		}
		if err := app.cache.Delete(path); err != nil {
			logger.Warn("cache evict failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
}

// RunMCP serves the MCP tools on stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config)

	session, closeCache, err := app.openSession(logger)
	if err != nil {
		return err
	}
	defer closeCache()

	if _, err := session.ReconcileAll(ctx); err != nil {
		logger.Warn("initial reconcile failed", slog.String("error", err.Error()))
	}

	logger.Info("MCP server starting on stdio", slog.Int("workspaces", len(session.Roots())))
	return mcpserver.New(session, app.version).ServeStdio()
}

// ReconcileOnce runs one pass over every configured workspace and writes the
// reports as JSON.
func ReconcileOnce(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config)

	session, closeCache, err := app.openSession(logger)
	if err != nil {
		return err
	}
	defer closeCache()

	if len(session.Roots()) == 0 {
		return fmt.Errorf("no workspace to reconcile")
	}

	reports, runErr := session.ReconcileAll(ctx)
	if err := writeJSON(app.out, reports); err != nil {
		return err
	}
	return runErr
}

// Render writes the stylesheet view of one HTML document. When the document
// is not under a configured workspace its directory is opened as one.
func Render(ctx context.Context, htmlPath string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config)

	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return apperr.IO("resolve", htmlPath, err)
	}

	session, closeCache, err := app.openSession(logger)
	if err != nil {
		return err
	}
	defer closeCache()

	if _, err := session.WorkspaceFor(abs); err != nil {
		if _, err := session.AddRoot(filepath.Dir(abs)); err != nil {
			return err
		}
	}

	proj, err := session.Project(ctx, abs, nil)
	if err != nil {
		return err
	}
	if proj.File != nil {
		_, err = io.WriteString(app.out, proj.CSS)
		return err
	}
	data, err := os.ReadFile(proj.Path)
	if err != nil {
		return apperr.IO("read", proj.Path, err)
	}
	_, err = app.out.Write(data)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
