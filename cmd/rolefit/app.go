package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/c360studio/rolefit/api"
	"github.com/c360studio/rolefit/assessment"
	"github.com/c360studio/rolefit/config"
	"github.com/c360studio/rolefit/generator"
	"github.com/c360studio/rolefit/llm"
	"github.com/c360studio/rolefit/metrics"
	"github.com/c360studio/rolefit/model"
	"github.com/c360studio/rolefit/recorder"
	"github.com/c360studio/rolefit/session"
)

// App wires the server components together.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Model selection, replaced in place on config reload.
	registry *model.Registry

	sessions *session.Manager
	recorder *recorder.Recorder // nil when recording is disabled
	watcher  *config.Watcher

	server *http.Server
}

// newApp builds every component from cfg. When cfg.NATS.URL is set the
// NATS connection must succeed.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New(),
		registry: cfg.Model.Registry(),
	}

	client := llm.NewClient(a.registry,
		llm.WithRetryConfig(cfg.Model.RetryConfig()),
		llm.WithLogger(logger))

	questions := generator.NewQuestionGenerator(client,
		generator.WithTemperature(cfg.Model.Temperature),
		generator.WithMaxTokens(cfg.Model.MaxTokens),
		generator.WithTimeout(cfg.Model.Timeout),
		generator.WithMetrics(a.metrics),
		generator.WithLogger(logger))
	suggestions := generator.NewSuggestionGenerator(client,
		generator.WithTemperature(cfg.Model.Temperature),
		generator.WithTimeout(cfg.Assessment.SuggestionTimeout),
		generator.WithMaxSuggestions(cfg.Assessment.MaxSuggestions),
		generator.WithMetrics(a.metrics),
		generator.WithLogger(logger))

	serverOpts := []api.Option{
		api.WithMetrics(a.metrics),
		api.WithModelHealth(a.registry),
		api.WithRateLimit(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst),
		api.WithLogger(logger),
	}

	hook := a.logCompletion
	if cfg.NATS.URL != "" {
		logger.Info("Connecting to NATS", "url", cfg.NATS.URL)
		rec, err := recorder.Connect(ctx, cfg.NATS.URL,
			recorder.WithSubject(cfg.NATS.Subject),
			recorder.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("start result recorder: %w", err)
		}
		a.recorder = rec
		hook = rec.Hook()
		serverOpts = append(serverOpts, api.WithResults(rec, recorder.ErrNotFound))
		logger.Info("Connected to NATS", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
	}

	a.sessions = session.NewManager(questions, suggestions,
		session.WithManagerConfig(cfg.ManagerConfig()),
		session.WithManagerLogger(logger),
		session.WithManagerMetrics(a.metrics),
		session.WithResultHook(hook))
	serverOpts = append(serverOpts, api.WithSessions(a.sessions))

	a.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(questions, suggestions, serverOpts...).Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	return a, nil
}

// logCompletion is the completion hook when no recorder is configured.
func (a *App) logCompletion(_ context.Context, result *assessment.Result) {
	a.logger.Info("Assessment completed",
		"session_id", result.SessionID,
		"categories", len(result.SelectedCategories),
		"questions", len(result.Questions))
}

// WatchConfig reloads the model settings whenever the file at path changes.
// Other settings need a restart.
func (a *App) WatchConfig(ctx context.Context, path string, load func(string) (*config.Config, error)) error {
	w, err := config.NewWatcher(path, a.applyConfig,
		config.WithLoadFunc(load),
		config.WithWatcherLogger(a.logger))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return err
	}
	a.watcher = w
	return nil
}

func (a *App) applyConfig(cfg *config.Config) {
	a.registry.Replace(cfg.Model.Registry())
	a.registry.SetHealthConfig(cfg.Model.HealthConfig())
	a.logger.Info("Model configuration reloaded",
		"provider", cfg.Model.Provider,
		"model", cfg.Model.Name,
		"fallbacks", len(cfg.Model.Fallback))
}

// ListenAndServe listens on the configured address and serves until ctx
// is done.
func (a *App) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts the HTTP server down
// within the configured timeout and closes every session.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	sweepCtx, stopSweep := context.WithCancel(context.WithoutCancel(ctx))
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		a.sessions.Run(sweepCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		errCh <- a.server.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Received shutdown signal")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error stopping HTTP server", "error", err)
	}

	stopSweep()
	<-sweepDone

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", serveErr)
	}
	a.logger.Info("RoleFit shutdown complete")
	return nil
}

// Close releases the watcher and the NATS connection.
func (a *App) Close() {
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Error stopping config watcher", "error", err)
		}
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.logger.Warn("Error closing result recorder", "error", err)
		}
	}
}
