package budgetaggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/budget-aggregator-web/internal/aggregator"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/config"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/http/form"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/http/handlers/budget"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/lib/sl"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/metrics"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	server *http.Server
	logger *slog.Logger
}

func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.budgetaggregator.New"

	if _, err := os.Stat(cfg.Aggregator.Path); err != nil {
		logger.Warn("aggregator executable is not accessible", slog.String("path", cfg.Aggregator.Path), sl.Err(err))
	}

	renderer, err := form.New(cfg.CanonicalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	runner := aggregator.New(aggregator.Config{
		Path:      cfg.Aggregator.Path,
		Args:      cfg.Args,
		Timeout:   cfg.Aggregator.Timeout,
		WaitDelay: cfg.WaitDelay,
	}, logger)

	budgetHandler := budget.New(logger, budget.Config{
		Debug:         cfg.Debug,
		TempRoot:      cfg.TempRoot,
		MaxUploadSize: cfg.MaxUploadSize,
	}, renderer, runner, metrics.New(registry))

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, budgetHandler, limiter, registry, cfg.StaticDir)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
	}, nil
}

// Handler возвращает корневой обработчик сервера.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	}
}
