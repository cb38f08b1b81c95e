// Package budgetaggregator собирает веб‑приложение агрегатора: маршруты,
// зависимости обработчиков и HTTP‑сервер.
package budgetaggregator

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/budget-aggregator-web/internal/http/handlers/budget"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/http/handlers/health"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/http/middlewarectx"
)

// RegisterRoutes регистрирует все маршруты приложения.
// staticDir может быть пустым, тогда /get/ не обслуживается.
func RegisterRoutes(r chi.Router, logger *slog.Logger, budgetHandler *budget.Handler, limiter *rate.Limiter, gatherer prometheus.Gatherer, staticDir string) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/", budgetHandler.Form)
	r.With(middlewarectx.RateLimitMiddleware(logger, limiter)).Post("/", budgetHandler.Process)

	r.Get("/health", health.New(logger).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if staticDir != "" {
		r.Handle("/get/*", http.StripPrefix("/get/", http.FileServer(http.Dir(staticDir))))
	}
}
