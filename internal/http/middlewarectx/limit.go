// Package middlewarectx содержит middleware HTTP‑сервера.
package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/budget-aggregator-web/internal/http/response"
)

// RateLimitMiddleware отклоняет запросы сверх лимита limiter со статусом 429.
// Запросы не ставятся в очередь. nil limiter отключает ограничение.
func RateLimitMiddleware(log *slog.Logger, limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Warn("too many requests",
					slog.String("op", "middlewarectx.RateLimit"),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
