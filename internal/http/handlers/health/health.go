package health

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/budget-aggregator-web/internal/http/response"
)

// Handler отвечает на проверку живости сервиса.
type Handler struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Handler {
	return &Handler{
		log: log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	h.log.Debug("health check",
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status": "ok",
	}))
}
