// Package health проверка готовности бота.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/streaming-reseller/internal/http/response"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
)

// Probe проверка одной зависимости.
type Probe func(ctx context.Context) error

// Handler отвечает 200, если все проверки прошли, иначе 503.
type Handler struct {
	log     *slog.Logger
	probes  map[string]Probe
	timeout time.Duration
}

// New создаёт Handler.
func New(log *slog.Logger, probes map[string]Probe) *Handler {
	return &Handler{
		log:     log,
		probes:  probes,
		timeout: 3 * time.Second,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.probes))
	healthy := true
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			h.log.Warn("health probe failed", slog.String("op", op), slog.String("probe", name), sl.Err(err))
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	if !healthy {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.OKResponse{Status: response.StatusError, Data: checks})
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": "ok",
		"checks": checks,
	}))
}
