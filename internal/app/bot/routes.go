package bot

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/streaming-reseller/internal/http/handlers/health"
	"github.com/magabrotheeeer/streaming-reseller/internal/http/handlers/webhook"
	"github.com/magabrotheeeer/streaming-reseller/internal/http/middlewarectx"
)

// Routes зависимости HTTP-маршрутов.
type Routes struct {
	Tokens     middlewarectx.TokenParser
	Limiter    *rate.Limiter
	Dispatcher webhook.Dispatcher
	Sender     webhook.Sender
	Probes     map[string]health.Probe
	Metrics    http.Handler
}

// RegisterRoutes регистрирует все маршруты бота.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps Routes) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(deps.Limiter, logger))
			r.Use(middlewarectx.JWTMiddleware(deps.Tokens, logger))
			r.Post("/webhook/messages", webhook.New(logger, deps.Dispatcher, deps.Sender).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, deps.Probes).ServeHTTP)

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
