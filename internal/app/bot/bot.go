// Package bot собирает процесс бота: хранилище, сессии, уведомления,
// лицензию, диалоги, диспетчер, планировщик и HTTP-сервер вебхука.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/streaming-reseller/internal/cache"
	"github.com/magabrotheeeer/streaming-reseller/internal/config"
	"github.com/magabrotheeeer/streaming-reseller/internal/http/handlers/health"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/jwt"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/metrics"
	"github.com/magabrotheeeer/streaming-reseller/internal/migrations"
	"github.com/magabrotheeeer/streaming-reseller/internal/rabbitmq"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/dispatcher"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/flow"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/importer"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/license"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/notifier"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/scheduler"
	"github.com/magabrotheeeer/streaming-reseller/internal/session"
	"github.com/magabrotheeeer/streaming-reseller/internal/storage/repository"
	"github.com/magabrotheeeer/streaming-reseller/internal/transport/gateway"
)

// Бэкенды сессий и очереди уведомлений.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendLocal  = "local"
	BackendAMQP   = "amqp"
)

// ErrUnknownBackend в конфиге указан неизвестный бэкенд.
var ErrUnknownBackend = errors.New("unknown backend")

// App процесс бота.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	db        *repository.Storage
	cache     *cache.Cache
	conn      *amqp.Connection
	ch        *amqp.Channel
	queue     *notifier.LocalQueue
	scheduler *scheduler.SchedulerService
}

const dbReadyAttempts = 10

// prepareDB дожидается готовности базы и только затем накатывает миграции.
func prepareDB(ctx context.Context, ready func(context.Context) error, migrate func() error, delay time.Duration) error {
	var err error
	for attempt := 1; attempt <= dbReadyAttempts; attempt++ {
		if err = ready(ctx); err == nil {
			return migrate()
		}
		if attempt == dbReadyAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// New собирает зависимости. При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.db, err = repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	err = prepareDB(ctx,
		func(ctx context.Context) error { return repository.CheckDatabaseReady(ctx, a.db) },
		func() error { return migrations.Run(a.db.DB, cfg.MigrationsPath) },
		3*time.Second)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	store, err := a.sessionStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gw := gateway.NewClient(cfg.Gateway)
	outbox, err := a.outbox(cfg, gw, m)
	if err != nil {
		return nil, err
	}
	notifications := notifier.New(gw, outbox, logger, m)

	gate := license.NewGate(a.db, cfg.Bot.IsAdmin, logger)
	imp := importer.New(a.db, logger, cfg.Bot.DefaultCountryCode)
	engine := flow.New(a.db, store, notifications, imp, logger, m, cfg.Bot.DefaultCountryCode)

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}
	a.scheduler, err = scheduler.NewSchedulerService(a.db, notifications, logger, scheduler.Settings{
		OperatorChat: cfg.Bot.OperatorChat,
		Prefix:       cfg.Bot.Prefix,
		ReminderDays: cfg.Scheduler.ReminderDays,
		ReportDays:   cfg.Scheduler.ReportDays,
		RemindersAt:  cfg.Scheduler.RemindersAt,
		ReportAt:     cfg.Scheduler.ReportAt,
		Location:     loc,
	})
	if err != nil {
		return nil, err
	}

	d := dispatcher.New(engine, store, gate, a.db, notifications, a.scheduler, logger, m, dispatcher.Options{
		Prefix:             cfg.Bot.Prefix,
		CommandPrefix:      cfg.Bot.CommandPrefix,
		OwnerOnly:          cfg.Bot.OwnerOnly,
		DefaultCountryCode: cfg.Bot.DefaultCountryCode,
		SessionTimeout:     cfg.Session.Timeout,
		ReportDays:         cfg.Scheduler.ReportDays,
	})

	probes := map[string]health.Probe{
		"postgres": func(ctx context.Context) error { return a.db.DB.PingContext(ctx) },
	}
	if a.cache != nil {
		probes["redis"] = func(ctx context.Context) error { return a.cache.Db.Ping(ctx).Err() }
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Routes{
		Tokens:     jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		Dispatcher: d,
		Sender:     gw,
		Probes:     probes,
		Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

func (a *App) sessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case BackendMemory, "":
		return session.NewMemoryStore(), nil
	case BackendRedis:
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, fmt.Errorf("cache not initialized: %w", err)
		}
		a.cache = c
		return session.NewRedisStore(c, cfg.Session.Timeout), nil
	default:
		return nil, fmt.Errorf("session: %w: %q", ErrUnknownBackend, cfg.Session.Backend)
	}
}

func (a *App) outbox(cfg *config.Config, sender notifier.Sender, m *metrics.Metrics) (notifier.Outbox, error) {
	switch cfg.Notifier.Backend {
	case BackendLocal, "":
		deliverer := notifier.NewDeliverer(sender, notifier.DelivererOptions{
			Delay:       cfg.Notifier.Delay,
			Jitter:      cfg.Notifier.Jitter,
			MaxAttempts: cfg.Notifier.MaxAttempts,
		}, a.logger, m)
		a.queue = notifier.NewLocalQueue(deliverer, cfg.Notifier.QueueSize, a.logger)
		return a.queue, nil
	case BackendAMQP:
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		a.conn = conn
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
		if err != nil {
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		a.ch = ch
		return notifier.NewAMQPOutbox(ch), nil
	default:
		return nil, fmt.Errorf("notifier: %w: %q", ErrUnknownBackend, cfg.Notifier.Backend)
	}
}

// Run запускает очередь, планировщик и HTTP-сервер; блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if a.queue != nil {
		a.queue.Start(ctx)
	}
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		a.scheduler.Start(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
		stop()
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		runErr = a.server.Shutdown(timeoutCtx)
	}
	<-schedDone
	a.close()
	return runErr
}

func (a *App) close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", sl.Err(err))
		}
	}
}
