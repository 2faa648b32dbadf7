// Package sender процесс notification-sender: разбирает очередь исходящих
// уведомлений RabbitMQ и доставляет их через шлюз мессенджера.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/streaming-reseller/internal/config"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/metrics"
	"github.com/magabrotheeeer/streaming-reseller/internal/rabbitmq"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/notifier"
	"github.com/magabrotheeeer/streaming-reseller/internal/transport/gateway"
)

// App процесс доставки уведомлений.
type App struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	deliverer *notifier.Deliverer
	logger    *slog.Logger
}

// New подключается к брокеру и готовит доставщика.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	deliverer := notifier.NewDeliverer(gateway.NewClient(cfg.Gateway), notifier.DelivererOptions{
		Delay:       cfg.Notifier.Delay,
		Jitter:      cfg.Notifier.Jitter,
		MaxAttempts: cfg.Notifier.MaxAttempts,
	}, logger, metrics.New(prometheus.DefaultRegisterer))

	return &App{
		conn:      conn,
		ch:        ch,
		deliverer: deliverer,
		logger:    logger,
	}, nil
}

// Run потребляет очередь до отмены ctx. Один воркер: паузы между
// сообщениями соблюдаются только при последовательной доставке.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.OutboundQueue, 1, a.logger, a.deliverer.HandleMessage)
	if err != nil {
		a.logger.Error("failed to start outbound consumer", sl.Err(err))
		a.close()
		return err
	}
	a.logger.Info("consuming notifications", slog.String("queue", rabbitmq.OutboundQueue))

	<-ctx.Done()
	a.logger.Info("sender shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
