package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/rabbitmq"
)

// ErrQueueFull локальная очередь переполнена.
var ErrQueueFull = errors.New("notification queue is full")

// ErrQueueClosed очередь уже остановлена.
var ErrQueueClosed = errors.New("notification queue is closed")

// LocalQueue FIFO-очередь в памяти с одним воркером.
type LocalQueue struct {
	deliverer *Deliverer
	items     chan models.Notification
	log       *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	done    chan struct{}
}

// NewLocalQueue создаёт очередь ёмкостью size.
func NewLocalQueue(d *Deliverer, size int, log *slog.Logger) *LocalQueue {
	if size < 1 {
		size = 1
	}
	return &LocalQueue{
		deliverer: d,
		items:     make(chan models.Notification, size),
		log:       log,
		done:      make(chan struct{}),
	}
}

// Start запускает воркер. После отмены ctx воркер дорабатывает уже принятые сообщения
// только до первой ошибки ожидания лимита.
func (q *LocalQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	go func() {
		defer close(q.done)
		for n := range q.items {
			if err := q.deliverer.Deliver(ctx, n); err != nil && ctx.Err() != nil {
				q.log.Warn("queue stopped with pending notifications", sl.Op("notifier.LocalQueue"),
					slog.Int("pending", len(q.items)+1))
				return
			}
		}
	}()
}

// Enqueue кладёт уведомление в очередь без блокировки.
func (q *LocalQueue) Enqueue(_ context.Context, n models.Notification) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.items <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close перестаёт принимать сообщения и ждёт, пока воркер освободит очередь.
func (q *LocalQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
	started := q.started
	q.mu.Unlock()
	if started {
		<-q.done
	}
}

// Len количество ожидающих уведомлений.
func (q *LocalQueue) Len() int {
	return len(q.items)
}

// AMQPOutbox публикует уведомления в RabbitMQ; доставкой занимается notification-sender.
type AMQPOutbox struct {
	mu sync.Mutex
	ch *amqp.Channel
}

// NewAMQPOutbox создаёт outbox поверх настроенного канала.
func NewAMQPOutbox(ch *amqp.Channel) *AMQPOutbox {
	return &AMQPOutbox{ch: ch}
}

// Enqueue публикует уведомление с ключом outbound.
func (o *AMQPOutbox) Enqueue(ctx context.Context, n models.Notification) error {
	const op = "notifier.AMQPOutbox.Enqueue"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := rabbitmq.PublishMessage(o.ch, rabbitmq.NotificationsExchange, rabbitmq.OutboundRoutingKey, n); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
