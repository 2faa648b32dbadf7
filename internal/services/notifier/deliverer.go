package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/metrics"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
)

// DelivererOptions параметры троттлинга и повторов.
type DelivererOptions struct {
	Delay       time.Duration
	Jitter      time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// Deliverer отправляет уведомления по одному, выдерживая паузу между
// сообщениями и повторяя неудачные попытки.
type Deliverer struct {
	sender  Sender
	limiter *rate.Limiter
	opts    DelivererOptions
	log     *slog.Logger
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewDeliverer создаёт доставщика. Нулевая Delay отключает троттлинг.
func NewDeliverer(sender Sender, opts DelivererOptions, log *slog.Logger, m *metrics.Metrics) *Deliverer {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	return &Deliverer{
		sender:  sender,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		log:     log,
		metrics: m,
		sleep:   sleepCtx,
	}
}

// Deliver отправляет уведомление с учётом лимита и повторов.
func (d *Deliverer) Deliver(ctx context.Context, n models.Notification) error {
	const op = "notifier.Deliver"
	log := d.log.With(sl.Op(op), slog.String("to", n.To), slog.String("kind", n.Kind))

	var err error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if werr := d.wait(ctx); werr != nil {
			return fmt.Errorf("%s: %w", op, werr)
		}
		if err = d.sender.Send(ctx, n.To, n.Text); err == nil {
			d.metrics.Notification(metrics.StatusSent)
			return nil
		}
		if attempt < d.opts.MaxAttempts {
			d.metrics.Notification(metrics.StatusRetried)
			log.Warn("send failed, retrying", slog.Int("attempt", attempt), sl.Err(err))
			if serr := d.sleep(ctx, time.Duration(attempt)*d.opts.Backoff); serr != nil {
				return fmt.Errorf("%s: %w", op, serr)
			}
		}
	}
	d.metrics.Notification(metrics.StatusFailed)
	log.Error("notification not delivered", slog.Int("attempts", d.opts.MaxAttempts), sl.Err(err))
	return fmt.Errorf("%s: %w", op, err)
}

// HandleMessage разбирает уведомление из очереди брокера и доставляет его.
// Неразборчивые и окончательно недоставленные сообщения отбрасываются,
// чтобы не зациклить очередь.
func (d *Deliverer) HandleMessage(body []byte) error {
	const op = "notifier.HandleMessage"
	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		d.metrics.Notification(metrics.StatusDropped)
		d.log.Error("failed to unmarshal notification", sl.Op(op), sl.Err(err))
		return nil
	}
	_ = d.Deliver(context.Background(), n)
	return nil
}

func (d *Deliverer) wait(ctx context.Context) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	if d.opts.Jitter > 0 {
		return d.sleep(ctx, rand.N(d.opts.Jitter))
	}
	return nil
}

func sleepCtx(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
