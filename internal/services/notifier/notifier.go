// Package notifier доставка сообщений клиентам: синхронные квитанции и
// очередь массовых уведомлений с паузами между отправками.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/metrics"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
)

// Sender отправляет одно сообщение через транспорт.
type Sender interface {
	Send(ctx context.Context, to, text string) error
}

// Outbox принимает уведомления на отложенную доставку.
type Outbox interface {
	Enqueue(ctx context.Context, n models.Notification) error
}

// Service точка входа для сценариев и планировщика.
type Service struct {
	sender  Sender
	outbox  Outbox
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New создаёт сервис уведомлений.
func New(sender Sender, outbox Outbox, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{sender: sender, outbox: outbox, log: log, metrics: m}
}

// Notify отправляет сообщение сразу, одной попыткой. Ошибка не откатывает
// уже сохранённые данные, вызывающий лишь меняет текст ответа.
func (s *Service) Notify(ctx context.Context, to, text string) error {
	const op = "notifier.Notify"
	if err := s.sender.Send(ctx, to, text); err != nil {
		s.metrics.Notification(metrics.StatusFailed)
		s.log.Warn("direct notification failed", sl.Op(op), slog.String("to", to), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Notification(metrics.StatusSent)
	return nil
}

// Enqueue ставит уведомления в очередь и возвращает, сколько принято.
// Отказ очереди логируется и не прерывает остальные.
func (s *Service) Enqueue(ctx context.Context, ns ...models.Notification) int {
	const op = "notifier.Enqueue"
	queued := 0
	for _, n := range ns {
		if err := s.outbox.Enqueue(ctx, n); err != nil {
			s.metrics.Notification(metrics.StatusDropped)
			s.log.Error("failed to enqueue notification", sl.Op(op), slog.String("to", n.To), sl.Err(err))
			continue
		}
		s.metrics.Notification(metrics.StatusQueued)
		queued++
	}
	return queued
}
