// Package scheduler ежедневные задачи бота: напоминания клиентам об окончании
// подписки и отчёт о ближайших окончаниях для оператора.
//
// Задачи читают только хранилище и не трогают диалоговые сессии.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/streaming-reseller/internal/lib/normalize"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
)

// ErrInvalidClock время запуска задано не в формате HH:MM.
var ErrInvalidClock = errors.New("invalid clock, want HH:MM")

// SubscriptionRepository источник подписок с близким окончанием.
type SubscriptionRepository interface {
	GetExpiringSubscriptions(ctx context.Context, days int) ([]models.SubscriptionDetail, error)
}

// Notifier очередь исходящих сообщений.
type Notifier interface {
	Enqueue(ctx context.Context, ns ...models.Notification) int
}

// Settings расписание и получатель служебных сообщений.
type Settings struct {
	OperatorChat string
	Prefix       string
	ReminderDays int
	ReportDays   int
	RemindersAt  string
	ReportAt     string
	Location     *time.Location
}

// clock время суток запуска задачи.
type clock struct {
	hour, minute int
}

func parseClock(s string) (clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return clock{hour: t.Hour(), minute: t.Minute()}, nil
}

// next ближайший момент строго после now.
func (c clock) next(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	t := time.Date(local.Year(), local.Month(), local.Day(), c.hour, c.minute, 0, 0, loc)
	if !t.After(local) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// SchedulerService выполняет ежедневные задачи.
type SchedulerService struct {
	repo     SubscriptionRepository
	notifier Notifier
	log      *slog.Logger
	settings Settings

	remindersAt clock
	reportAt    clock
	now         func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo SubscriptionRepository, notifier Notifier, log *slog.Logger, settings Settings) (*SchedulerService, error) {
	const op = "scheduler.NewSchedulerService"

	remindersAt, err := parseClock(settings.RemindersAt)
	if err != nil {
		return nil, fmt.Errorf("%s: reminders_at: %w", op, err)
	}
	reportAt, err := parseClock(settings.ReportAt)
	if err != nil {
		return nil, fmt.Errorf("%s: report_at: %w", op, err)
	}
	if settings.Location == nil {
		settings.Location = time.Local
	}
	return &SchedulerService{
		repo:        repo,
		notifier:    notifier,
		log:         log,
		settings:    settings,
		remindersAt: remindersAt,
		reportAt:    reportAt,
		now:         time.Now,
	}, nil
}

// Start запускает обе задачи и блокируется до отмены ctx.
func (s *SchedulerService) Start(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.daily(ctx, "reminders", s.remindersAt, func(ctx context.Context) error {
			_, err := s.RunDailyReminders(ctx)
			return err
		})
	}()
	s.daily(ctx, "expiry_report", s.reportAt, s.RunExpiryReport)
	<-done
}

// daily ждёт ближайшего at, затем повторяет job каждые 24 часа.
func (s *SchedulerService) daily(ctx context.Context, name string, at clock, job func(context.Context) error) {
	log := s.log.With(slog.String("job", name))
	first := at.next(s.now(), s.settings.Location)
	log.Info("job scheduled", slog.Time("first_run", first))

	timer := time.NewTimer(time.Until(first))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	s.run(ctx, log, job)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, log, job)
		}
	}
}

func (s *SchedulerService) run(ctx context.Context, log *slog.Logger, job func(context.Context) error) {
	log.Info("job started")
	if err := job(ctx); err != nil {
		log.Error("job failed", sl.Err(err))
	}
}

// RunDailyReminders ставит в очередь напоминание по каждой подписке,
// истекающей в ближайшие ReminderDays дней, и сообщает оператору итог.
func (s *SchedulerService) RunDailyReminders(ctx context.Context) (int, error) {
	const op = "scheduler.RunDailyReminders"
	log := s.log.With(sl.Op(op))

	subs, err := s.repo.GetExpiringSubscriptions(ctx, s.settings.ReminderDays)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	notes := make([]models.Notification, 0, len(subs)+1)
	for _, sub := range subs {
		notes = append(notes, models.Notification{
			To:   sub.ClientPhone,
			Text: ReminderText(sub),
			Kind: models.NotifyReminder,
		})
	}
	queued := 0
	if len(notes) > 0 {
		queued = s.notifier.Enqueue(ctx, notes...)
	}
	log.Info("reminders queued", slog.Int("found", len(subs)), slog.Int("queued", queued))

	if s.settings.OperatorChat != "" {
		s.notifier.Enqueue(ctx, models.Notification{
			To:   s.settings.OperatorChat,
			Text: fmt.Sprintf("%sRecordatorios diarios ejecutados. En cola: %d.", s.settings.Prefix, queued),
			Kind: models.NotifyReport,
		})
	}
	return queued, nil
}

// ReminderText напоминание клиенту.
func ReminderText(sub models.SubscriptionDetail) string {
	return fmt.Sprintf("Hola %s, tu suscripción de %s vence el %s. Por favor contacta para renovar.",
		sub.ClientName, sub.ServiceName, normalize.ISODate(sub.ExpiryDate))
}

// RunExpiryReport отправляет оператору список подписок, истекающих в ближайшие ReportDays дней.
func (s *SchedulerService) RunExpiryReport(ctx context.Context) error {
	const op = "scheduler.RunExpiryReport"

	if s.settings.OperatorChat == "" {
		s.log.Warn("operator chat is not configured, report skipped", sl.Op(op))
		return nil
	}
	report, err := s.ExpiryReport(ctx, s.settings.ReportDays)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.notifier.Enqueue(ctx, models.Notification{
		To:   s.settings.OperatorChat,
		Text: s.settings.Prefix + report,
		Kind: models.NotifyReport,
	})
	return nil
}

// ExpiryReport текст отчёта о подписках, истекающих в ближайшие days дней,
// сгруппированный по дате окончания.
func (s *SchedulerService) ExpiryReport(ctx context.Context, days int) (string, error) {
	const op = "scheduler.ExpiryReport"

	subs, err := s.repo.GetExpiringSubscriptions(ctx, days)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(subs) == 0 {
		return fmt.Sprintf("✅ No hay suscripciones que venzan en los próximos %d días.", days), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 *VENCIMIENTOS (%d días)*\n", days)
	last := ""
	for _, sub := range subs {
		date := normalize.ISODate(sub.ExpiryDate)
		if date != last {
			fmt.Fprintf(&b, "\n*%s*\n", date)
			last = date
		}
		fmt.Fprintf(&b, "• %s (%s) | %s | %s\n", sub.ClientName, sub.ClientPhone, sub.ServiceName, sub.Email)
	}
	fmt.Fprintf(&b, "\nTotal: %d", len(subs))
	return b.String(), nil
}
