// Package dispatcher принимает входящие сообщения чата и решает, что с ними делать:
// игнорировать, продолжить активный диалог или выполнить команду.
//
// Порядок проверок фиксирован: собственные сообщения бота, фильтр владельца,
// режим тишины, лицензия, активная сессия, разбор команды. Сообщения
// обрабатываются строго по одному.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/metrics"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/flow"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/license"
	"github.com/magabrotheeeer/streaming-reseller/internal/session"
	"github.com/magabrotheeeer/streaming-reseller/internal/storage/repository"
	"github.com/magabrotheeeer/streaming-reseller/internal/transport/gateway"
)

// Message входящее сообщение от шлюза.
type Message struct {
	ID         string             `json:"id"`
	From       string             `json:"from" validate:"required"`
	To         string             `json:"to"`
	FromMe     bool               `json:"from_me"`
	Body       string             `json:"body"`
	Attachment *models.Attachment `json:"attachment,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Reply ответ, который транспорт должен отправить в чат.
type Reply struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Flows движок пошаговых диалогов.
type Flows interface {
	Start(ctx context.Context, chatID string, kind flow.Kind, args string) (flow.Outcome, error)
	Continue(ctx context.Context, s *session.Session, in flow.Input) (flow.Outcome, error)
}

// Gate проверка лицензии.
type Gate interface {
	IsPrivileged(phone string) bool
	Check(ctx context.Context, phone, command string) (license.Decision, error)
	Activate(ctx context.Context, key string) (time.Time, error)
	Generate(ctx context.Context, days int) (string, error)
	Status(ctx context.Context) (license.Status, error)
}

// Repository операции хранилища для однострочных команд.
type Repository interface {
	GetClientByPhone(ctx context.Context, phone string) (*models.Client, error)
	ListClientSubscriptions(ctx context.Context, clientID int64) ([]models.Subscription, error)
	UpdateSubscription(ctx context.Context, id int64, patch models.SubscriptionPatch) error
	UpdateBulkSubscriptions(ctx context.Context, oldEmail, newEmail, newPassword string) ([]models.AffectedClient, error)
	DeleteClient(ctx context.Context, id int64) error
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
	FinancialSummary(ctx context.Context) (models.FinancialSummary, error)
}

// Notifier отправка сообщений клиентам.
type Notifier interface {
	Notify(ctx context.Context, to, text string) error
	Enqueue(ctx context.Context, ns ...models.Notification) int
}

// Reporter отчёт о ближайших окончаниях подписок.
type Reporter interface {
	ExpiryReport(ctx context.Context, days int) (string, error)
}

// Options поведение диспетчера.
type Options struct {
	Prefix             string
	CommandPrefix      string
	OwnerOnly          bool
	DefaultCountryCode string
	SessionTimeout     time.Duration
	ReportDays         int
}

const (
	textError     = "Ocurrió un error al procesar el comando."
	textNoActive  = "No hay ninguna operación activa."
	textCancelled = "❌ Operación cancelada."
)

// Dispatcher маршрутизатор входящих сообщений.
type Dispatcher struct {
	flows    Flows
	store    session.Store
	gate     Gate
	repo     Repository
	notifier Notifier
	reporter Reporter
	log      *slog.Logger
	metrics  *metrics.Metrics
	opts     Options
	now      func() time.Time

	commands map[string]command

	mu       sync.Mutex
	silenced *bool
}

// New создаёт диспетчер.
func New(flows Flows, store session.Store, gate Gate, repo Repository, notifier Notifier,
	reporter Reporter, log *slog.Logger, m *metrics.Metrics, opts Options) *Dispatcher {
	if opts.CommandPrefix == "" {
		opts.CommandPrefix = "!"
	}
	d := &Dispatcher{
		flows:    flows,
		store:    store,
		gate:     gate,
		repo:     repo,
		notifier: notifier,
		reporter: reporter,
		log:      log,
		metrics:  m,
		opts:     opts,
		now:      time.Now,
	}
	d.commands = d.commandTable()
	return d
}

// request разобранное сообщение, общее для всех обработчиков.
type request struct {
	msg        Message
	chatID     string
	sender     string
	privileged bool
	command    string
	args       []string
	rawArgs    string
}

// Dispatch обрабатывает сообщение и возвращает ответы. Ошибки и паники
// обработчиков не выходят наружу: оператор получает общий ответ, сессия удаляется.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) (replies []Reply) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const op = "dispatcher.Dispatch"
	chatID := msg.From
	if msg.FromMe {
		chatID = msg.To
	}
	log := d.log.With(sl.Op(op), sl.Chat(chatID), slog.String("message_id", msg.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling message", slog.Any("panic", r))
			replies = d.fail(ctx, log, chatID)
		}
	}()

	text, result, err := d.handle(ctx, log, chatID, msg)
	if err != nil {
		log.Error("failed to handle message", sl.Err(err))
		return d.fail(ctx, log, chatID)
	}
	d.metrics.Message(result)
	if text == "" {
		return nil
	}
	return []Reply{{ChatID: chatID, Text: d.opts.Prefix + text}}
}

func (d *Dispatcher) fail(ctx context.Context, log *slog.Logger, chatID string) []Reply {
	d.metrics.Message(metrics.ResultError)
	if err := d.store.Delete(ctx, chatID); err != nil {
		log.Warn("cannot discard session", sl.Err(err))
	}
	return []Reply{{ChatID: chatID, Text: d.opts.Prefix + textError}}
}

func (d *Dispatcher) handle(ctx context.Context, log *slog.Logger, chatID string, msg Message) (string, string, error) {
	body := strings.TrimSpace(msg.Body)
	if d.opts.Prefix != "" && strings.HasPrefix(body, strings.TrimSpace(d.opts.Prefix)) {
		return "", metrics.ResultIgnored, nil
	}

	req := &request{
		msg:    msg,
		chatID: chatID,
		sender: gateway.Phone(msg.From),
	}
	req.privileged = d.gate.IsPrivileged(req.sender)
	if d.opts.OwnerOnly && !msg.FromMe && !req.privileged {
		return "", metrics.ResultIgnored, nil
	}

	isCommand := d.parse(body, req)

	silenced, err := d.isSilenced(ctx)
	if err != nil {
		return "", "", err
	}
	if silenced && !(isCommand && req.command == cmdOn) {
		return "", metrics.ResultSilenced, nil
	}

	gateCommand := ""
	if isCommand {
		gateCommand = req.command
	}
	decision, err := d.gate.Check(ctx, req.sender, gateCommand)
	if err != nil {
		return "", "", err
	}
	switch decision {
	case license.Reject:
		log.Info("command rejected by license", slog.String("command", req.command))
		return license.RejectionText, metrics.ResultLocked, nil
	case license.Drop:
		return "", metrics.ResultLocked, nil
	}

	s, err := d.store.Get(ctx, chatID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		s = nil
	case err != nil:
		return "", "", err
	}
	if s != nil && s.Expired(d.now(), d.opts.SessionTimeout) {
		log.Debug("session expired", slog.String("step", s.Step.String()))
		d.metrics.SessionExpired()
		if err := d.store.Delete(ctx, chatID); err != nil {
			return "", "", err
		}
		s = nil
	}

	if s != nil {
		if !isCommand {
			out, err := d.flows.Continue(ctx, s, flow.Input{Text: body, Attachment: msg.Attachment})
			if err != nil {
				return "", "", err
			}
			return out.Reply, metrics.ResultFlow, nil
		}
		// команда всегда прерывает текущий диалог
		if err := d.store.Delete(ctx, chatID); err != nil {
			return "", "", err
		}
		if req.command == cmdCancel {
			d.metrics.Command(cmdCancel)
			return textCancelled, metrics.ResultCommand, nil
		}
	}

	if !isCommand {
		return "", metrics.ResultIgnored, nil
	}
	cmd, ok := d.commands[req.command]
	if !ok {
		log.Debug("unknown command", slog.String("command", req.command))
		return "", metrics.ResultUnknown, nil
	}

	reply, err := cmd(ctx, req)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", req.command, err)
	}
	d.metrics.Command(req.command)
	log.Info("command executed", slog.String("command", req.command))
	return reply, metrics.ResultCommand, nil
}

// parse разбирает "!команда аргументы" и приводит синоним к каноническому имени.
func (d *Dispatcher) parse(body string, req *request) bool {
	if !strings.HasPrefix(body, d.opts.CommandPrefix) {
		return false
	}
	rest := strings.TrimPrefix(body, d.opts.CommandPrefix)
	name, args, _ := strings.Cut(rest, " ")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	req.command = name
	req.rawArgs = strings.TrimSpace(args)
	req.args = strings.Fields(args)
	return true
}

// isSilenced флаг тишины читается из system_config один раз и дальше меняется только командами.
func (d *Dispatcher) isSilenced(ctx context.Context) (bool, error) {
	if d.silenced != nil {
		return *d.silenced, nil
	}
	raw, err := d.repo.GetConfig(ctx, models.ConfigBotSilenced)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	v := raw == "true"
	d.silenced = &v
	return v, nil
}

func (d *Dispatcher) setSilenced(ctx context.Context, v bool) error {
	if err := d.repo.SetConfig(ctx, models.ConfigBotSilenced, fmt.Sprintf("%t", v)); err != nil {
		return err
	}
	d.silenced = &v
	return nil
}

// country код страны для нормализации телефонов.
func (d *Dispatcher) country(ctx context.Context) string {
	cc, err := d.repo.GetConfig(ctx, models.ConfigCountryCode)
	if err != nil || cc == "" {
		return d.opts.DefaultCountryCode
	}
	return cc
}
