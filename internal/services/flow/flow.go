// Package flow реализует пошаговые диалоги оператора: продажу, продление,
// управление клиентами и общими аккаунтами, рассылку и импорт.
//
// Каждый шаг сессии обслуживается отдельным обработчиком из таблицы
// handlers. Обработчик сначала фиксирует изменения в хранилище, а
// уведомления возвращает в Outcome: движок ставит их в очередь только
// после успешного завершения шага.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/streaming-reseller/internal/lib/normalize"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/metrics"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/session"
	"github.com/magabrotheeeer/streaming-reseller/internal/storage/repository"
)

// Kind вид диалога, запускаемого командой.
type Kind uint8

// Виды диалогов.
const (
	KindSale Kind = iota + 1
	KindRenewal
	KindClients
	KindList
	KindEmail
	KindBroadcast
	KindImport
)

// Repository операции хранилища, нужные диалогам.
type Repository interface {
	GetClientByPhone(ctx context.Context, phone string) (*models.Client, error)
	AddClient(ctx context.Context, phone, name string) (*models.Client, bool, error)
	UpdateClient(ctx context.Context, id int64, name, phone string) error
	DeleteClient(ctx context.Context, id int64) error
	SearchClients(ctx context.Context, term string, limit int) ([]models.ClientSummary, error)
	ListActiveClients(ctx context.Context) ([]models.Client, error)

	AddSubscription(ctx context.Context, sub models.Subscription) (int64, error)
	ListClientSubscriptions(ctx context.Context, clientID int64) ([]models.Subscription, error)
	UpdateSubscription(ctx context.Context, id int64, patch models.SubscriptionPatch) error
	DeleteSubscription(ctx context.Context, id int64) error
	GetSubscriptionCount(ctx context.Context, service, email string) (int, error)
	ListAccounts(ctx context.Context, service string) ([]models.Account, error)
	GetSubscriptionsByEmail(ctx context.Context, email string) ([]models.SubscriptionDetail, error)
	UpdateBulkSubscriptions(ctx context.Context, oldEmail, newEmail, newPassword string) ([]models.AffectedClient, error)
	DeleteSubscriptionsByEmail(ctx context.Context, email string) ([]models.AffectedClient, error)

	GetAccountCost(ctx context.Context, email string) (*models.AccountCost, error)
	SetAccountCost(ctx context.Context, cost models.AccountCost) error

	GetConfig(ctx context.Context, key string) (string, error)
}

// Notifier отправка сообщений клиентам.
type Notifier interface {
	// Notify одна синхронная попытка, результат влияет на ответ оператору.
	Notify(ctx context.Context, to, text string) error
	// Enqueue ставит сообщения в очередь и возвращает число принятых.
	Enqueue(ctx context.Context, ns ...models.Notification) int
}

// Importer разбор файла с клиентами.
type Importer interface {
	Import(ctx context.Context, filename string, data []byte) (models.ImportReport, error)
}

// Input ответ оператора на текущем шаге.
type Input struct {
	Text       string
	Attachment *models.Attachment
}

// Outcome результат шага: ответ оператору и уведомления клиентам.
type Outcome struct {
	Reply         string
	Notifications []models.Notification
}

// InputError ввод не прошёл проверку; шаг не меняется, оператор получает Prompt.
type InputError struct {
	Prompt string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Prompt
}

func invalidInput(prompt string) error {
	return &InputError{Prompt: prompt}
}

type handler func(ctx context.Context, s *session.Session, in Input) (Outcome, error)

type starter func(ctx context.Context, s *session.Session, args string) (Outcome, error)

// DefaultSearchLimit сколько клиентов показывать в результатах поиска.
const DefaultSearchLimit = 15

// Engine исполняет шаги диалогов.
type Engine struct {
	repo        Repository
	store       session.Store
	notifier    Notifier
	importer    Importer
	log         *slog.Logger
	metrics     *metrics.Metrics
	countryCode string
	searchLimit int
	now         func() time.Time

	handlers map[session.Step]handler
	starters map[Kind]starter
}

// New создаёт движок. countryCode используется, пока в system_config нет country_code.
func New(repo Repository, store session.Store, notifier Notifier, importer Importer,
	log *slog.Logger, m *metrics.Metrics, countryCode string) *Engine {
	e := &Engine{
		repo:        repo,
		store:       store,
		notifier:    notifier,
		importer:    importer,
		log:         log,
		metrics:     m,
		countryCode: countryCode,
		searchLimit: DefaultSearchLimit,
		now:         time.Now,
	}
	e.handlers = map[session.Step]handler{
		session.StepSaleCategory:    e.saleCategory,
		session.StepSalePlatform:    e.salePlatform,
		session.StepSaleClient:      e.saleClient,
		session.StepSaleCredentials: e.saleCredentials,
		session.StepSaleOverbooking: e.saleOverbooking,
		session.StepSaleCost:        e.saleCost,
		session.StepSaleProfile:     e.saleProfile,
		session.StepSalePrice:       e.salePrice,

		session.StepRenewClient:     e.renewClient,
		session.StepRenewPickClient: e.renewPickClient,
		session.StepRenewPickSub:    e.renewPickSub,
		session.StepRenewMonths:     e.renewMonths,
		session.StepRenewConfirm:    e.renewConfirm,

		session.StepClientsPick:          e.clientsPick,
		session.StepClientsAction:        e.clientsAction,
		session.StepClientsPickSub:       e.clientsPickSub,
		session.StepClientsSubAction:     e.clientsSubAction,
		session.StepClientsConfirmDelete: e.clientsConfirmDelete,
		session.StepClientsEditName:      e.clientsEditName,
		session.StepClientsEditPhone:     e.clientsEditPhone,

		session.StepListPlatform:  e.listPlatform,
		session.StepListAccount:   e.listAccount,
		session.StepAccountAction: e.accountAction,
		session.StepEmailMenu:     e.emailMenu,

		session.StepAccountNewPassword:    e.accountNewPassword,
		session.StepAccountNewCredentials: e.accountNewCredentials,
		session.StepAccountConfirmDelete:  e.accountConfirmDelete,
		session.StepAccountPickMember:     e.accountPickMember,
		session.StepMemberAction:          e.memberAction,
		session.StepMemberEditProfile:     e.memberEditProfile,
		session.StepMemberEditPin:         e.memberEditPin,
		session.StepMemberEditName:        e.memberEditName,
		session.StepMemberEditPhone:       e.memberEditPhone,
		session.StepMemberEditExpiry:      e.memberEditExpiry,

		session.StepBroadcastMessage: e.broadcastMessage,
		session.StepBroadcastConfirm: e.broadcastConfirm,

		session.StepImportAwaitFile: e.importAwaitFile,
	}
	e.starters = map[Kind]starter{
		KindSale:      e.startSale,
		KindRenewal:   e.startRenewal,
		KindClients:   e.startClients,
		KindList:      e.startList,
		KindEmail:     e.startEmail,
		KindBroadcast: e.startBroadcast,
		KindImport:    e.startImport,
	}
	return e
}

// Start открывает диалог kind для чата и возвращает первый вопрос.
// Если диалог завершился сразу (например, ничего не найдено), сессия не сохраняется.
func (e *Engine) Start(ctx context.Context, chatID string, kind Kind, args string) (Outcome, error) {
	const op = "flow.Start"
	log := e.log.With(sl.Op(op), sl.Chat(chatID))

	start, ok := e.starters[kind]
	if !ok {
		return Outcome{}, fmt.Errorf("%s: unknown flow kind %d", op, kind)
	}

	s := session.New(chatID, session.StepIdle, e.now())
	out, err := start(ctx, s, strings.TrimSpace(args))
	var inputErr *InputError
	switch {
	case errors.As(err, &inputErr):
		out = Outcome{Reply: inputErr.Prompt}
	case err != nil:
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := e.save(ctx, s); err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	log.Debug("flow started", slog.String("step", s.Step.String()))
	e.enqueue(ctx, log, out.Notifications)
	return out, nil
}

// Continue передаёт ответ оператора обработчику текущего шага сессии.
// Ошибка означает сбой хранилища или внутреннюю ошибку; сессию в этом
// случае удаляет вызывающая сторона.
func (e *Engine) Continue(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	const op = "flow.Continue"
	log := e.log.With(sl.Op(op), sl.Chat(s.ChatID), slog.String("step", s.Step.String()))

	in.Text = strings.TrimSpace(in.Text)
	if IsCancel(in.Text) {
		if err := e.store.Delete(ctx, s.ChatID); err != nil {
			return Outcome{}, fmt.Errorf("%s: %w", op, err)
		}
		return Outcome{Reply: textCancelled}, nil
	}

	h, ok := e.handlers[s.Step]
	if !ok {
		return Outcome{}, fmt.Errorf("%s: no handler for step %s", op, s.Step)
	}

	out, err := h(ctx, s, in)
	var inputErr *InputError
	switch {
	case errors.As(err, &inputErr):
		log.Debug("input rejected", slog.String("text", in.Text))
		out = Outcome{Reply: inputErr.Prompt}
	case err != nil:
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}

	s.LastInteraction = e.now()
	if err := e.save(ctx, s); err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	e.enqueue(ctx, log, out.Notifications)
	return out, nil
}

// HasHandler сообщает, обслуживается ли шаг.
func (e *Engine) HasHandler(step session.Step) bool {
	_, ok := e.handlers[step]
	return ok
}

func (e *Engine) save(ctx context.Context, s *session.Session) error {
	if s.Done() {
		return e.store.Delete(ctx, s.ChatID)
	}
	return e.store.Set(ctx, s)
}

func (e *Engine) enqueue(ctx context.Context, log *slog.Logger, ns []models.Notification) {
	if len(ns) == 0 {
		return
	}
	queued := e.notifier.Enqueue(ctx, ns...)
	if queued < len(ns) {
		log.Warn("notifications dropped", slog.Int("total", len(ns)), slog.Int("queued", queued))
	}
}

// country код страны для нормализации телефонов.
func (e *Engine) country(ctx context.Context) string {
	cc, err := e.repo.GetConfig(ctx, models.ConfigCountryCode)
	if err != nil || cc == "" {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			e.log.Warn("cannot read country code", sl.Err(err))
		}
		return e.countryCode
	}
	return cc
}

func (e *Engine) today() time.Time {
	return normalize.Day(e.now())
}

var cancelTokens = map[string]struct{}{
	"cancel":   {},
	"cancelar": {},
	"!cancel":  {},
	"x":        {},
}

// IsCancel сообщает, что ввод отменяет диалог на любом шаге.
func IsCancel(text string) bool {
	_, ok := cancelTokens[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

func isBack(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "0" || t == "volver"
}

func isYes(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "si" || t == "sí"
}

func isNo(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "no")
}

// pick разбирает номер пункта меню 1..n и возвращает индекс с нуля.
func pick(text string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

func option(text string) int {
	i, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return -1
	}
	return i
}

func subRef(s models.Subscription) session.SubRef {
	return session.SubRef{
		ID:          s.ID,
		ServiceName: s.ServiceName,
		Email:       s.Email,
		Password:    s.Password,
		ProfileName: s.ProfileName,
		ProfilePin:  s.ProfilePin,
		ExpiryDate:  s.ExpiryDate,
	}
}

func subRefs(subs []models.Subscription) []session.SubRef {
	out := make([]session.SubRef, 0, len(subs))
	for _, s := range subs {
		out = append(out, subRef(s))
	}
	return out
}

func clientRef(c models.Client) session.ClientRef {
	return session.ClientRef{ID: c.ID, Name: c.Name, Phone: c.Phone}
}

func memberRef(d models.SubscriptionDetail) session.MemberRef {
	return session.MemberRef{
		SubscriptionID: d.ID,
		ClientID:       d.ClientID,
		ClientName:     d.ClientName,
		ClientPhone:    d.ClientPhone,
		ServiceName:    d.ServiceName,
		ProfileName:    d.ProfileName,
		ProfilePin:     d.ProfilePin,
		ExpiryDate:     d.ExpiryDate,
	}
}
