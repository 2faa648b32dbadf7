package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/streaming-reseller/internal/metrics"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/flow"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/license"
	"github.com/magabrotheeeer/streaming-reseller/internal/session"
	"github.com/magabrotheeeer/streaming-reseller/internal/storage/repository"
)

const (
	ownerChat = "593990000000@c.us"
	prefix    = "🤖 "
)

type MockFlows struct {
	mock.Mock
}

func (m *MockFlows) Start(ctx context.Context, chatID string, kind flow.Kind, args string) (flow.Outcome, error) {
	a := m.Called(ctx, chatID, kind, args)
	return a.Get(0).(flow.Outcome), a.Error(1)
}

func (m *MockFlows) Continue(ctx context.Context, s *session.Session, in flow.Input) (flow.Outcome, error) {
	a := m.Called(ctx, s, in)
	return a.Get(0).(flow.Outcome), a.Error(1)
}

type MockGate struct {
	mock.Mock
}

func (m *MockGate) IsPrivileged(phone string) bool {
	return m.Called(phone).Bool(0)
}

func (m *MockGate) Check(ctx context.Context, phone, command string) (license.Decision, error) {
	a := m.Called(ctx, phone, command)
	return a.Get(0).(license.Decision), a.Error(1)
}

func (m *MockGate) Activate(ctx context.Context, key string) (time.Time, error) {
	a := m.Called(ctx, key)
	return a.Get(0).(time.Time), a.Error(1)
}

func (m *MockGate) Generate(ctx context.Context, days int) (string, error) {
	a := m.Called(ctx, days)
	return a.String(0), a.Error(1)
}

func (m *MockGate) Status(ctx context.Context) (license.Status, error) {
	a := m.Called(ctx)
	return a.Get(0).(license.Status), a.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, to, text string) error {
	return m.Called(ctx, to, text).Error(0)
}

func (m *MockNotifier) Enqueue(ctx context.Context, ns ...models.Notification) int {
	return m.Called(ctx, ns).Int(0)
}

type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) ExpiryReport(ctx context.Context, days int) (string, error) {
	a := m.Called(ctx, days)
	return a.String(0), a.Error(1)
}

// fakeRepo хранилище в памяти для однострочных команд.
type fakeRepo struct {
	clients  map[string]*models.Client
	subs     map[int64][]models.Subscription
	patches  map[int64]models.SubscriptionPatch
	deleted  []int64
	config   map[string]string
	affected []models.AffectedClient
	summary  models.FinancialSummary
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		clients: map[string]*models.Client{},
		subs:    map[int64][]models.Subscription{},
		patches: map[int64]models.SubscriptionPatch{},
		config:  map[string]string{},
	}
}

func (r *fakeRepo) GetClientByPhone(_ context.Context, phone string) (*models.Client, error) {
	c, ok := r.clients[phone]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (r *fakeRepo) ListClientSubscriptions(_ context.Context, clientID int64) ([]models.Subscription, error) {
	return r.subs[clientID], nil
}

func (r *fakeRepo) UpdateSubscription(_ context.Context, id int64, patch models.SubscriptionPatch) error {
	r.patches[id] = patch
	return nil
}

func (r *fakeRepo) UpdateBulkSubscriptions(_ context.Context, _, _, _ string) ([]models.AffectedClient, error) {
	return r.affected, nil
}

func (r *fakeRepo) DeleteClient(_ context.Context, id int64) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeRepo) GetConfig(_ context.Context, key string) (string, error) {
	v, ok := r.config[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (r *fakeRepo) SetConfig(_ context.Context, key, value string) error {
	r.config[key] = value
	return nil
}

func (r *fakeRepo) FinancialSummary(context.Context) (models.FinancialSummary, error) {
	return r.summary, nil
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

type harness struct {
	d        *Dispatcher
	flows    *MockFlows
	gate     *MockGate
	repo     *fakeRepo
	store    *session.MemoryStore
	notifier *MockNotifier
	reporter *MockReporter
	now      time.Time
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		flows:    new(MockFlows),
		gate:     new(MockGate),
		repo:     newFakeRepo(),
		store:    session.NewMemoryStore(),
		notifier: new(MockNotifier),
		reporter: new(MockReporter),
		now:      time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	if opts.Prefix == "" {
		opts.Prefix = prefix
	}
	if opts.DefaultCountryCode == "" {
		opts.DefaultCountryCode = "593"
	}
	if opts.SessionTimeout == 0 {
		opts.SessionTimeout = 2 * time.Minute
	}
	if opts.ReportDays == 0 {
		opts.ReportDays = 7
	}
	h.d = New(h.flows, h.store, h.gate, h.repo, h.notifier, h.reporter, newNoopLogger(), metrics.Noop(), opts)
	h.d.now = func() time.Time { return h.now }
	return h
}

// allow разрешает все сообщения: отправитель не админ, лицензия активна.
func (h *harness) allow() {
	h.gate.On("IsPrivileged", mock.Anything).Return(false).Maybe()
	h.gate.On("Check", mock.Anything, mock.Anything, mock.Anything).Return(license.Allow, nil).Maybe()
}

func (h *harness) send(t *testing.T, body string) []Reply {
	t.Helper()
	return h.d.Dispatch(context.Background(), Message{
		ID:     "m1",
		From:   ownerChat,
		To:     ownerChat,
		FromMe: true,
		Body:   body,
	})
}

func (h *harness) sendText(t *testing.T, body string) string {
	t.Helper()
	replies := h.send(t, body)
	require.Len(t, replies, 1)
	assert.Equal(t, ownerChat, replies[0].ChatID)
	require.True(t, len(replies[0].Text) >= len(prefix))
	assert.Equal(t, prefix, replies[0].Text[:len(prefix)])
	return replies[0].Text[len(prefix):]
}

func (h *harness) openSession(t *testing.T, step session.Step, last time.Time) *session.Session {
	t.Helper()
	s := session.New(ownerChat, step, last)
	require.NoError(t, h.store.Set(context.Background(), s))
	return s
}

func (h *harness) hasSession(t *testing.T) bool {
	t.Helper()
	_, err := h.store.Get(context.Background(), ownerChat)
	if errors.Is(err, session.ErrNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestDispatch_IgnoresOwnReplies(t *testing.T) {
	h := newHarness(t, Options{})
	h.allow()

	assert.Empty(t, h.send(t, "🤖 Menú principal"))
	h.flows.AssertNotCalled(t, "Start", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_OwnerFilter(t *testing.T) {
	tests := []struct {
		name       string
		fromMe     bool
		privileged bool
		wantReply  bool
	}{
		{name: "stranger ignored", fromMe: false, privileged: false, wantReply: false},
		{name: "admin accepted", fromMe: false, privileged: true, wantReply: true},
		{name: "own number accepted", fromMe: true, privileged: false, wantReply: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{OwnerOnly: true})
			h.gate.On("IsPrivileged", "593991111111").Return(tt.privileged)
			h.gate.On("Check", mock.Anything, mock.Anything, mock.Anything).Return(license.Allow, nil).Maybe()

			replies := h.d.Dispatch(context.Background(), Message{
				From:   "593991111111@c.us",
				To:     "593991111111@c.us",
				FromMe: tt.fromMe,
				Body:   "!help",
			})
			if tt.wantReply {
				require.Len(t, replies, 1)
				assert.Contains(t, replies[0].Text, "MENÚ PRINCIPAL")
			} else {
				assert.Empty(t, replies)
				h.gate.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestDispatch_Silence(t *testing.T) {
	h := newHarness(t, Options{})
	h.allow()
	h.repo.config[models.ConfigBotSilenced] = "true"

	assert.Empty(t, h.send(t, "!help"))
	assert.Empty(t, h.send(t, "hola"))

	assert.Contains(t, h.sendText(t, "!despertar"), "activo")
	assert.Equal(t, "false", h.repo.config[models.ConfigBotSilenced])
	assert.Contains(t, h.sendText(t, "!help"), "MENÚ PRINCIPAL")

	assert.Contains(t, h.sendText(t, "!off"), "silenciado")
	assert.Equal(t, "true", h.repo.config[models.ConfigBotSilenced])
	assert.Empty(t, h.send(t, "!help"))
}

func TestDispatch_LicenseLockout(t *testing.T) {
	t.Run("reject never runs the command", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.gate.On("IsPrivileged", mock.Anything).Return(false)
		h.gate.On("Check", mock.Anything, "593990000000", cmdSell).Return(license.Reject, nil).Once()

		assert.Equal(t, license.RejectionText, h.sendText(t, "!vender"))
		h.flows.AssertNotCalled(t, "Start", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("drop stays silent", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.gate.On("IsPrivileged", mock.Anything).Return(false)
		h.gate.On("Check", mock.Anything, mock.Anything, "").Return(license.Drop, nil).Once()
		h.openSession(t, session.StepSaleCategory, h.now)

		assert.Empty(t, h.send(t, "1"))
		h.flows.AssertNotCalled(t, "Continue", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("gate error answers generic text", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.gate.On("IsPrivileged", mock.Anything).Return(false)
		h.gate.On("Check", mock.Anything, mock.Anything, mock.Anything).Return(license.Allow, errors.New("db down"))

		assert.Equal(t, textError, h.sendText(t, "!help"))
	})
}

func TestDispatch_SessionContinuation(t *testing.T) {
	h := newHarness(t, Options{})
	h.allow()
	h.openSession(t, session.StepSaleCategory, h.now.Add(-time.Minute))
	h.flows.On("Continue", mock.Anything, mock.MatchedBy(func(s *session.Session) bool {
		return s.Step == session.StepSaleCategory
	}), flow.Input{Text: "1"}).Return(flow.Outcome{Reply: "Elige la plataforma"}, nil).Once()

	assert.Equal(t, "Elige la plataforma", h.sendText(t, "  1 "))
	h.flows.AssertExpectations(t)
}

func TestDispatch_ExpiredSession(t *testing.T) {
	h := newHarness(t, Options{})
	h.allow()
	h.openSession(t, session.StepSaleCategory, h.now.Add(-3*time.Minute))

	assert.Empty(t, h.send(t, "1"))
	assert.False(t, h.hasSession(t))
	h.flows.AssertNotCalled(t, "Continue", mock.Anything, mock.Anything, mock.Anything)

	h.openSession(t, session.StepSaleCategory, h.now.Add(-3*time.Minute))
	h.flows.On("Start", mock.Anything, ownerChat, flow.KindRenewal, "").
		Return(flow.Outcome{Reply: "Número o nombre del cliente"}, nil).Once()
	assert.Equal(t, "Número o nombre del cliente", h.sendText(t, "!renew"))
}

func TestDispatch_CommandInterruptsSession(t *testing.T) {
	h := newHarness(t, Options{})
	h.allow()
	h.openSession(t, session.StepRenewClient, h.now)

	assert.Contains(t, h.sendText(t, "!help"), "MENÚ PRINCIPAL")
	assert.False(t, h.hasSession(t))
}

func TestDispatch_Cancel(t *testing.T) {
	h := newHarness(t, Options{})
	h.allow()

	h.openSession(t, session.StepSalePrice, h.now)
	assert.Equal(t, textCancelled, h.sendText(t, "!cancel"))
	assert.False(t, h.hasSession(t))

	h.openSession(t, session.StepSalePrice, h.now)
	assert.Equal(t, textCancelled, h.sendText(t, "!X"))

	assert.Equal(t, textNoActive, h.sendText(t, "!cancelar"))
}

func TestDispatch_Aliases(t *testing.T) {
	tests := []struct {
		body string
		kind flow.Kind
		args string
	}{
		{body: "!v", kind: flow.KindSale},
		{body: "!VENTA", kind: flow.KindSale},
		{body: "!renovar 0991234567", kind: flow.KindRenewal, args: "0991234567"},
		{body: "!c ana maría", kind: flow.KindClients, args: "ana maría"},
		{body: "!lista", kind: flow.KindList},
		{body: "!mail a@x.com", kind: flow.KindEmail, args: "a@x.com"},
		{body: "!masivo", kind: flow.KindBroadcast},
		{body: "!importar", kind: flow.KindImport},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.allow()
			h.flows.On("Start", mock.Anything, ownerChat, tt.kind, tt.args).Return(flow.Outcome{Reply: "ok"}, nil).Once()

			assert.Equal(t, "ok", h.sendText(t, tt.body))
			h.flows.AssertExpectations(t)
		})
	}
}

func TestDispatch_UnknownAndPlainText(t *testing.T) {
	h := newHarness(t, Options{})
	h.allow()

	assert.Empty(t, h.send(t, "!nada"))
	assert.Empty(t, h.send(t, "hola"))
	assert.Empty(t, h.send(t, "!"))
}

func TestDispatch_FailureDiscardsSession(t *testing.T) {
	t.Run("handler error", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.allow()
		h.openSession(t, session.StepSalePrice, h.now)
		h.flows.On("Continue", mock.Anything, mock.Anything, mock.Anything).Return(flow.Outcome{}, errors.New("db down")).Once()

		assert.Equal(t, textError, h.sendText(t, "5"))
		assert.False(t, h.hasSession(t))
	})

	t.Run("handler panic", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.allow()
		h.openSession(t, session.StepSalePrice, h.now)
		h.flows.On("Continue", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			panic("boom")
		}).Return(flow.Outcome{}, nil).Once()

		assert.Equal(t, textError, h.sendText(t, "5"))
		assert.False(t, h.hasSession(t))
	})
}

func TestCommand_Update(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		notifyErr  error
		wantReply  string
		wantPatch  bool
		wantNotify bool
	}{
		{
			name:      "usage",
			body:      "!update 0991234567 Netflix",
			wantReply: "Uso: !update [telefono] [servicio] [nuevo_email] [nuevo_pass] [perfil] [pin]",
		},
		{
			name:       "split phone and lower-case service",
			body:       "!update 099 1234567 netflix n@x.com pw Perfil1 1234",
			wantReply:  "✅ Datos actualizados y notificado a 593991234567.",
			wantPatch:  true,
			wantNotify: true,
		},
		{
			name:       "notify failure",
			body:       "!u 0991234567 Netflix n@x.com pw Perfil1 1234",
			notifyErr:  errors.New("gateway down"),
			wantReply:  "✅ Datos actualizados, pero ERROR al notificar a 593991234567.",
			wantPatch:  true,
			wantNotify: true,
		},
		{
			name:      "service not found",
			body:      "!update 0991234567 Spotify n@x.com pw Perfil1 1234",
			wantReply: "❌ No se encontró cliente o servicio activo.",
		},
		{
			name:      "client not found",
			body:      "!update 0997777777 Netflix n@x.com pw Perfil1 1234",
			wantReply: "❌ No se encontró cliente o servicio activo.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.allow()
			h.repo.clients["593991234567"] = &models.Client{ID: 1, Phone: "593991234567", Name: "Ana"}
			h.repo.subs[1] = []models.Subscription{{ID: 7, ClientID: 1, ServiceName: "Netflix", Email: "a@x.com"}}
			if tt.wantNotify {
				h.notifier.On("Notify", mock.Anything, "593991234567", mock.MatchedBy(func(text string) bool {
					return strings.Contains(text, "DATOS ACTUALIZADOS") && strings.Contains(text, "n@x.com")
				})).Return(tt.notifyErr).Once()
			}

			assert.Equal(t, tt.wantReply, h.sendText(t, tt.body))
			patch, ok := h.repo.patches[7]
			assert.Equal(t, tt.wantPatch, ok)
			if tt.wantPatch {
				assert.Equal(t, "n@x.com", *patch.Email)
				assert.Equal(t, "pw", *patch.Password)
				assert.Equal(t, "Perfil1", *patch.ProfileName)
				assert.Equal(t, "1234", *patch.ProfilePin)
				assert.Nil(t, patch.ExpiryDate)
			}
			h.notifier.AssertExpectations(t)
		})
	}
}

func TestCommand_UpdateAll(t *testing.T) {
	h := newHarness(t, Options{})
	h.allow()
	h.repo.affected = []models.AffectedClient{
		{ClientID: 1, Name: "Ana", Phone: "593991111111", ServiceName: "Netflix"},
		{ClientID: 2, Name: "Luis", Phone: "593992222222", ServiceName: "Netflix"},
	}
	h.notifier.On("Enqueue", mock.Anything, mock.MatchedBy(func(ns []models.Notification) bool {
		return len(ns) == 2 && ns[0].Kind == models.NotifyUpdate
	})).Return(2).Once()

	assert.Equal(t, "Uso: !updateall [viejo_email] [nuevo_email] [nuevo_pass]", h.sendText(t, "!updateall a@x.com"))
	assert.Equal(t, "✅ 2 suscripciones actualizadas. Notificados: 2.", h.sendText(t, "!actualizartodo a@x.com b@x.com nueva"))
	h.notifier.AssertExpectations(t)

	h.repo.affected = nil
	assert.Equal(t, "✅ 0 suscripciones actualizadas. Notificados: 0.", h.sendText(t, "!updateall a@x.com b@x.com nueva"))
}

func TestCommand_Delete(t *testing.T) {
	h := newHarness(t, Options{})
	h.allow()
	h.repo.clients["593991234567"] = &models.Client{ID: 3, Phone: "593991234567"}

	assert.Equal(t, "Uso: !delete [telefono]", h.sendText(t, "!delete"))
	assert.Equal(t, "❌ Número inválido.", h.sendText(t, "!delete abc"))
	assert.Equal(t, "❌ Cliente 593997777777 no encontrado.", h.sendText(t, "!borrar 0997777777"))
	assert.Equal(t, "✅ Cliente 593991234567 eliminado.", h.sendText(t, "!eliminar 099 123 4567"))
	assert.Equal(t, []int64{3}, h.repo.deleted)
}

func TestCommand_Expiring(t *testing.T) {
	h := newHarness(t, Options{ReportDays: 7})
	h.allow()
	h.reporter.On("ExpiryReport", mock.Anything, 7).Return("report-7", nil).Once()
	h.reporter.On("ExpiryReport", mock.Anything, 2).Return("report-2", nil).Once()

	assert.Equal(t, "report-7", h.sendText(t, "!vencen"))
	assert.Equal(t, "report-2", h.sendText(t, "!expiring 2"))
	assert.Equal(t, "Uso: !vencen [días]", h.sendText(t, "!vencen mañana"))
	h.reporter.AssertExpectations(t)
}

func TestCommand_Report(t *testing.T) {
	h := newHarness(t, Options{})
	h.allow()
	h.repo.summary = models.FinancialSummary{Revenue: 40, Cost: 15.5, Subscriptions: 10, Accounts: 2}

	text := h.sendText(t, "!ganancias")
	assert.Contains(t, text, "REPORTE FINANCIERO")
	assert.Contains(t, text, "$40.00")
	assert.Contains(t, text, "Ganancia: $24.50")
}

func TestCommand_Country(t *testing.T) {
	h := newHarness(t, Options{})
	h.allow()

	assert.Contains(t, h.sendText(t, "!pais"), "+593")
	assert.Equal(t, "❌ Código inválido. Ejemplo: !pais 593", h.sendText(t, "!pais 12345"))
	assert.Equal(t, "✅ Código de país actualizado a +57.", h.sendText(t, "!country +57"))
	assert.Equal(t, "57", h.repo.config[models.ConfigCountryCode])
	assert.Contains(t, h.sendText(t, "!pais"), "+57")
}

func TestCommand_Activate(t *testing.T) {
	expiry := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		body      string
		setup     func(*MockGate)
		wantReply string
	}{
		{name: "usage", body: "!activar", setup: func(*MockGate) {}, wantReply: "Uso: !activar <clave>"},
		{
			name: "success",
			body: "!activar ABCD-1234",
			setup: func(g *MockGate) {
				g.On("Activate", mock.Anything, "ABCD-1234").Return(expiry, nil).Once()
			},
			wantReply: "✅ Licencia activada hasta 2025-07-15 12:00.",
		},
		{
			name: "used key",
			body: "!activate USED",
			setup: func(g *MockGate) {
				g.On("Activate", mock.Anything, "USED").Return(time.Time{}, repository.ErrLicenseUsed).Once()
			},
			wantReply: "❌ Clave inválida o ya utilizada.",
		},
		{
			name: "unknown key",
			body: "!activar NOPE",
			setup: func(g *MockGate) {
				g.On("Activate", mock.Anything, "NOPE").Return(time.Time{}, repository.ErrNotFound).Once()
			},
			wantReply: "❌ Clave inválida o ya utilizada.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.allow()
			tt.setup(h.gate)

			assert.Equal(t, tt.wantReply, h.sendText(t, tt.body))
		})
	}
}

func TestCommand_GenKey(t *testing.T) {
	t.Run("own number", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.allow()
		h.gate.On("Generate", mock.Anything, 30).Return("KEY-30", nil).Once()

		assert.Equal(t, "Uso: !genkey <días>", h.sendText(t, "!genkey cero"))
		assert.Equal(t, "🔑 Clave generada: *KEY-30* (30 días)", h.sendText(t, "!generar 30"))
	})

	t.Run("stranger refused", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.allow()

		replies := h.d.Dispatch(context.Background(), Message{From: "593991111111@c.us", Body: "!genkey 30"})
		require.Len(t, replies, 1)
		assert.Equal(t, prefix+"❌ Solo un administrador puede generar claves.", replies[0].Text)
		h.gate.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})
}

func TestCommand_LicenseStatus(t *testing.T) {
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	future := time.Now().Add(48 * time.Hour)

	tests := []struct {
		name   string
		status license.Status
		want   string
	}{
		{name: "never activated", status: license.Status{}, want: "Sin licencia"},
		{name: "expired", status: license.Status{Expiry: &past}, want: "vencida desde 2020-01-01"},
		{name: "active", status: license.Status{Expiry: &future, Active: true}, want: "Licencia activa hasta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.allow()
			h.gate.On("Status", mock.Anything).Return(tt.status, nil).Once()

			assert.Contains(t, h.sendText(t, "!licencia"), tt.want)
		})
	}
}
