package flow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/streaming-reseller/internal/lib/normalize"
	"github.com/magabrotheeeer/streaming-reseller/internal/metrics"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/session"
	"github.com/magabrotheeeer/streaming-reseller/internal/storage/repository"
)

// fakeRepo хранилище в памяти с той же семантикой мягкого удаления, что и PostgreSQL.
// Email, как и в хранилище, приводится к нижнему регистру при записи и сравнивается точно.
type fakeRepo struct {
	mu         sync.Mutex
	clients    map[int64]*models.Client
	subs       map[int64]*models.Subscription
	costs      map[string]models.AccountCost
	config     map[string]string
	nextClient int64
	nextSub    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		clients: make(map[int64]*models.Client),
		subs:    make(map[int64]*models.Subscription),
		costs:   make(map[string]models.AccountCost),
		config:  make(map[string]string),
	}
}

func (r *fakeRepo) seedClient(phone, name string) int64 {
	c, _, _ := r.AddClient(context.Background(), phone, name)
	return c.ID
}

func (r *fakeRepo) seedSub(clientID int64, service, email, password string, expiry time.Time) int64 {
	id, _ := r.AddSubscription(context.Background(), models.Subscription{
		ClientID: clientID, ServiceName: service, Email: email, Password: password,
		ExpiryDate: expiry, ProfileName: "N/A", ProfilePin: "N/A", IsActive: true,
	})
	return id
}

func (r *fakeRepo) sub(id int64) models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.subs[id]
}

func (r *fakeRepo) client(id int64) models.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.clients[id]
}

func (r *fakeRepo) activeSubs() []models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Subscription
	for _, s := range r.sortedSubs() {
		if s.IsActive && !r.clients[s.ClientID].IsDeleted {
			out = append(out, *s)
		}
	}
	return out
}

func (r *fakeRepo) sortedSubs() []*models.Subscription {
	out := make([]*models.Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeRepo) visible(s *models.Subscription) bool {
	return s.IsActive && !r.clients[s.ClientID].IsDeleted
}

func (r *fakeRepo) detail(s *models.Subscription) models.SubscriptionDetail {
	c := r.clients[s.ClientID]
	return models.SubscriptionDetail{Subscription: *s, ClientName: c.Name, ClientPhone: c.Phone}
}

func (r *fakeRepo) affected(s *models.Subscription) models.AffectedClient {
	c := r.clients[s.ClientID]
	return models.AffectedClient{
		ClientID: c.ID, Name: c.Name, Phone: c.Phone, SubscriptionID: s.ID,
		ServiceName: s.ServiceName, ProfileName: s.ProfileName, ProfilePin: s.ProfilePin,
	}
}

func (r *fakeRepo) GetClientByPhone(_ context.Context, phone string) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.Phone == phone && !c.IsDeleted {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRepo) AddClient(_ context.Context, phone, name string) (*models.Client, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.Phone == phone {
			if c.IsDeleted {
				c.Name = name
				c.IsDeleted = false
			}
			cp := *c
			return &cp, false, nil
		}
	}
	r.nextClient++
	c := &models.Client{ID: r.nextClient, Phone: phone, Name: name}
	r.clients[c.ID] = c
	cp := *c
	return &cp, true, nil
}

func (r *fakeRepo) UpdateClient(_ context.Context, id int64, name, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok || c.IsDeleted {
		return repository.ErrNotFound
	}
	for _, other := range r.clients {
		if other.ID != id && other.Phone == phone {
			return repository.ErrPhoneTaken
		}
	}
	c.Name, c.Phone = name, phone
	return nil
}

func (r *fakeRepo) DeleteClient(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok || c.IsDeleted {
		return repository.ErrNotFound
	}
	c.IsDeleted = true
	for _, s := range r.subs {
		if s.ClientID == id {
			s.IsActive = false
		}
	}
	return nil
}

func (r *fakeRepo) SearchClients(_ context.Context, term string, limit int) ([]models.ClientSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	term = strings.ToLower(term)
	var out []models.ClientSummary
	for _, c := range r.clients {
		if c.IsDeleted || !(strings.Contains(strings.ToLower(c.Name), term) || strings.Contains(c.Phone, term)) {
			continue
		}
		cs := models.ClientSummary{Client: *c}
		for _, s := range r.subs {
			if s.ClientID == c.ID && s.IsActive {
				cs.SubscriptionCount++
			}
		}
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) ListActiveClients(_ context.Context) ([]models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[int64]bool)
	var out []models.Client
	for _, s := range r.sortedSubs() {
		if r.visible(s) && !seen[s.ClientID] {
			seen[s.ClientID] = true
			out = append(out, *r.clients[s.ClientID])
		}
	}
	return out, nil
}

func (r *fakeRepo) AddSubscription(_ context.Context, sub models.Subscription) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	sub.ID = r.nextSub
	sub.Email = normalize.Email(sub.Email)
	r.subs[sub.ID] = &sub
	return sub.ID, nil
}

func (r *fakeRepo) ListClientSubscriptions(_ context.Context, clientID int64) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Subscription
	for _, s := range r.sortedSubs() {
		if s.ClientID == clientID && r.visible(s) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateSubscription(_ context.Context, id int64, p models.SubscriptionPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || !r.visible(s) {
		return repository.ErrNotFound
	}
	if p.ExpiryDate != nil {
		s.ExpiryDate = *p.ExpiryDate
	}
	if p.Email != nil {
		s.Email = normalize.Email(*p.Email)
	}
	if p.Password != nil {
		s.Password = *p.Password
	}
	if p.ProfileName != nil {
		s.ProfileName = *p.ProfileName
	}
	if p.ProfilePin != nil {
		s.ProfilePin = *p.ProfilePin
	}
	if p.SalePrice != nil {
		s.SalePrice = *p.SalePrice
	}
	return nil
}

func (r *fakeRepo) DeleteSubscription(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || !r.visible(s) {
		return repository.ErrNotFound
	}
	s.IsActive = false
	return nil
}

func (r *fakeRepo) GetSubscriptionCount(_ context.Context, service, email string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.subs {
		if r.visible(s) && s.ServiceName == service && s.Email == normalize.Email(email) {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) ListAccounts(_ context.Context, service string) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var details []models.SubscriptionDetail
	for _, s := range r.sortedSubs() {
		if r.visible(s) && s.ServiceName == service {
			details = append(details, r.detail(s))
		}
	}
	return models.GroupAccounts(details), nil
}

func (r *fakeRepo) GetSubscriptionsByEmail(_ context.Context, email string) ([]models.SubscriptionDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SubscriptionDetail
	for _, s := range r.sortedSubs() {
		if r.visible(s) && s.Email == normalize.Email(email) {
			out = append(out, r.detail(s))
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateBulkSubscriptions(_ context.Context, oldEmail, newEmail, newPassword string) ([]models.AffectedClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	oldEmail, newEmail = normalize.Email(oldEmail), normalize.Email(newEmail)
	var out []models.AffectedClient
	for _, s := range r.sortedSubs() {
		if r.visible(s) && s.Email == oldEmail {
			s.Email, s.Password = newEmail, newPassword
			out = append(out, r.affected(s))
		}
	}
	if cost, ok := r.costs[oldEmail]; ok && oldEmail != newEmail {
		if _, exists := r.costs[newEmail]; !exists {
			delete(r.costs, oldEmail)
			cost.Email = newEmail
			r.costs[newEmail] = cost
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteSubscriptionsByEmail(_ context.Context, email string) ([]models.AffectedClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AffectedClient
	for _, s := range r.sortedSubs() {
		if r.visible(s) && s.Email == normalize.Email(email) {
			s.IsActive = false
			out = append(out, r.affected(s))
		}
	}
	return out, nil
}

func (r *fakeRepo) GetAccountCost(_ context.Context, email string) (*models.AccountCost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.costs[normalize.Email(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *fakeRepo) SetAccountCost(_ context.Context, cost models.AccountCost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cost.Email = normalize.Email(cost.Email)
	r.costs[cost.Email] = cost
	return nil
}

func (r *fakeRepo) GetConfig(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.config[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

// fakeNotifier запоминает синхронные отправки и очередь.
type fakeNotifier struct {
	mu       sync.Mutex
	fail     bool
	sent     []models.Notification
	enqueued []models.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, to, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("gateway down")
	}
	n.sent = append(n.sent, models.Notification{To: to, Text: text})
	return nil
}

func (n *fakeNotifier) Enqueue(_ context.Context, ns ...models.Notification) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enqueued = append(n.enqueued, ns...)
	return len(ns)
}

type fakeImporter struct {
	report   models.ImportReport
	err      error
	filename string
}

func (f *fakeImporter) Import(_ context.Context, filename string, _ []byte) (models.ImportReport, error) {
	f.filename = filename
	return f.report, f.err
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

const testChat = "593990000000@c.us"

type harness struct {
	engine   *Engine
	repo     *fakeRepo
	store    *session.MemoryStore
	notifier *fakeNotifier
	importer *fakeImporter
}

func newHarness() *harness {
	h := &harness{
		repo:     newFakeRepo(),
		store:    session.NewMemoryStore(),
		notifier: &fakeNotifier{},
		importer: &fakeImporter{},
	}
	h.engine = New(h.repo, h.store, h.notifier, h.importer,
		slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.Noop(), "593")
	h.engine.now = func() time.Time { return testNow }
	return h
}

func (h *harness) start(t *testing.T, kind Kind, args string) Outcome {
	t.Helper()
	out, err := h.engine.Start(context.Background(), testChat, kind, args)
	require.NoError(t, err)
	return out
}

// send отвечает на текущий шаг; сессия должна существовать.
func (h *harness) send(t *testing.T, text string) Outcome {
	t.Helper()
	return h.sendInput(t, Input{Text: text})
}

func (h *harness) sendInput(t *testing.T, in Input) Outcome {
	t.Helper()
	s, err := h.store.Get(context.Background(), testChat)
	require.NoError(t, err, "session expected before %q", in.Text)
	out, err := h.engine.Continue(context.Background(), s, in)
	require.NoError(t, err)
	return out
}

// step текущий шаг; StepIdle, если сессии нет.
func (h *harness) step(t *testing.T) session.Step {
	t.Helper()
	s, err := h.store.Get(context.Background(), testChat)
	if errors.Is(err, session.ErrNotFound) {
		return session.StepIdle
	}
	require.NoError(t, err)
	return s.Step
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
