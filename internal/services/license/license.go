// Package license реализует глобальную лицензию бота: проверку срока,
// активацию одноразовых ключей и их генерацию.
package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/storage/repository"
)

// Команды, которые пропускаются при отсутствующей или истёкшей лицензии.
const (
	CommandActivate = "activar"
	CommandGenKey   = "genkey"
)

// RejectionText ответ на команду при неактивной лицензии (без префикса бота).
const RejectionText = "🔒 Licencia inactiva. Usa !activar <clave> para continuar."

// ErrInvalidDuration длительность ключа должна быть положительной.
var ErrInvalidDuration = errors.New("license duration must be positive")

// Repository доступ к ключам и системным настройкам.
type Repository interface {
	GetConfig(ctx context.Context, key string) (string, error)
	CreateLicense(ctx context.Context, key string, durationDays int) error
	ActivateLicense(ctx context.Context, key string, now time.Time) (time.Time, error)
}

// Decision результат проверки сообщения.
type Decision uint8

const (
	// Allow сообщение обрабатывается.
	Allow Decision = iota
	// Reject команда отклоняется фиксированным ответом.
	Reject
	// Drop сообщение молча игнорируется.
	Drop
)

// Status состояние лицензии для команды !licencia.
type Status struct {
	Expiry *time.Time
	Active bool
}

// Gate проверяет лицензию перед выполнением команд. Срок читается из
// хранилища один раз и держится в памяти до следующей активации.
type Gate struct {
	repo    Repository
	isAdmin func(phone string) bool
	log     *slog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	loaded bool
	expiry *time.Time
}

// NewGate создаёт проверку лицензии; isAdmin определяет привилегированных операторов.
func NewGate(repo Repository, isAdmin func(phone string) bool, log *slog.Logger) *Gate {
	return &Gate{
		repo:    repo,
		isAdmin: isAdmin,
		log:     log,
		now:     time.Now,
	}
}

// IsPrivileged сообщает, обходит ли телефон все проверки.
func (g *Gate) IsPrivileged(phone string) bool {
	return g.isAdmin != nil && g.isAdmin(phone)
}

// Check решает судьбу сообщения. command пустой для обычного текста.
func (g *Gate) Check(ctx context.Context, phone, command string) (Decision, error) {
	if g.IsPrivileged(phone) {
		return Allow, nil
	}
	expiry, err := g.Expiry(ctx)
	if err != nil {
		return Drop, err
	}
	if expiry != nil && g.now().Before(*expiry) {
		return Allow, nil
	}
	if command == "" {
		return Drop, nil
	}
	if command == CommandActivate {
		return Allow, nil
	}
	if expiry == nil && command == CommandGenKey {
		return Allow, nil
	}
	return Reject, nil
}

// Expiry возвращает закешированный срок лицензии; nil, если лицензии ещё не было.
func (g *Gate) Expiry(ctx context.Context) (*time.Time, error) {
	const op = "license.Expiry"

	g.mu.RLock()
	if g.loaded {
		expiry := g.expiry
		g.mu.RUnlock()
		return expiry, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loaded {
		return g.expiry, nil
	}

	raw, err := g.repo.GetConfig(ctx, models.ConfigLicenseExpiry)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		g.expiry = nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	default:
		t, perr := time.Parse(time.RFC3339, strings.TrimSpace(raw))
		if perr != nil {
			g.log.Warn("malformed license expiry, treating as absent",
				slog.String("op", op), slog.String("value", raw))
			g.expiry = nil
		} else {
			g.expiry = &t
		}
	}
	g.loaded = true
	return g.expiry, nil
}

// Status возвращает текущее состояние лицензии.
func (g *Gate) Status(ctx context.Context) (Status, error) {
	expiry, err := g.Expiry(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Expiry: expiry, Active: expiry != nil && g.now().Before(*expiry)}, nil
}

// Activate погашает ключ и обновляет кеш срока.
func (g *Gate) Activate(ctx context.Context, key string) (time.Time, error) {
	const op = "license.Activate"

	key = strings.ToUpper(strings.TrimSpace(key))
	expiry, err := g.repo.ActivateLicense(ctx, key, g.now())
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	g.mu.Lock()
	g.expiry = &expiry
	g.loaded = true
	g.mu.Unlock()

	g.log.Info("license activated", slog.String("op", op), slog.Time("expiry", expiry))
	return expiry, nil
}

// Generate создаёт и сохраняет новый ключ на days дней.
func (g *Gate) Generate(ctx context.Context, days int) (string, error) {
	const op = "license.Generate"
	if days <= 0 {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidDuration)
	}
	key := NewKey()
	if err := g.repo.CreateLicense(ctx, key, days); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	g.log.Info("license key generated", slog.String("op", op), slog.Int("days", days))
	return key, nil
}

// NewKey формирует ключ вида LIC-XXXXXXXXXXXXXXXX из случайного UUID.
func NewKey() string {
	id := uuid.New()
	hex := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return "LIC-" + hex[:16]
}
