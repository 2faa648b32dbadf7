package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/streaming-reseller/internal/config"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/jwt"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/storage/repository"
)

type fakeStore struct {
	clients  map[string]*models.Client
	config   map[string]string
	licenses map[string]int
	subs     []models.Subscription
	deleted  []int64
	notReady error
	closed   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clients:  map[string]*models.Client{},
		config:   map[string]string{},
		licenses: map[string]int{},
	}
}

func (s *fakeStore) AddClient(_ context.Context, phone, name string) (*models.Client, bool, error) {
	if c, ok := s.clients[phone]; ok {
		return c, false, nil
	}
	c := &models.Client{ID: int64(len(s.clients) + 1), Phone: phone, Name: name}
	s.clients[phone] = c
	return c, true, nil
}

func (s *fakeStore) AddSubscription(_ context.Context, sub models.Subscription) (int64, error) {
	s.subs = append(s.subs, sub)
	return int64(len(s.subs)), nil
}

func (s *fakeStore) GetConfig(_ context.Context, key string) (string, error) {
	v, ok := s.config[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (s *fakeStore) CreateLicense(_ context.Context, key string, days int) error {
	s.licenses[key] = days
	return nil
}

func (s *fakeStore) ActivateLicense(context.Context, string, time.Time) (time.Time, error) {
	return time.Time{}, repository.ErrNotFound
}

func (s *fakeStore) GetClientByPhone(_ context.Context, phone string) (*models.Client, error) {
	c, ok := s.clients[phone]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) DeleteClient(_ context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) Ready(context.Context) error { return s.notReady }

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{Env: "prod", MigrationsPath: "./migrations"}
	cfg.Bot.DefaultCountryCode = "593"
	cfg.WebhookAuth.JWTSecretKey = "secret"
	cfg.WebhookAuth.TokenTTL = time.Hour
	return cfg
}

func run(t *testing.T, store *fakeStore, migrate func(*config.Config) error, args ...string) (string, error) {
	t.Helper()
	d := deps{
		loadConfig: func(string) (*config.Config, error) { return testConfig(), nil },
		openStore:  func(*config.Config) (Store, error) { return store, nil },
		migrate:    migrate,
	}
	root := newRootCmd(d)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", "test.yaml"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportCmd(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clientes.csv")
	csv := "telefono,nombre,servicio,email,clave,vence\n0991234567,Ana,netflix,a@x.com,p1,2025-07-01\n,Sin telefono,Netflix,b@x.com,p2,2025-07-01\n"
	require.NoError(t, os.WriteFile(file, []byte(csv), 0o600))

	store := newFakeStore()
	out, err := run(t, store, nil, "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "created: 1")
	assert.Contains(t, out, "imported: 1")
	assert.Contains(t, out, "skipped: 1")
	assert.Contains(t, out, "header: true")
	assert.True(t, store.closed)

	_, err = run(t, newFakeStore(), nil, "import", filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestDeleteCmd(t *testing.T) {
	store := newFakeStore()
	store.clients["593991234567"] = &models.Client{ID: 9, Phone: "593991234567", Name: "Ana"}

	out, err := run(t, store, nil, "delete", "099", "123", "4567")
	require.NoError(t, err)
	assert.Equal(t, "deleted 593991234567 (Ana)\n", out)
	assert.Equal(t, []int64{9}, store.deleted)

	_, err = run(t, store, nil, "delete", "0997777777")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCheckCmd(t *testing.T) {
	t.Run("active license", func(t *testing.T) {
		store := newFakeStore()
		store.config[models.ConfigLicenseExpiry] = time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)

		out, err := run(t, store, nil, "check")
		require.NoError(t, err)
		assert.Contains(t, out, "database: ok")
		assert.Contains(t, out, "license: active until")
	})

	t.Run("no license", func(t *testing.T) {
		out, err := run(t, newFakeStore(), nil, "check")
		require.NoError(t, err)
		assert.Contains(t, out, "license: none")
	})

	t.Run("schema missing", func(t *testing.T) {
		store := newFakeStore()
		store.notReady = errors.New("required table subscriptions missing")
		_, err := run(t, store, nil, "check")
		assert.Error(t, err)
	})
}

func TestGenkeyCmd(t *testing.T) {
	store := newFakeStore()
	out, err := run(t, store, nil, "genkey", "30")
	require.NoError(t, err)

	key := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(key, "LIC-"))
	assert.Equal(t, 30, store.licenses[key])

	_, err = run(t, store, nil, "genkey", "treinta")
	assert.Error(t, err)
	_, err = run(t, store, nil, "genkey", "0")
	assert.Error(t, err)
}

func TestTokenCmd(t *testing.T) {
	out, err := run(t, newFakeStore(), nil, "token", "wa-gateway-1")
	require.NoError(t, err)

	claims, err := jwt.NewJWTMaker("secret", time.Hour).ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "wa-gateway-1", claims.Subject)
	assert.Equal(t, jwt.RoleGateway, claims.Role)

	_, err = run(t, newFakeStore(), nil, "token", "x", "--role", "root")
	assert.ErrorIs(t, err, jwt.ErrUnknownRole)
}

func TestMigrateCmd(t *testing.T) {
	called := false
	out, err := run(t, newFakeStore(), func(cfg *config.Config) error {
		called = true
		assert.Equal(t, "./migrations", cfg.MigrationsPath)
		return nil
	}, "migrate")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "migrations applied\n", out)
}

func TestRootCmd_RequiresConfig(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	root := newRootCmd(deps{loadConfig: config.Load})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"check"})
	assert.Error(t, root.Execute())
}
