package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareDB(t *testing.T) {
	errDown := errors.New("connection refused")

	tests := []struct {
		name         string
		failures     int
		migrateErr   error
		wantErr      error
		wantMigrated bool
	}{
		{name: "ready at once", failures: 0, wantMigrated: true},
		{name: "cold start waits before migrating", failures: 3, wantMigrated: true},
		{name: "never ready", failures: dbReadyAttempts, wantErr: errDown},
		{name: "migration error", failures: 1, migrateErr: errors.New("dirty"), wantMigrated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				calls    []string
				attempts int
			)
			ready := func(context.Context) error {
				attempts++
				calls = append(calls, "ready")
				if attempts <= tt.failures {
					return errDown
				}
				return nil
			}
			migrate := func() error {
				calls = append(calls, "migrate")
				return tt.migrateErr
			}

			err := prepareDB(context.Background(), ready, migrate, time.Millisecond)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.migrateErr != nil:
				assert.ErrorIs(t, err, tt.migrateErr)
			default:
				require.NoError(t, err)
			}
			if tt.wantMigrated {
				require.NotEmpty(t, calls)
				assert.Equal(t, "migrate", calls[len(calls)-1])
				assert.Equal(t, tt.failures+1, attempts)
			} else {
				assert.NotContains(t, calls, "migrate")
				assert.Equal(t, dbReadyAttempts, attempts)
			}
		})
	}
}

func TestPrepareDB_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	migrated := false
	err := prepareDB(ctx,
		func(context.Context) error { return errors.New("down") },
		func() error { migrated = true; return nil },
		time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, migrated)
}
