package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/streaming-reseller/internal/lib/normalize"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
)

// GetAccountCost возвращает себестоимость аккаунта по email.
func (s *Storage) GetAccountCost(ctx context.Context, email string) (*models.AccountCost, error) {
	const op = "storage.GetAccountCost"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var c models.AccountCost
	err := s.DB.QueryRowContext(ctx,
		`SELECT email, service_name, cost_price, bought_date FROM account_costs WHERE email = $1`, normalize.Email(email)).
		Scan(&c.Email, &c.ServiceName, &c.CostPrice, &c.BoughtDate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return &c, nil
}

// SetAccountCost создаёт или перезаписывает себестоимость аккаунта.
func (s *Storage) SetAccountCost(ctx context.Context, cost models.AccountCost) error {
	const op = "storage.SetAccountCost"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO account_costs (email, service_name, cost_price, bought_date)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (email) DO UPDATE
			  SET service_name = EXCLUDED.service_name,
			      cost_price = EXCLUDED.cost_price,
			      bought_date = EXCLUDED.bought_date`
	if _, err := s.DB.ExecContext(ctx, query, normalize.Email(cost.Email), cost.ServiceName, cost.CostPrice, cost.BoughtDate); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CreateLicense сохраняет новый неиспользованный ключ.
func (s *Storage) CreateLicense(ctx context.Context, key string, durationDays int) error {
	const op = "storage.CreateLicense"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO licenses (key, duration_days) VALUES ($1, $2)`, key, durationDays); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ActivateLicense атомарно погашает ключ и продлевает license_expiry от
// max(текущий срок, now) на длительность ключа. Возвращает новый срок.
func (s *Storage) ActivateLicense(ctx context.Context, key string, now time.Time) (time.Time, error) {
	const op = "storage.ActivateLicense"
	select {
	case <-ctx.Done():
		return time.Time{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var expiry time.Time
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var days int
		err := tx.QueryRowContext(ctx,
			`UPDATE licenses SET is_used = true, used_at = $2
			 WHERE key = $1 AND NOT is_used
			 RETURNING duration_days`, key, now).Scan(&days)
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM licenses WHERE key = $1)`, key).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return ErrLicenseUsed
			}
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var current *time.Time
		var raw string
		err = tx.QueryRowContext(ctx,
			`SELECT value FROM system_config WHERE key = $1 FOR UPDATE`, models.ConfigLicenseExpiry).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
				current = &t
			}
		}

		expiry = models.NextLicenseExpiry(current, now, days)
		_, err = tx.ExecContext(ctx, upsertConfigQuery, models.ConfigLicenseExpiry, expiry.Format(time.RFC3339))
		return err
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return expiry, nil
}

const upsertConfigQuery = `INSERT INTO system_config (key, value, updated_at)
			  VALUES ($1, $2, NOW())
			  ON CONFLICT (key) DO UPDATE
			  SET value = EXCLUDED.value, updated_at = NOW()`

// GetConfig возвращает значение системной настройки.
func (s *Storage) GetConfig(ctx context.Context, key string) (string, error) {
	const op = "storage.GetConfig"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var value string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM system_config WHERE key = $1`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, notFound(err))
	}
	return value, nil
}

// SetConfig записывает значение системной настройки.
func (s *Storage) SetConfig(ctx context.Context, key, value string) error {
	const op = "storage.SetConfig"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := s.DB.ExecContext(ctx, upsertConfigQuery, key, value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FinancialSummary считает выручку и себестоимость по всем строкам,
// включая мягко удалённые.
func (s *Storage) FinancialSummary(ctx context.Context) (models.FinancialSummary, error) {
	const op = "storage.FinancialSummary"
	select {
	case <-ctx.Done():
		return models.FinancialSummary{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var f models.FinancialSummary
	err := s.DB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(sale_price), 0), COUNT(*) FROM subscriptions`).Scan(&f.Revenue, &f.Subscriptions)
	if err != nil {
		return models.FinancialSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	err = s.DB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost_price), 0), COUNT(*) FROM account_costs`).Scan(&f.Cost, &f.Accounts)
	if err != nil {
		return models.FinancialSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}
