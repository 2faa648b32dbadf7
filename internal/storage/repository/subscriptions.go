package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/streaming-reseller/internal/lib/normalize"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
)

const subscriptionColumns = `s.id, s.client_id, s.service_name, s.expiry_date, s.email, s.password,
	s.profile_name, s.profile_pin, s.sale_price, s.is_full_account, s.is_active, s.created_at`

const detailColumns = subscriptionColumns + `, c.name, c.phone`

func scanSubscription(row scanner, extra ...any) (*models.Subscription, error) {
	var sub models.Subscription
	dest := []any{&sub.ID, &sub.ClientID, &sub.ServiceName, &sub.ExpiryDate, &sub.Email, &sub.Password,
		&sub.ProfileName, &sub.ProfilePin, &sub.SalePrice, &sub.IsFullAccount, &sub.IsActive, &sub.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &sub, nil
}

func scanDetail(row scanner) (*models.SubscriptionDetail, error) {
	var d models.SubscriptionDetail
	sub, err := scanSubscription(row, &d.ClientName, &d.ClientPhone)
	if err != nil {
		return nil, err
	}
	d.Subscription = *sub
	return &d, nil
}

func collectDetails(rows *sql.Rows) ([]models.SubscriptionDetail, error) {
	defer func() {
		_ = rows.Close()
	}()
	var result []models.SubscriptionDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

// AddSubscription вставляет новую подписку и возвращает её ID.
func (s *Storage) AddSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	const op = "storage.AddSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (client_id, service_name, expiry_date, email, password,
			      profile_name, profile_pin, sale_price, is_full_account, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		sub.ClientID, sub.ServiceName, sub.ExpiryDate, normalize.Email(sub.Email), sub.Password,
		sub.ProfileName, sub.ProfilePin, sub.SalePrice, sub.IsFullAccount).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListClientSubscriptions возвращает активные подписки клиента, отсортированные по дате окончания.
func (s *Storage) ListClientSubscriptions(ctx context.Context, clientID int64) ([]models.Subscription, error) {
	const op = "storage.ListClientSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions s
			  JOIN clients c ON c.id = s.client_id
			  WHERE s.client_id = $1 AND s.is_active AND NOT c.is_deleted
			  ORDER BY s.expiry_date, s.id`
	rows, err := s.DB.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateSubscription применяет частичное обновление к активной подписке.
func (s *Storage) UpdateSubscription(ctx context.Context, id int64, patch models.SubscriptionPatch) error {
	const op = "storage.UpdateSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if patch.Empty() {
		return nil
	}
	if patch.Email != nil {
		email := normalize.Email(*patch.Email)
		patch.Email = &email
	}

	query := `UPDATE subscriptions SET
				expiry_date  = COALESCE($2, expiry_date),
				email        = COALESCE($3, email),
				password     = COALESCE($4, password),
				profile_name = COALESCE($5, profile_name),
				profile_pin  = COALESCE($6, profile_pin),
				sale_price   = COALESCE($7, sale_price)
			  WHERE id = $1 AND is_active`
	res, err := s.DB.ExecContext(ctx, query, id,
		nullTime(patch.ExpiryDate), nullString(patch.Email), nullString(patch.Password),
		nullString(patch.ProfileName), nullString(patch.ProfilePin), nullFloat(patch.SalePrice))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// DeleteSubscription деактивирует подписку.
func (s *Storage) DeleteSubscription(ctx context.Context, id int64) error {
	const op = "storage.DeleteSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE subscriptions SET is_active = false WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// GetSubscriptionCount считает активные подписки на аккаунте (платформа, email).
func (s *Storage) GetSubscriptionCount(ctx context.Context, service, email string) (int, error) {
	const op = "storage.GetSubscriptionCount"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*)
			  FROM subscriptions s
			  JOIN clients c ON c.id = s.client_id
			  WHERE s.service_name = $1 AND s.email = $2 AND s.is_active AND NOT c.is_deleted`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, service, normalize.Email(email)).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// ListAccounts группирует активные подписки платформы в аккаунты по (email, пароль).
func (s *Storage) ListAccounts(ctx context.Context, service string) ([]models.Account, error) {
	const op = "storage.ListAccounts"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + detailColumns + `
			  FROM subscriptions s
			  JOIN clients c ON c.id = s.client_id
			  WHERE s.service_name = $1 AND s.is_active AND NOT c.is_deleted
			  ORDER BY s.email, s.password, s.id`
	rows, err := s.DB.QueryContext(ctx, query, service)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	details, err := collectDetails(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return models.GroupAccounts(details), nil
}

// GetSubscriptionsByEmail возвращает все активные подписки с данным email на любых платформах.
func (s *Storage) GetSubscriptionsByEmail(ctx context.Context, email string) ([]models.SubscriptionDetail, error) {
	const op = "storage.GetSubscriptionsByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + detailColumns + `
			  FROM subscriptions s
			  JOIN clients c ON c.id = s.client_id
			  WHERE s.email = $1 AND s.is_active AND NOT c.is_deleted
			  ORDER BY s.service_name, s.id`
	rows, err := s.DB.QueryContext(ctx, query, normalize.Email(email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	details, err := collectDetails(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return details, nil
}

// UpdateBulkSubscriptions переносит все активные подписки с oldEmail на новые учётные
// данные и возвращает ровно тех клиентов, чьи строки были изменены. Строка себестоимости
// переезжает вместе с email, если для нового email её ещё нет.
func (s *Storage) UpdateBulkSubscriptions(ctx context.Context, oldEmail, newEmail, newPassword string) ([]models.AffectedClient, error) {
	const op = "storage.UpdateBulkSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	oldEmail, newEmail = normalize.Email(oldEmail), normalize.Email(newEmail)
	var affected []models.AffectedClient
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE subscriptions s SET email = $2, password = $3
				  FROM clients c
				  WHERE c.id = s.client_id AND s.email = $1 AND s.is_active AND NOT c.is_deleted
				  RETURNING s.client_id, c.name, c.phone, s.id, s.service_name, s.profile_name, s.profile_pin`
		rows, err := tx.QueryContext(ctx, query, oldEmail, newEmail, newPassword)
		if err != nil {
			return err
		}
		affected, err = collectAffected(rows)
		if err != nil {
			return err
		}
		if oldEmail == newEmail {
			return nil
		}
		_, err = tx.ExecContext(ctx, `UPDATE account_costs SET email = $2
									  WHERE email = $1
									    AND NOT EXISTS (SELECT 1 FROM account_costs WHERE email = $2)`,
			oldEmail, newEmail)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return affected, nil
}

// DeleteSubscriptionsByEmail деактивирует весь аккаунт (все строки с данным email)
// и возвращает затронутых клиентов.
func (s *Storage) DeleteSubscriptionsByEmail(ctx context.Context, email string) ([]models.AffectedClient, error) {
	const op = "storage.DeleteSubscriptionsByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions s SET is_active = false
			  FROM clients c
			  WHERE c.id = s.client_id AND s.email = $1 AND s.is_active AND NOT c.is_deleted
			  RETURNING s.client_id, c.name, c.phone, s.id, s.service_name, s.profile_name, s.profile_pin`
	rows, err := s.DB.QueryContext(ctx, query, normalize.Email(email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := collectAffected(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return affected, nil
}

// GetExpiringSubscriptions возвращает активные подписки, истекающие в ближайшие days дней
// (включая сегодняшние).
func (s *Storage) GetExpiringSubscriptions(ctx context.Context, days int) ([]models.SubscriptionDetail, error) {
	const op = "storage.GetExpiringSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + detailColumns + `
			  FROM subscriptions s
			  JOIN clients c ON c.id = s.client_id
			  WHERE s.is_active AND NOT c.is_deleted
			    AND s.expiry_date BETWEEN CURRENT_DATE AND CURRENT_DATE + $1::int
			  ORDER BY s.expiry_date, c.name`
	rows, err := s.DB.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	details, err := collectDetails(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return details, nil
}

func collectAffected(rows *sql.Rows) ([]models.AffectedClient, error) {
	defer func() {
		_ = rows.Close()
	}()
	var result []models.AffectedClient
	for rows.Next() {
		var a models.AffectedClient
		if err := rows.Scan(&a.ClientID, &a.Name, &a.Phone, &a.SubscriptionID,
			&a.ServiceName, &a.ProfileName, &a.ProfilePin); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
