package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/streaming-reseller/internal/models"
)

const clientColumns = `c.id, c.phone, c.name, c.is_deleted, c.created_at`

func scanClient(row scanner) (*models.Client, error) {
	var c models.Client
	if err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.IsDeleted, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetClientByPhone возвращает неудалённого клиента по нормализованному телефону.
func (s *Storage) GetClientByPhone(ctx context.Context, phone string) (*models.Client, error) {
	const op = "storage.GetClientByPhone"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + clientColumns + `
			  FROM clients c
			  WHERE c.phone = $1 AND NOT c.is_deleted`
	c, err := scanClient(s.DB.QueryRowContext(ctx, query, phone))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return c, nil
}

// AddClient создаёт клиента или восстанавливает мягко удалённого с тем же телефоном.
// Имя существующего активного клиента не меняется. created = true, если строка вставлена.
func (s *Storage) AddClient(ctx context.Context, phone, name string) (*models.Client, bool, error) {
	const op = "storage.AddClient"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO clients AS c (phone, name)
			  VALUES ($1, $2)
			  ON CONFLICT (phone) DO UPDATE
			  SET name = CASE WHEN c.is_deleted THEN EXCLUDED.name ELSE c.name END,
			      is_deleted = false,
			      deleted_at = NULL
			  RETURNING ` + clientColumns + `, (xmax = 0) AS inserted`
	var (
		c       models.Client
		created bool
	)
	err := s.DB.QueryRowContext(ctx, query, phone, name).
		Scan(&c.ID, &c.Phone, &c.Name, &c.IsDeleted, &c.CreatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return &c, created, nil
}

// UpdateClient меняет имя и телефон клиента.
func (s *Storage) UpdateClient(ctx context.Context, id int64, name, phone string) error {
	const op = "storage.UpdateClient"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE clients SET name = $2, phone = $3
			  WHERE id = $1 AND NOT is_deleted`
	res, err := s.DB.ExecContext(ctx, query, id, name, phone)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrPhoneTaken)
		}
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

// DeleteClient мягко удаляет клиента и деактивирует все его подписки.
func (s *Storage) DeleteClient(ctx context.Context, id int64) error {
	const op = "storage.DeleteClient"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE clients SET is_deleted = true, deleted_at = NOW()
										 WHERE id = $1 AND NOT is_deleted`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err = tx.ExecContext(ctx, `UPDATE subscriptions SET is_active = false
									  WHERE client_id = $1 AND is_active`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SearchClients ищет клиентов по подстроке имени или телефона; пустой запрос
// возвращает всех. Результат ограничен limit записями.
func (s *Storage) SearchClients(ctx context.Context, term string, limit int) ([]models.ClientSummary, error) {
	const op = "storage.SearchClients"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	pattern := "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"
	query := `SELECT ` + clientColumns + `, COUNT(s.id)
			  FROM clients c
			  LEFT JOIN subscriptions s ON s.client_id = c.id AND s.is_active
			  WHERE NOT c.is_deleted AND (c.name ILIKE $1 OR c.phone LIKE $1)
			  GROUP BY c.id
			  ORDER BY c.name, c.id
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.ClientSummary
	for rows.Next() {
		var cs models.ClientSummary
		if err := rows.Scan(&cs.ID, &cs.Phone, &cs.Name, &cs.IsDeleted, &cs.CreatedAt, &cs.SubscriptionCount); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListActiveClients возвращает клиентов, у которых есть хотя бы одна активная подписка.
func (s *Storage) ListActiveClients(ctx context.Context) ([]models.Client, error) {
	const op = "storage.ListActiveClients"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + clientColumns + `
			  FROM clients c
			  WHERE NOT c.is_deleted
			    AND EXISTS (SELECT 1 FROM subscriptions s WHERE s.client_id = c.id AND s.is_active)
			  ORDER BY c.id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
