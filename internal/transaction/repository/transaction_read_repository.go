package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/eaglebank/swiftpay/internal/redis"
)

const viewSelect = `
	SELECT t.id, a.id, a.name, a.account_number,
		   t.amount, t.currency, t.provider, t.payee_account, t.routing_code,
		   t.status, t.created_at, t.updated_at
	FROM transactions t
	JOIN accounts a ON a.id = t.client_id
`

// TransactionReadRepository serves the staff projections. Single views are
// read through an optional Redis cache; listings always come from Postgres.
type TransactionReadRepository struct {
	db    *sql.DB
	cache *redis.ViewCache[models.TransactionView]
}

// NewTransactionReadRepository accepts a nil cache.
func NewTransactionReadRepository(db *sql.DB, cache *redis.ViewCache[models.TransactionView]) *TransactionReadRepository {
	return &TransactionReadRepository{db: db, cache: cache}
}

// Each streams views in ledger order, stopping at the first error from fn.
func (r *TransactionReadRepository) Each(ctx context.Context, filter ListFilter, fn func(*models.TransactionView) error) error {
	query := viewSelect
	var args []any
	if filter.Status != "" {
		query += ` WHERE t.status = $1`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY t.seq`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return fmt.Errorf("failed to scan transaction: %w", err)
		}
		if err := fn(view); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}
	return nil
}

// GetView returns a view from the cache, falling back to Postgres and
// warming the cache on a miss.
func (r *TransactionReadRepository) GetView(ctx context.Context, id string) (*models.TransactionView, error) {
	if r.cache != nil {
		if view, ok := r.cache.Get(ctx, id); ok {
			return view, nil
		}
	}

	view, err := scanView(r.db.QueryRowContext(ctx, viewSelect+` WHERE t.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	r.CacheView(ctx, view)
	return view, nil
}

// CacheView stores or refreshes the cached projection. Called by the command
// service after every mutation.
func (r *TransactionReadRepository) CacheView(ctx context.Context, view *models.TransactionView) {
	if r.cache != nil {
		r.cache.Set(ctx, view.ID, view)
	}
}

func scanView(row rowScanner) (*models.TransactionView, error) {
	var v models.TransactionView
	var status string
	err := row.Scan(
		&v.ID, &v.Client.ID, &v.Client.Name, &v.Client.AccountNumber,
		&v.Amount, &v.Currency, &v.Provider, &v.PayeeAccount, &v.RoutingCode,
		&status, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Status = models.TransactionStatus(status)
	return &v, nil
}
