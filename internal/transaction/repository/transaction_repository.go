package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/eaglebank/swiftpay/internal/storage"
)

const transactionColumns = `id, client_id, amount, currency, provider, payee_account, routing_code, status, created_at, updated_at`

// TransactionWriteRepository handles all state-mutating operations for
// transactions against the Postgres ledger.
type TransactionWriteRepository struct {
	db *sql.DB
}

func NewTransactionWriteRepository(db *sql.DB) *TransactionWriteRepository {
	return &TransactionWriteRepository{db: db}
}

func (r *TransactionWriteRepository) Create(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.ClientRef, t.Amount, t.Currency, t.Provider,
		t.PayeeAccount, t.RoutingCode, string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if storage.IsForeignKeyViolation(err) {
			return ErrOwnerNotFound
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// UpdateStatus sets the status in a single statement and returns the updated
// row.
func (r *TransactionWriteRepository) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, at time.Time) (*models.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + transactionColumns
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id, string(status), at))
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	return t, nil
}

func (r *TransactionWriteRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var status string
	err := row.Scan(
		&t.ID, &t.ClientRef, &t.Amount, &t.Currency, &t.Provider,
		&t.PayeeAccount, &t.RoutingCode, &status, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Status = models.TransactionStatus(status)
	return &t, nil
}
