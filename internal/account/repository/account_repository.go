package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/eaglebank/swiftpay/internal/storage"
)

const accountColumns = `id, name, identity, account_number, secret_hash, role, created_at, updated_at`

// AccountRepository is the Postgres credential store. Uniqueness of identity
// and account number is enforced by the table's unique constraints.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Name, account.Identity, account.AccountNumber,
		account.SecretHash, string(account.Role), account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByCredentials looks an account up by both login identifiers.
func (r *AccountRepository) GetByCredentials(ctx context.Context, identity, accountNumber string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE identity = $1 AND account_number = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, identity, accountNumber))
}

func (r *AccountRepository) scanOne(row *sql.Row) (*models.Account, error) {
	var account models.Account
	var role string
	err := row.Scan(
		&account.ID, &account.Name, &account.Identity, &account.AccountNumber,
		&account.SecretHash, &role, &account.CreatedAt, &account.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	account.Role = models.Role(role)
	return &account, nil
}
