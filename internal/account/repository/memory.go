package repository

import (
	"context"
	"sync"

	"github.com/eaglebank/swiftpay/internal/models"
)

// MemoryAccountRepository keeps accounts in process memory. Unique checks
// and the insert happen under one lock.
type MemoryAccountRepository struct {
	mu              sync.RWMutex
	byID            map[string]models.Account
	byIdentity      map[string]string
	byAccountNumber map[string]string
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		byID:            make(map[string]models.Account),
		byIdentity:      make(map[string]string),
		byAccountNumber: make(map[string]string),
	}
}

func (r *MemoryAccountRepository) Create(ctx context.Context, account *models.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byIdentity[account.Identity]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byAccountNumber[account.AccountNumber]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byID[account.ID]; ok {
		return ErrDuplicate
	}
	r.byID[account.ID] = *account
	r.byIdentity[account.Identity] = account.ID
	r.byAccountNumber[account.AccountNumber] = account.ID
	return nil
}

func (r *MemoryAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (r *MemoryAccountRepository) GetByCredentials(ctx context.Context, identity, accountNumber string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byIdentity[identity]
	if !ok {
		return nil, ErrNotFound
	}
	account := r.byID[id]
	if account.AccountNumber != accountNumber {
		return nil, ErrNotFound
	}
	return &account, nil
}
