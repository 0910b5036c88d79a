package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eaglebank/swiftpay/internal/models"
)

// OwnerLookup resolves the account that owns a transaction.
type OwnerLookup interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// MemoryTransactionRepository is an in-process ledger serving both the
// write and read side. Records keep insertion order.
type MemoryTransactionRepository struct {
	owners OwnerLookup

	mu    sync.RWMutex
	byID  map[string]models.Transaction
	order []string
}

func NewMemoryTransactionRepository(owners OwnerLookup) *MemoryTransactionRepository {
	return &MemoryTransactionRepository{
		owners: owners,
		byID:   make(map[string]models.Transaction),
	}
}

func (r *MemoryTransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	if _, err := r.owners.GetByID(ctx, t.ClientRef); err != nil {
		return ErrOwnerNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[t.ID]; ok {
		return errors.New("duplicate transaction id")
	}
	r.byID[t.ID] = *t
	r.order = append(r.order, t.ID)
	return nil
}

func (r *MemoryTransactionRepository) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, at time.Time) (*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = at
	r.byID[id] = t
	return &t, nil
}

func (r *MemoryTransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// Each walks a snapshot of the ledger so fn may call back into the
// repository.
func (r *MemoryTransactionRepository) Each(ctx context.Context, filter ListFilter, fn func(*models.TransactionView) error) error {
	r.mu.RLock()
	snapshot := make([]models.Transaction, 0, len(r.order))
	for _, id := range r.order {
		t := r.byID[id]
		if filter.Status != "" && string(t.Status) != filter.Status {
			continue
		}
		snapshot = append(snapshot, t)
	}
	r.mu.RUnlock()

	for i := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		view, err := r.view(ctx, &snapshot[i])
		if err != nil {
			return err
		}
		if err := fn(view); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryTransactionRepository) GetView(ctx context.Context, id string) (*models.TransactionView, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.view(ctx, t)
}

// CacheView is a no-op; the memory ledger is always current.
func (r *MemoryTransactionRepository) CacheView(context.Context, *models.TransactionView) {}

func (r *MemoryTransactionRepository) view(ctx context.Context, t *models.Transaction) (*models.TransactionView, error) {
	owner, err := r.owners.GetByID(ctx, t.ClientRef)
	if err != nil {
		return nil, err
	}
	return models.NewTransactionView(t, owner.Summary()), nil
}
