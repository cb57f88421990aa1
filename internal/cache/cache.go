package cache

import (
	"context"
	"sync"
	"time"

	"buffetpos/internal/domain"
)

// ProductCache holds barcode scan lookups for the register.
type ProductCache interface {
	GetProduct(ctx context.Context, barcode string) (*domain.Product, bool, error)
	SetProduct(ctx context.Context, barcode string, product *domain.Product, ttl time.Duration) error
	InvalidateProduct(ctx context.Context, barcode string) error
}

// TokenDenylist remembers signed-out access tokens until they expire.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type NoopProductCache struct{}

func (NoopProductCache) GetProduct(_ context.Context, _ string) (*domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductCache) SetProduct(_ context.Context, _ string, _ *domain.Product, _ time.Duration) error {
	return nil
}

func (NoopProductCache) InvalidateProduct(_ context.Context, _ string) error {
	return nil
}

type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{entries: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for id, exp := range d.entries {
		if !exp.After(now) {
			delete(d.entries, id)
		}
	}
	d.entries[tokenID] = until
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !exp.After(d.now()) {
		delete(d.entries, tokenID)
		return false, nil
	}
	return true, nil
}
