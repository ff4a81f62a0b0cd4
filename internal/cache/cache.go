package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ResetTokens holds password-reset tokens. Each token redeems once.
type ResetTokens interface {
	Put(ctx context.Context, token string, sellerID int64, ttl time.Duration) error
	// Take returns the seller a token was issued for and forgets it.
	Take(ctx context.Context, token string) (int64, bool, error)
}

type MemoryResetTokens struct {
	mu     sync.Mutex
	tokens *gocache.Cache
}

func NewMemoryResetTokens(defaultTTL time.Duration) *MemoryResetTokens {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &MemoryResetTokens{tokens: gocache.New(defaultTTL, 2*defaultTTL)}
}

func (m *MemoryResetTokens) Put(_ context.Context, token string, sellerID int64, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.tokens.Set(token, sellerID, ttl)
	return nil
}

func (m *MemoryResetTokens) Take(_ context.Context, token string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	val, ok := m.tokens.Get(token)
	if !ok {
		return 0, false, nil
	}
	m.tokens.Delete(token)
	sellerID, ok := val.(int64)
	return sellerID, ok, nil
}
