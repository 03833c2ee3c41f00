// Package cache keeps the most recent USD exchange-rate table between
// provider downloads.
//
// The in-process Memory store serves a single instance. Redis shares one
// table across replicas so a fleet downloads it once per TTL.
package cache

import (
	"context"
	"sync"
	"time"
)

// RateTable maps currency codes to units per USD.
type RateTable map[string]float64

// Store holds one rate table with an expiry.
type Store interface {
	// GetRates returns the cached table. ok is false on a miss or expiry.
	GetRates(ctx context.Context) (table RateTable, ok bool, err error)
	SetRates(ctx context.Context, table RateTable, ttl time.Duration) error
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	table   RateTable
	expires time.Time
	now     func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) GetRates(ctx context.Context) (RateTable, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.table == nil || !m.now().Before(m.expires) {
		return nil, false, nil
	}
	return m.table, true, nil
}

func (m *Memory) SetRates(ctx context.Context, table RateTable, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.table = table
	m.expires = m.now().Add(ttl)
	return nil
}
