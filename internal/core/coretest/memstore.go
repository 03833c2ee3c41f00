// Package coretest provides in-memory doubles for core's store and upstream
// interfaces.
package coretest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/countries/internal/core"
)

// MemStore is an in-memory core.Store. Rows keep insertion order. Writes made
// inside WithRefreshTx become visible only when fn returns nil.
type MemStore struct {
	txMu sync.Mutex // held for the whole refresh transaction

	mu     sync.RWMutex
	rows   []core.Country
	nextID int64

	// Failure injection. Keys are exact record names.
	FailUpdate map[string]error
	FailInsert map[string]error
	FailBatch  error
	FailRead   error
}

var _ core.Store = (*MemStore)(nil)

// NewMemStore returns a store seeded with rows.
func NewMemStore(rows ...core.Country) *MemStore {
	s := &MemStore{}
	for _, r := range rows {
		s.nextID++
		r.ID = s.nextID
		s.rows = append(s.rows, r)
	}
	return s
}

// Rows returns a copy of the committed rows.
func (s *MemStore) Rows() []core.Country {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rows)
}

func (s *MemStore) Get(ctx context.Context, name string) (core.Country, error) {
	if s.FailRead != nil {
		return core.Country{}, s.FailRead
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rows {
		if strings.EqualFold(r.Name, name) {
			return r, nil
		}
	}
	return core.Country{}, core.ErrNotFound
}

func (s *MemStore) Query(ctx context.Context, plan core.QueryPlan) ([]core.Country, error) {
	if s.FailRead != nil {
		return nil, s.FailRead
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Country
	for _, r := range s.rows {
		if matches(r, plan) {
			out = append(out, r)
		}
	}

	switch plan.Sort {
	case core.SortGDPDesc:
		slices.SortStableFunc(out, func(a, b core.Country) int { return cmpFloat(*b.EstimatedGDP, *a.EstimatedGDP) })
	case core.SortGDPAsc:
		slices.SortStableFunc(out, func(a, b core.Country) int { return cmpFloat(*a.EstimatedGDP, *b.EstimatedGDP) })
	}
	return out, nil
}

func matches(r core.Country, plan core.QueryPlan) bool {
	if plan.Sort != core.SortNone && r.EstimatedGDP == nil {
		return false
	}
	switch plan.Kind {
	case core.PlanByName:
		return strings.EqualFold(r.Name, plan.Value)
	case core.PlanByCurrency:
		return r.CurrencyCode != nil && *r.CurrencyCode == plan.Value
	case core.PlanByRegion:
		return r.Region != nil && *r.Region == plan.Value
	default:
		return true
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (s *MemStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rows {
		if strings.EqualFold(r.Name, name) {
			s.rows = slices.Delete(s.rows, i, i+1)
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *MemStore) Status(ctx context.Context) (core.Status, error) {
	if s.FailRead != nil {
		return core.Status{}, s.FailRead
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := core.Status{TotalRecords: int64(len(s.rows))}
	for _, r := range s.rows {
		if st.LastRefreshedAt == nil || r.LastRefreshedAt.After(*st.LastRefreshedAt) {
			t := r.LastRefreshedAt
			st.LastRefreshedAt = &t
		}
	}
	return st, nil
}

func (s *MemStore) Ping(ctx context.Context) error {
	return s.FailRead
}

func (s *MemStore) WithRefreshTx(ctx context.Context, fn func(tx core.RefreshTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	tx := &memTx{store: s, rows: slices.Clone(s.rows), nextID: s.nextID}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: commit: %w", core.ErrStorage, err)
	}

	s.mu.Lock()
	s.rows = tx.rows
	s.nextID = tx.nextID
	s.mu.Unlock()
	return nil
}

type memTx struct {
	store  *MemStore
	rows   []core.Country
	nextID int64
}

func (tx *memTx) ListNames(ctx context.Context) (map[string]struct{}, error) {
	names := make(map[string]struct{}, len(tx.rows))
	for _, r := range tx.rows {
		names[r.Name] = struct{}{}
	}
	return names, nil
}

func (tx *memTx) InsertBatch(ctx context.Context, records []core.Country) error {
	if tx.store.FailBatch != nil {
		return tx.store.FailBatch
	}
	for _, r := range records {
		if err := tx.insert(r); err != nil {
			return err
		}
	}
	return nil
}

func (tx *memTx) Insert(ctx context.Context, record core.Country) error {
	if err := tx.store.FailInsert[record.Name]; err != nil {
		return err
	}
	return tx.insert(record)
}

func (tx *memTx) insert(record core.Country) error {
	for _, r := range tx.rows {
		if strings.EqualFold(r.Name, record.Name) {
			return fmt.Errorf("%w: duplicate key value violates unique constraint", core.ErrStorage)
		}
	}
	tx.nextID++
	record.ID = tx.nextID
	tx.rows = append(tx.rows, record)
	return nil
}

func (tx *memTx) Update(ctx context.Context, record core.Country) error {
	if err := tx.store.FailUpdate[record.Name]; err != nil {
		return err
	}
	for i, r := range tx.rows {
		if !strings.EqualFold(r.Name, record.Name) {
			continue
		}
		r.Population = record.Population
		r.CurrencyCode = record.CurrencyCode
		r.ExchangeRate = record.ExchangeRate
		r.EstimatedGDP = record.EstimatedGDP
		r.FlagURL = record.FlagURL
		r.LastRefreshedAt = record.LastRefreshedAt
		tx.rows[i] = r
		return nil
	}
	return core.ErrNotFound
}

// Clock returns a monotonically advancing clock starting at start.
func Clock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}
