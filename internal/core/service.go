package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/countries/internal/config"
	"github.com/JonMunkholm/countries/internal/metrics"
)

// Store is the persisted snapshot of country records.
//
// Implementations translate driver failures into errors wrapping ErrStorage
// and report missing rows as ErrNotFound.
type Store interface {
	// Get returns the record whose name matches case-insensitively.
	Get(ctx context.Context, name string) (Country, error)

	// Query runs the single read described by plan.
	Query(ctx context.Context, plan QueryPlan) ([]Country, error)

	// Delete removes the record whose name matches case-insensitively.
	Delete(ctx context.Context, name string) error

	// Status returns the row count and the latest refresh timestamp.
	Status(ctx context.Context) (Status, error)

	Ping(ctx context.Context) error

	// WithRefreshTx runs fn inside one write transaction that holds the
	// store-wide refresh lock. fn's error rolls everything back.
	WithRefreshTx(ctx context.Context, fn func(tx RefreshTx) error) error
}

// RefreshTx is the write surface available to one reconciliation cycle.
type RefreshTx interface {
	// ListNames returns the names of every persisted record as stored.
	// Callers compare them case-insensitively.
	ListNames(ctx context.Context) (map[string]struct{}, error)

	// InsertBatch inserts all records or none.
	InsertBatch(ctx context.Context, records []Country) error

	// Insert and Update are isolated per record: a failure undoes only that
	// record and leaves the transaction usable. Update matches the stored
	// name case-insensitively.
	Insert(ctx context.Context, record Country) error
	Update(ctx context.Context, record Country) error
}

// CountrySource fetches the upstream country-attributes batch.
type CountrySource interface {
	FetchCountries(ctx context.Context) ([]ExternalCountry, error)
}

// RateSource resolves a currency code to units of that currency per USD.
// ok is false when the provider has no rate for the code.
type RateSource interface {
	Rate(ctx context.Context, code string) (rate float64, ok bool, err error)
}

// Service provides the synchronization and query engine.
type Service struct {
	store     Store
	countries CountrySource
	rates     RateSource

	gdp     *GDPEstimator
	gate    *RefreshGate
	metrics *metrics.Recorder
	timeout time.Duration
	now     func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithMetrics records refresh outcomes on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// WithClock replaces the wall clock used for last_refreshed_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEstimator replaces the GDP estimator.
func WithEstimator(e *GDPEstimator) Option {
	return func(s *Service) { s.gdp = e }
}

// NewService wires the engine to its store and upstream sources.
func NewService(store Store, countries CountrySource, rates RateSource, cfg config.RefreshConfig, opts ...Option) *Service {
	s := &Service{
		store:     store,
		countries: countries,
		rates:     rates,
		gdp:       NewGDPEstimator(cfg.FactorMin, cfg.FactorMax),
		gate:      NewRefreshGate(cfg.MaxWait),
		timeout:   cfg.Timeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// RefreshRunning reports whether a reconciliation cycle is in flight.
func (s *Service) RefreshRunning() bool {
	return s.gate.Busy()
}

// WaitForRefresh blocks until no cycle is running or ctx ends.
// Used during shutdown.
func (s *Service) WaitForRefresh(ctx context.Context) error {
	return s.gate.WaitForIdle(ctx)
}
