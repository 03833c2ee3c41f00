package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/countries/internal/logging"
)

// Refresh outcomes reported to metrics.
const (
	outcomeSuccess    = "success"
	outcomeUpstream   = "upstream_error"
	outcomeStorage    = "storage_error"
	outcomeBusy       = "busy"
	outcomeCancelled  = "cancelled"
	outcomeUnexpected = "error"
)

// Refresh runs one reconciliation cycle: fetch the attributes batch, resolve
// rates, estimate GDP and write the batch in one transaction.
//
// The cycle is detached from ctx cancellation once it holds the gate so a
// disconnecting client cannot abort a half-written transaction; it is bounded
// by the configured refresh timeout instead.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	start := time.Now()

	if err := s.gate.Acquire(ctx); err != nil {
		s.metrics.ObserveRefresh(outcomeFor(err), "", 0, 0, 0, 0, time.Since(start))
		return RefreshResult{}, err
	}
	defer s.gate.Release()

	id := uuid.NewString()
	ctx = logging.WithFields(context.WithoutCancel(ctx), "refresh_id", id)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := logging.FromContext(ctx)
	logger.Info("refresh started", ClientFrom(ctx).LogArgs()...)

	res, err := s.refresh(ctx)
	res.ID = id
	res.Duration = time.Since(start)

	s.metrics.ObserveRefresh(outcomeFor(err), string(res.Mode),
		res.Created, res.Updated, res.Skipped, len(res.Failed), res.Duration)

	if err != nil {
		logger.Error("refresh failed", "error", err, "duration_ms", res.Duration.Milliseconds())
		return res, err
	}

	logger.Info("refresh completed",
		"mode", res.Mode,
		"created", res.Created,
		"updated", res.Updated,
		"skipped", res.Skipped,
		"failed", len(res.Failed),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (s *Service) refresh(ctx context.Context) (RefreshResult, error) {
	batch, err := s.countries.FetchCountries(ctx)
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			return RefreshResult{}, fmt.Errorf("fetch countries: %w", err)
		}
		return RefreshResult{}, fmt.Errorf("fetch countries: %w: %w", ErrUpstreamUnavailable, err)
	}

	staged, skipped := s.stage(ctx, batch)

	var res RefreshResult
	err = s.store.WithRefreshTx(ctx, func(tx RefreshTx) error {
		names, err := tx.ListNames(ctx)
		if err != nil {
			return fmt.Errorf("list names: %w", err)
		}
		existing := make(map[string]struct{}, len(names))
		for n := range names {
			existing[nameKey(n)] = struct{}{}
		}

		// Captured under the lock so timestamps advance across cycles.
		now := s.now().UTC()
		for i := range staged {
			staged[i].LastRefreshedAt = now
		}

		res = RefreshResult{Skipped: skipped}
		if len(existing) == 0 {
			res.Mode = ModeInitial
			if err := tx.InsertBatch(ctx, staged); err != nil {
				return fmt.Errorf("insert batch of %d: %w", len(staged), err)
			}
			res.Created = len(staged)
			return nil
		}

		res.Mode = ModeIncremental
		for _, c := range staged {
			if _, ok := existing[nameKey(c.Name)]; ok {
				if err := tx.Update(ctx, c); err != nil {
					res.Failed = append(res.Failed, s.recordFailure(ctx, c.Name, "update", err))
					continue
				}
				res.Updated++
				continue
			}

			if err := tx.Insert(ctx, c); err != nil {
				res.Failed = append(res.Failed, s.recordFailure(ctx, c.Name, "insert", err))
				continue
			}
			res.Created++
		}
		return nil
	})
	if err != nil {
		return RefreshResult{Mode: res.Mode}, err
	}
	return res, nil
}

// nameKey is the identity of a record name. Names that differ only in case
// are the same country.
func nameKey(name string) string {
	return strings.ToLower(name)
}

// stage turns the upstream batch into records ready to write. Rates are
// resolved once per distinct currency code. After the rate source fails once,
// the remaining codes of the cycle are left without a rate.
func (s *Service) stage(ctx context.Context, batch []ExternalCountry) ([]Country, int) {
	logger := logging.FromContext(ctx)

	staged := make([]Country, 0, len(batch))
	seen := make(map[string]struct{}, len(batch))
	rates := &rateMemo{source: s.rates}
	skipped := 0

	for _, ext := range batch {
		name := strings.TrimSpace(ext.Name)
		if name == "" || len(ext.Currencies) == 0 {
			skipped++
			continue
		}
		if _, dup := seen[nameKey(name)]; dup {
			logger.Debug("duplicate country in batch", "name", name)
			skipped++
			continue
		}
		seen[nameKey(name)] = struct{}{}

		code := strings.TrimSpace(ext.Currencies[0])

		var rate *float64
		if code != "" {
			rate = rates.resolve(ctx, code)
		}

		staged = append(staged, Country{
			Name:         name,
			Region:       strPtr(strings.TrimSpace(ext.Region)),
			Population:   ext.Population,
			CurrencyCode: strPtr(code),
			ExchangeRate: rate,
			EstimatedGDP: s.gdp.Estimate(ext.Population, rate),
			FlagURL:      strPtr(strings.TrimSpace(ext.Flag)),
		})
	}

	return staged, skipped
}

// rateMemo resolves currency codes for one cycle. Each code is looked up at
// most once, and the first source error stops all further lookups so a
// stalled provider costs the cycle one failed call.
type rateMemo struct {
	source RateSource
	known  map[string]*float64
	failed error
}

// resolve returns nil when the rate is unknown, unusable or unavailable.
func (m *rateMemo) resolve(ctx context.Context, code string) *float64 {
	if r, ok := m.known[code]; ok {
		return r
	}
	if m.failed != nil {
		return nil
	}
	if m.known == nil {
		m.known = make(map[string]*float64)
	}

	rate, ok, err := m.source.Rate(ctx, code)
	if err != nil {
		m.failed = err
		logging.FromContext(ctx).Warn("exchange rates unavailable for this cycle", "currency", code, "error", err)
		return nil
	}

	var r *float64
	if ok && rate > 0 {
		r = &rate
	}
	m.known[code] = r
	return r
}

func (s *Service) recordFailure(ctx context.Context, name, op string, err error) RecordFailure {
	logging.FromContext(ctx).Warn("record write rolled back", "name", name, "op", op, "error", err)
	return RecordFailure{Name: name, Reason: MapError(err).Message}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrRefreshInProgress):
		return outcomeBusy
	case errors.Is(err, ErrUpstreamUnavailable):
		return outcomeUpstream
	case errors.Is(err, ErrStorage):
		return outcomeStorage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCancelled
	default:
		return outcomeUnexpected
	}
}
