package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/countries/internal/cache"
	"github.com/JonMunkholm/countries/internal/config"
	"github.com/JonMunkholm/countries/internal/core"
	"github.com/JonMunkholm/countries/internal/logging"
	"github.com/JonMunkholm/countries/internal/metrics"
)

// ratesPayload is the open.er-api.com latest-rates response.
type ratesPayload struct {
	Result    string             `json:"result"`
	BaseCode  string             `json:"base_code"`
	ErrorType string             `json:"error-type"`
	Rates     map[string]float64 `json:"rates"`
}

// Rates resolves currency codes against the USD rate table. The table is
// downloaded at most once per TTL; concurrent misses share one download.
type Rates struct {
	client  *resty.Client
	url     string
	cache   cache.Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Recorder
}

var _ core.RateSource = (*Rates)(nil)

var errRatesUnavailable = errors.New("exchange rate provider unavailable")

func NewRates(cfg config.ProviderConfig, store cache.Store, ttl time.Duration, rec *metrics.Recorder) *Rates {
	if store == nil {
		store = cache.NewMemory()
	}
	return &Rates{
		client:  newClient(cfg, nameRates),
		url:     cfg.RatesURL,
		cache:   store,
		ttl:     ttl,
		metrics: rec,
	}
}

// Rate returns the units of code per USD. ok is false when the table has no
// entry for code.
func (r *Rates) Rate(ctx context.Context, code string) (float64, bool, error) {
	table, err := r.table(ctx)
	if err != nil {
		return 0, false, err
	}
	rate, ok := table[strings.ToUpper(strings.TrimSpace(code))]
	return rate, ok, nil
}

func (r *Rates) table(ctx context.Context) (cache.RateTable, error) {
	table, ok, err := r.cache.GetRates(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("rate cache read failed", "error", err)
	}
	if ok {
		r.metrics.ObserveRateCache(true)
		return table, nil
	}
	r.metrics.ObserveRateCache(false)

	v, err, _ := r.group.Do("usd", func() (any, error) {
		table, err := r.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if r.ttl > 0 {
			if err := r.cache.SetRates(ctx, table, r.ttl); err != nil {
				logging.FromContext(ctx).Warn("rate cache write failed", "error", err)
			}
		}
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(cache.RateTable), nil
}

func (r *Rates) fetch(ctx context.Context) (cache.RateTable, error) {
	var payload ratesPayload

	resp, err := r.client.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&payload).
		Get(r.url)
	if err != nil {
		r.metrics.ObserveUpstream(nameRates, "error")
		return nil, fmt.Errorf("%w: %w", errRatesUnavailable, err)
	}
	if resp.IsError() {
		r.metrics.ObserveUpstream(nameRates, "error")
		return nil, fmt.Errorf("%w: rates provider returned %s", errRatesUnavailable, resp.Status())
	}
	if payload.Result != "" && payload.Result != "success" {
		r.metrics.ObserveUpstream(nameRates, "error")
		return nil, fmt.Errorf("%w: rates provider result %q %s", errRatesUnavailable, payload.Result, payload.ErrorType)
	}
	if len(payload.Rates) == 0 {
		r.metrics.ObserveUpstream(nameRates, "empty")
		return nil, fmt.Errorf("%w: rates provider returned no rates", errRatesUnavailable)
	}
	r.metrics.ObserveUpstream(nameRates, "ok")

	logging.FromContext(ctx).Debug("exchange rates fetched",
		"base", payload.BaseCode,
		"currencies", len(payload.Rates),
	)
	return cache.RateTable(payload.Rates), nil
}
