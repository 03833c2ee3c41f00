package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/countries/internal/config"
	"github.com/JonMunkholm/countries/internal/core"
	"github.com/JonMunkholm/countries/internal/core/coretest"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func refreshConfig() config.RefreshConfig {
	return config.RefreshConfig{
		MaxWait:   200 * time.Millisecond,
		Timeout:   time.Minute,
		FactorMin: 1000,
		FactorMax: 2000,
	}
}

func newService(store core.Store, countries core.CountrySource, rates core.RateSource) *core.Service {
	return core.NewService(store, countries, rates, refreshConfig(),
		core.WithClock(coretest.Clock(epoch, time.Minute)))
}

func xland(population int64) core.ExternalCountry {
	return core.ExternalCountry{
		Name:       "Xland",
		Region:     "Africa",
		Population: coretest.Population(population),
		Currencies: []string{"XLD"},
		Flag:       "https://flags.example/x.svg",
	}
}

func TestRefresh_InitialInsert(t *testing.T) {
	store := coretest.NewMemStore()
	countries := &coretest.CountrySource{Batch: []core.ExternalCountry{xland(1000)}}
	rates := &coretest.RateSource{Rates: map[string]float64{"XLD": 2.0}}
	svc := newService(store, countries, rates)

	res, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, core.ModeInitial, res.Mode)
	assert.Equal(t, 1, res.Created)
	assert.NotEmpty(t, res.ID)

	rows := store.Rows()
	require.Len(t, rows, 1)
	got := rows[0]
	assert.Equal(t, "Xland", got.Name)
	require.NotNil(t, got.Region)
	assert.Equal(t, "Africa", *got.Region)
	require.NotNil(t, got.CurrencyCode)
	assert.Equal(t, "XLD", *got.CurrencyCode)
	require.NotNil(t, got.ExchangeRate)
	assert.Equal(t, 2.0, *got.ExchangeRate)
	require.NotNil(t, got.EstimatedGDP)
	assert.Greater(t, *got.EstimatedGDP, 500000.0)
	assert.Less(t, *got.EstimatedGDP, 1000000.0)
	assert.True(t, got.LastRefreshedAt.After(epoch))
}

func TestRefresh_IncrementalUpdate(t *testing.T) {
	store := coretest.NewMemStore()
	countries := &coretest.CountrySource{Batch: []core.ExternalCountry{xland(1000)}}
	rates := &coretest.RateSource{Rates: map[string]float64{"XLD": 2.0}}
	svc := newService(store, countries, rates)

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	first := store.Rows()[0]

	next := xland(2000)
	next.Region = "Europe"
	countries.Batch = []core.ExternalCountry{next}

	res, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, core.ModeIncremental, res.Mode)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.Created)

	rows := store.Rows()
	require.Len(t, rows, 1)
	got := rows[0]
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, int64(2000), *got.Population)
	assert.Equal(t, "Africa", *got.Region, "region is never revised")
	assert.True(t, got.LastRefreshedAt.After(first.LastRefreshedAt))
	require.NotNil(t, got.EstimatedGDP)
	assert.Greater(t, *got.EstimatedGDP, 1000000.0)
	assert.Less(t, *got.EstimatedGDP, 2000000.0)
}

func TestRefresh_Idempotent(t *testing.T) {
	store := coretest.NewMemStore()
	countries := &coretest.CountrySource{Batch: []core.ExternalCountry{
		xland(1000),
		{Name: "Yland", Region: "Asia", Population: coretest.Population(50), Currencies: []string{"YLD"}},
	}}
	rates := &coretest.RateSource{Rates: map[string]float64{"XLD": 2.0, "YLD": 0.5}}
	svc := newService(store, countries, rates)

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	before := store.Rows()

	_, err = svc.Refresh(context.Background())
	require.NoError(t, err)
	after := store.Rows()

	require.Len(t, after, len(before))
	for i := range before {
		b, a := before[i], after[i]
		assert.Equal(t, b.ID, a.ID)
		assert.Equal(t, b.Name, a.Name)
		assert.Equal(t, b.Region, a.Region)
		assert.Equal(t, b.Population, a.Population)
		assert.Equal(t, b.CurrencyCode, a.CurrencyCode)
		assert.Equal(t, b.ExchangeRate, a.ExchangeRate)
		assert.Equal(t, b.FlagURL, a.FlagURL)
	}
}

func TestRefresh_UpstreamFailureWritesNothing(t *testing.T) {
	store := coretest.NewMemStore()
	countries := &coretest.CountrySource{Err: errors.New("dial tcp: i/o timeout")}
	svc := newService(store, countries, &coretest.RateSource{})

	_, err := svc.Refresh(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
	assert.Empty(t, store.Rows())
}

func TestRefresh_SkipsAndAbsentValues(t *testing.T) {
	store := coretest.NewMemStore()
	countries := &coretest.CountrySource{Batch: []core.ExternalCountry{
		{Name: "", Currencies: []string{"USD"}},
		{Name: "Nocash", Population: coretest.Population(10)},
		{Name: "Codeless", Population: coretest.Population(10), Currencies: []string{""}},
		{Name: "Ratefail", Population: coretest.Population(10), Currencies: []string{"RFL"}},
		{Name: "Unknown", Population: coretest.Population(10), Currencies: []string{"ZZZ"}},
		{Name: "Ratefail", Population: coretest.Population(99), Currencies: []string{"RFL"}},
	}}
	rates := &coretest.RateSource{
		Rates: map[string]float64{},
		Errs:  map[string]error{"RFL": errors.New("status 500")},
	}
	svc := newService(store, countries, rates)

	res, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Skipped, "no name, no currency, duplicate")
	assert.Equal(t, 3, res.Created)

	byName := map[string]core.Country{}
	for _, r := range store.Rows() {
		byName[r.Name] = r
	}

	codeless := byName["Codeless"]
	assert.Nil(t, codeless.CurrencyCode)
	assert.Nil(t, codeless.ExchangeRate)
	assert.Nil(t, codeless.EstimatedGDP)

	ratefail := byName["Ratefail"]
	assert.Equal(t, int64(10), *ratefail.Population, "first occurrence wins")
	assert.Equal(t, "RFL", *ratefail.CurrencyCode)
	assert.Nil(t, ratefail.ExchangeRate)
	assert.Nil(t, ratefail.EstimatedGDP)

	assert.Nil(t, byName["Unknown"].ExchangeRate)
	assert.Nil(t, byName["Unknown"].Region)
	assert.Nil(t, byName["Unknown"].FlagURL)
}

func TestRefresh_ResolvesEachCurrencyOnce(t *testing.T) {
	store := coretest.NewMemStore()
	countries := &coretest.CountrySource{Batch: []core.ExternalCountry{
		{Name: "A", Currencies: []string{"USD"}},
		{Name: "B", Currencies: []string{"USD", "EUR"}},
		{Name: "C", Currencies: []string{"USD"}},
	}}
	rates := &coretest.RateSource{Rates: map[string]float64{"USD": 1}}
	svc := newService(store, countries, rates)

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rates.Lookups("USD"))
	assert.Equal(t, 0, rates.Lookups("EUR"), "only the first listed currency is used")
}

func TestRefresh_RateFailureStopsFurtherLookups(t *testing.T) {
	store := coretest.NewMemStore()
	countries := &coretest.CountrySource{Batch: []core.ExternalCountry{
		{Name: "A", Population: coretest.Population(10), Currencies: []string{"AAA"}},
		{Name: "B", Population: coretest.Population(10), Currencies: []string{"BBB"}},
		{Name: "C", Population: coretest.Population(10), Currencies: []string{"CCC"}},
	}}
	down := errors.New("rates provider timeout")
	rates := &coretest.RateSource{
		Rates: map[string]float64{"BBB": 3, "CCC": 4},
		Errs:  map[string]error{"AAA": down, "BBB": down, "CCC": down},
	}
	svc := newService(store, countries, rates)

	res, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)

	assert.Equal(t, 1, rates.Lookups("AAA"))
	assert.Equal(t, 0, rates.Lookups("BBB"))
	assert.Equal(t, 0, rates.Lookups("CCC"))

	for _, r := range store.Rows() {
		require.NotNil(t, r.CurrencyCode, r.Name)
		assert.Nil(t, r.ExchangeRate, r.Name)
		assert.Nil(t, r.EstimatedGDP, r.Name)
	}
}

func TestRefresh_NamesMatchIgnoringCase(t *testing.T) {
	store := coretest.NewMemStore()
	countries := &coretest.CountrySource{Batch: []core.ExternalCountry{
		xland(1000),
		{Name: "XLAND", Population: coretest.Population(5), Currencies: []string{"XLD"}},
	}}
	rates := &coretest.RateSource{Rates: map[string]float64{"XLD": 2.0}}
	svc := newService(store, countries, rates)

	res, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped, "same name in another case is a duplicate")

	next := xland(3000)
	next.Name = "xland"
	countries.Batch = []core.ExternalCountry{next}

	res, err = svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.Created)
	assert.Empty(t, res.Failed)

	rows := store.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Xland", rows[0].Name)
	assert.Equal(t, int64(3000), *rows[0].Population)
}

func TestRefresh_InitialBatchIsAllOrNothing(t *testing.T) {
	store := coretest.NewMemStore()
	store.FailBatch = errors.New("storage failure: connection reset")
	countries := &coretest.CountrySource{Batch: []core.ExternalCountry{xland(1000)}}
	svc := newService(store, countries, &coretest.RateSource{})

	_, err := svc.Refresh(context.Background())

	require.Error(t, err)
	assert.Empty(t, store.Rows())
}

func TestRefresh_IncrementalIsolatesRecordFailures(t *testing.T) {
	seeded := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := coretest.NewMemStore(
		core.Country{Name: "A", Population: coretest.Population(1), LastRefreshedAt: seeded},
		core.Country{Name: "B", Population: coretest.Population(1), LastRefreshedAt: seeded},
	)
	store.FailUpdate = map[string]error{"B": errors.New("storage failure: deadlock detected")}

	countries := &coretest.CountrySource{Batch: []core.ExternalCountry{
		{Name: "A", Population: coretest.Population(5), Currencies: []string{"USD"}},
		{Name: "B", Population: coretest.Population(5), Currencies: []string{"USD"}},
		{Name: "C", Population: coretest.Population(5), Currencies: []string{"USD"}},
	}}
	rates := &coretest.RateSource{Rates: map[string]float64{"USD": 1}}
	svc := newService(store, countries, rates)

	res, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, core.ModeIncremental, res.Mode)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Created, "unmatched names are inserted")
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "B", res.Failed[0].Name)
	assert.NotEmpty(t, res.Failed[0].Reason)

	byName := map[string]core.Country{}
	for _, r := range store.Rows() {
		byName[r.Name] = r
	}
	assert.Equal(t, int64(5), *byName["A"].Population)
	assert.Equal(t, int64(1), *byName["B"].Population)
	assert.Equal(t, seeded, byName["B"].LastRefreshedAt)
	assert.Contains(t, byName, "C")
}

// blockingSource holds FetchCountries open until release is closed.
type blockingSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSource) FetchCountries(ctx context.Context) ([]core.ExternalCountry, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return nil, nil
}

func TestRefresh_ConcurrentCycleIsRejected(t *testing.T) {
	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	svc := newService(coretest.NewMemStore(), src, &coretest.RateSource{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Refresh(context.Background())
		done <- err
	}()
	<-src.started

	assert.True(t, svc.RefreshRunning())
	_, err := svc.Refresh(context.Background())
	assert.ErrorIs(t, err, core.ErrRefreshInProgress)

	close(src.release)
	require.NoError(t, <-done)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.WaitForRefresh(ctx))
	assert.False(t, svc.RefreshRunning())
}

func TestStartRefreshScheduler_RunsImmediately(t *testing.T) {
	store := coretest.NewMemStore()
	countries := &coretest.CountrySource{Batch: []core.ExternalCountry{xland(1000)}}
	svc := newService(store, countries, &coretest.RateSource{Rates: map[string]float64{"XLD": 2}})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		svc.StartRefreshScheduler(ctx, time.Hour)
		close(stopped)
	}()

	require.Eventually(t, func() bool { return countries.Calls() >= 1 && len(store.Rows()) == 1 },
		time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestStartRefreshScheduler_DisabledReturns(t *testing.T) {
	countries := &coretest.CountrySource{}
	svc := newService(coretest.NewMemStore(), countries, &coretest.RateSource{})

	svc.StartRefreshScheduler(context.Background(), 0)

	assert.Equal(t, 0, countries.Calls())
}
