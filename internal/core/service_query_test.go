package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/countries/internal/core"
	"github.com/JonMunkholm/countries/internal/core/coretest"
)

func strp(s string) *string { return &s }
func f64p(v float64) *float64 { return &v }
func i64p(v int64) *int64 { return &v }

func seededStore() *coretest.MemStore {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return coretest.NewMemStore(
		core.Country{Name: "Nigeria", Region: strp("Africa"), Population: i64p(200), CurrencyCode: strp("NGN"), EstimatedGDP: f64p(300), LastRefreshedAt: ts},
		core.Country{Name: "Ghana", Region: strp("Africa"), Population: i64p(30), CurrencyCode: strp("GHS"), EstimatedGDP: f64p(900), LastRefreshedAt: ts.Add(time.Hour)},
		core.Country{Name: "Chad", Region: strp("Africa"), Population: i64p(10), CurrencyCode: strp("XAF"), LastRefreshedAt: ts},
		core.Country{Name: "Gabon", Region: strp("Africa"), Population: i64p(2), CurrencyCode: strp("XAF"), EstimatedGDP: f64p(50), LastRefreshedAt: ts},
		core.Country{Name: "France", Region: strp("Europe"), Population: i64p(60), CurrencyCode: strp("EUR"), EstimatedGDP: f64p(5000), LastRefreshedAt: ts},
	)
}

func names(rows []core.Country) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func TestListCountries(t *testing.T) {
	tests := []struct {
		name      string
		params    core.QueryParams
		wantNames []string
		wantErr   error
	}{
		{
			name:      "no filter returns all in store order",
			params:    core.QueryParams{},
			wantNames: []string{"Nigeria", "Ghana", "Chad", "Gabon", "France"},
		},
		{
			name:      "valid sort without region imposes no order",
			params:    core.QueryParams{Sort: "gdp_desc"},
			wantNames: []string{"Nigeria", "Ghana", "Chad", "Gabon", "France"},
		},
		{
			name:    "invalid sort without filters",
			params:  core.QueryParams{Sort: "banana"},
			wantErr: core.ErrInvalidParameter,
		},
		{
			name:      "name short-circuits everything",
			params:    core.QueryParams{Name: "nigeria", CurrencyCode: "EUR", Region: "Europe", Sort: "banana"},
			wantNames: []string{"Nigeria"},
		},
		{
			name:      "currency beats region",
			params:    core.QueryParams{CurrencyCode: "XAF", Region: "Europe"},
			wantNames: []string{"Chad", "Gabon"},
		},
		{
			name:      "currency ignores invalid sort",
			params:    core.QueryParams{CurrencyCode: "XAF", Sort: "banana"},
			wantNames: []string{"Chad", "Gabon"},
		},
		{
			name:      "region natural order",
			params:    core.QueryParams{Region: "Africa"},
			wantNames: []string{"Nigeria", "Ghana", "Chad", "Gabon"},
		},
		{
			name:      "region gdp_desc drops unknown gdp",
			params:    core.QueryParams{Region: "Africa", Sort: "gdp_desc"},
			wantNames: []string{"Ghana", "Nigeria", "Gabon"},
		},
		{
			name:      "region gdp_asc",
			params:    core.QueryParams{Region: "Africa", Sort: "gdp_asc"},
			wantNames: []string{"Gabon", "Nigeria", "Ghana"},
		},
		{
			name:    "region invalid sort",
			params:  core.QueryParams{Region: "Africa", Sort: "banana"},
			wantErr: core.ErrInvalidParameter,
		},
		{
			name:    "region match is exact",
			params:  core.QueryParams{Region: "africa"},
			wantErr: core.ErrNotFound,
		},
		{
			name:    "unknown name",
			params:  core.QueryParams{Name: "Nowhere"},
			wantErr: core.ErrNotFound,
		},
	}

	svc := newService(seededStore(), &coretest.CountrySource{}, &coretest.RateSource{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := svc.ListCountries(context.Background(), tt.params)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, names(rows))
		})
	}
}

func TestListCountries_SortedByGDPIsMonotonic(t *testing.T) {
	svc := newService(seededStore(), &coretest.CountrySource{}, &coretest.RateSource{})

	rows, err := svc.ListCountries(context.Background(), core.QueryParams{Region: "Africa", Sort: "gdp_desc"})
	require.NoError(t, err)

	for i, r := range rows {
		require.NotNil(t, r.EstimatedGDP, "row %s", r.Name)
		if i > 0 {
			assert.LessOrEqual(t, *r.EstimatedGDP, *rows[i-1].EstimatedGDP)
		}
	}
}

func TestGetCountry(t *testing.T) {
	svc := newService(seededStore(), &coretest.CountrySource{}, &coretest.RateSource{})
	ctx := context.Background()

	got, err := svc.GetCountry(ctx, "GHANA")
	require.NoError(t, err)
	assert.Equal(t, "Ghana", got.Name)

	_, err = svc.GetCountry(ctx, "Nowhere")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "NF001", core.MapError(err).Code)

	_, err = svc.GetCountry(ctx, "  ")
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestDeleteCountry(t *testing.T) {
	store := seededStore()
	svc := newService(store, &coretest.CountrySource{}, &coretest.RateSource{})
	ctx := context.Background()

	require.NoError(t, svc.DeleteCountry(ctx, "france"))
	assert.Len(t, store.Rows(), 4)

	_, err := svc.GetCountry(ctx, "France")
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = svc.DeleteCountry(ctx, "France")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	empty := newService(coretest.NewMemStore(), &coretest.CountrySource{}, &coretest.RateSource{})
	st, err := empty.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.TotalRecords)
	assert.Nil(t, st.LastRefreshedAt)

	svc := newService(seededStore(), &coretest.CountrySource{}, &coretest.RateSource{})
	st, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.TotalRecords)
	require.NotNil(t, st.LastRefreshedAt)
	assert.Equal(t, time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC), *st.LastRefreshedAt)
}

func TestQueries_PropagateStorageFailure(t *testing.T) {
	store := seededStore()
	store.FailRead = errors.Join(core.ErrStorage, errors.New("connection refused"))
	svc := newService(store, &coretest.CountrySource{}, &coretest.RateSource{})
	ctx := context.Background()

	_, err := svc.ListCountries(ctx, core.QueryParams{})
	assert.ErrorIs(t, err, core.ErrStorage)

	_, err = svc.Status(ctx)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.Equal(t, "DB004", core.MapError(err).Code)
}
