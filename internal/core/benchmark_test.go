package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/JonMunkholm/countries/internal/config"
)

type fixedRates map[string]float64

func (f fixedRates) Rate(ctx context.Context, code string) (float64, bool, error) {
	r, ok := f[code]
	return r, ok, nil
}

// benchBatch builds n entries spread over a handful of currencies.
func benchBatch(n int) []ExternalCountry {
	codes := []string{"USD", "EUR", "NGN", "GBP", "JPY", "XXX"}
	batch := make([]ExternalCountry, n)
	for i := range batch {
		pop := int64(1_000_000 + i)
		batch[i] = ExternalCountry{
			Name:       fmt.Sprintf("Country %d", i),
			Region:     "Region",
			Population: &pop,
			Currencies: []string{codes[i%len(codes)]},
			Flag:       "https://flags.example/x.svg",
		}
	}
	return batch
}

// BenchmarkStage measures staging a full-size upstream batch.
func BenchmarkStage(b *testing.B) {
	s := NewService(nil, nil, fixedRates{"USD": 1, "EUR": 0.9, "NGN": 1600, "GBP": 0.8, "JPY": 150}, config.RefreshConfig{})
	batch := benchBatch(250)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.stage(ctx, batch)
	}
}

func BenchmarkEstimate(b *testing.B) {
	e := NewGDPEstimator(DefaultFactorMin, DefaultFactorMax)
	pop := int64(206_139_589)
	rate := 1600.5

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Estimate(&pop, &rate)
	}
}

func BenchmarkBuildQueryPlan(b *testing.B) {
	params := QueryParams{Region: " Africa ", Sort: "gdp_desc"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := BuildQueryPlan(params); err != nil {
			b.Fatal(err)
		}
	}
}
