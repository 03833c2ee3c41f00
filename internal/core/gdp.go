package core

import (
	"math/rand"

	"github.com/shopspring/decimal"
)

// Default per-capita output factor range.
const (
	DefaultFactorMin = 1000.0
	DefaultFactorMax = 2000.0
)

// GDPEstimator derives estimated_gdp = population * factor / rate, with the
// factor drawn uniformly from the open interval (min, max) on every call and
// the result rounded to two decimal places. The figure therefore lies strictly
// between min*population/rate and max*population/rate, except when rounding
// to the cent reaches a bound that is closer than half a cent. Two refreshes
// over identical inputs generally produce different figures.
type GDPEstimator struct {
	min, max float64

	// sample returns a value in [0, 1); zero is redrawn.
	sample func() float64
}

// NewGDPEstimator returns an estimator over [min, max). Invalid ranges fall
// back to the defaults.
func NewGDPEstimator(min, max float64) *GDPEstimator {
	if min <= 0 || max <= min {
		min, max = DefaultFactorMin, DefaultFactorMax
	}
	return &GDPEstimator{min: min, max: max, sample: rand.Float64}
}

// Estimate returns nil when population or rate is absent, when population is
// negative, or when rate is not positive.
func (e *GDPEstimator) Estimate(population *int64, rate *float64) *float64 {
	if population == nil || rate == nil || *population < 0 || *rate <= 0 {
		return nil
	}

	u := e.sample()
	for u == 0 {
		u = e.sample()
	}
	factor := e.min + u*(e.max-e.min)

	gdp := decimal.NewFromInt(*population).
		Mul(decimal.NewFromFloat(factor)).
		Div(decimal.NewFromFloat(*rate)).
		Round(2).
		InexactFloat64()
	return &gdp
}
