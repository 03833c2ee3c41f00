package coretest

import (
	"context"
	"sync"

	"github.com/JonMunkholm/countries/internal/core"
)

// CountrySource returns a fixed batch.
type CountrySource struct {
	mu    sync.Mutex
	Batch []core.ExternalCountry
	Err   error
	calls int
}

func (s *CountrySource) FetchCountries(ctx context.Context) ([]core.ExternalCountry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Batch, nil
}

// Calls reports how many times FetchCountries ran.
func (s *CountrySource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// RateSource serves rates from a map and counts lookups per code.
type RateSource struct {
	mu     sync.Mutex
	Rates  map[string]float64
	Errs   map[string]error
	lookup map[string]int
}

func (s *RateSource) Rate(ctx context.Context, code string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookup == nil {
		s.lookup = make(map[string]int)
	}
	s.lookup[code]++

	if err := s.Errs[code]; err != nil {
		return 0, false, err
	}
	rate, ok := s.Rates[code]
	return rate, ok, nil
}

// Lookups reports how many times code was resolved.
func (s *RateSource) Lookups(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup[code]
}

// Population is a convenience for building ExternalCountry values.
func Population(v int64) *int64 { return &v }
