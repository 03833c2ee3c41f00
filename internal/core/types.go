package core

import "time"

// Country is one persisted snapshot row. Pointer fields are absent (JSON null)
// when the upstream did not supply them or they could not be derived.
type Country struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Region          *string   `json:"region"`
	Population      *int64    `json:"population"`
	CurrencyCode    *string   `json:"currency_code"`
	ExchangeRate    *float64  `json:"exchange_rate"`
	EstimatedGDP    *float64  `json:"estimated_gdp"`
	FlagURL         *string   `json:"flag_url"`
	LastRefreshedAt time.Time `json:"last_refreshed_at"`
}

// ExternalCountry is one entry of the upstream attributes batch.
type ExternalCountry struct {
	Name       string
	Region     string
	Population *int64

	// Currencies holds the listed currency codes in upstream order. An entry
	// may be empty when the upstream lists a currency without a code.
	Currencies []string

	Flag string
}

// Status summarises the snapshot.
type Status struct {
	TotalRecords    int64      `json:"total_records"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at"`
}

// RefreshMode tells whether a cycle populated an empty store or updated an
// existing one.
type RefreshMode string

const (
	ModeInitial     RefreshMode = "initial"
	ModeIncremental RefreshMode = "incremental"
)

// RecordFailure describes one record whose write was rolled back.
type RecordFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// RefreshResult summarises one reconciliation cycle.
type RefreshResult struct {
	ID       string          `json:"refresh_id"`
	Mode     RefreshMode     `json:"mode"`
	Created  int             `json:"created"`
	Updated  int             `json:"updated"`
	Skipped  int             `json:"skipped"`
	Failed   []RecordFailure `json:"failed,omitempty"`
	Duration time.Duration   `json:"-"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
