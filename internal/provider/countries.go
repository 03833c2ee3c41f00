package provider

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/JonMunkholm/countries/internal/config"
	"github.com/JonMunkholm/countries/internal/core"
	"github.com/JonMunkholm/countries/internal/logging"
	"github.com/JonMunkholm/countries/internal/metrics"
)

// countryPayload is one element of the restcountries v2 response.
type countryPayload struct {
	Name       string  `json:"name"`
	Capital    string  `json:"capital"`
	Region     string  `json:"region"`
	Population *int64  `json:"population"`
	Flag       string  `json:"flag"`
	Currencies []struct {
		Code   *string `json:"code"`
		Name   string  `json:"name"`
		Symbol string  `json:"symbol"`
	} `json:"currencies"`
}

// Countries downloads the attributes batch.
type Countries struct {
	client  *resty.Client
	url     string
	metrics *metrics.Recorder
}

var _ core.CountrySource = (*Countries)(nil)

func NewCountries(cfg config.ProviderConfig, rec *metrics.Recorder) *Countries {
	return &Countries{
		client:  newClient(cfg, nameCountries),
		url:     cfg.CountriesURL,
		metrics: rec,
	}
}

// FetchCountries returns the full batch. Every failure, including an empty
// or undecodable body, wraps core.ErrUpstreamUnavailable.
func (c *Countries) FetchCountries(ctx context.Context) ([]core.ExternalCountry, error) {
	var payload []countryPayload

	resp, err := c.client.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&payload).
		Get(c.url)
	if err != nil {
		c.metrics.ObserveUpstream(nameCountries, "error")
		return nil, fmt.Errorf("%w: %w", core.ErrUpstreamUnavailable, err)
	}
	if resp.IsError() {
		c.metrics.ObserveUpstream(nameCountries, "error")
		return nil, fmt.Errorf("%w: countries provider returned %s", core.ErrUpstreamUnavailable, resp.Status())
	}
	if len(payload) == 0 {
		c.metrics.ObserveUpstream(nameCountries, "empty")
		return nil, fmt.Errorf("%w: countries provider returned no entries", core.ErrUpstreamUnavailable)
	}
	c.metrics.ObserveUpstream(nameCountries, "ok")

	out := make([]core.ExternalCountry, 0, len(payload))
	for _, p := range payload {
		ext := core.ExternalCountry{
			Name:       p.Name,
			Region:     p.Region,
			Population: p.Population,
			Flag:       p.Flag,
		}
		for _, cur := range p.Currencies {
			code := ""
			if cur.Code != nil {
				code = *cur.Code
			}
			ext.Currencies = append(ext.Currencies, code)
		}
		out = append(out, ext)
	}

	logging.FromContext(ctx).Debug("countries fetched",
		"entries", len(out),
		"duration_ms", resp.Time().Milliseconds(),
	)
	return out, nil
}
