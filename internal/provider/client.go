// Package provider fetches country attributes and exchange rates from the
// public HTTP APIs the snapshot is built from.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JonMunkholm/countries/internal/config"
	"github.com/JonMunkholm/countries/internal/logging"
)

// Provider names used in logs and metrics.
const (
	nameCountries = "countries"
	nameRates     = "rates"
)

// newClient builds the HTTP client for one provider. Transient failures
// (transport errors and 5xx) are retried twice with a short backoff; each
// attempt is bounded by cfg.Timeout.
func newClient(cfg config.ProviderConfig, provider string) *resty.Client {
	return resty.New().
		SetLogger(restyLogger{provider: provider}).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		AddRetryHook(func(r *resty.Response, err error) {
			if r == nil || r.Request == nil {
				return
			}
			args := []any{"provider", provider, "attempt", r.Request.Attempt}
			if err != nil {
				args = append(args, "error", err)
			} else {
				args = append(args, "status", r.StatusCode())
			}
			logging.FromContext(r.Request.Context()).Warn("provider request retrying", args...)
		})
}

// restyLogger sends resty's own diagnostics to slog instead of stderr.
type restyLogger struct {
	provider string
}

func (l restyLogger) log(level slog.Level, format string, v ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	slog.Default().Log(context.Background(), level, msg, "provider", l.provider, "component", "resty")
}

func (l restyLogger) Errorf(format string, v ...any) { l.log(slog.LevelError, format, v...) }
func (l restyLogger) Warnf(format string, v ...any)  { l.log(slog.LevelWarn, format, v...) }
func (l restyLogger) Debugf(format string, v ...any) { l.log(slog.LevelDebug, format, v...) }
