package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/countries/internal/core"
)

// withClient records the caller for mutation logs. RemoteAddr has already
// been resolved by TrustedRealIP.
func withClient(ctx context.Context, r *http.Request) context.Context {
	return core.WithClient(ctx, core.Client{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
}
