package core

import "context"

// Client identifies who triggered a refresh or a delete.
type Client struct {
	IP        string
	UserAgent string
}

// LogArgs returns the client as slog key/value pairs.
func (c Client) LogArgs() []any {
	return []any{"ip", c.IP, "user_agent", c.UserAgent}
}

type clientKey struct{}

// WithClient attaches c to ctx.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientFrom returns the client attached to ctx, or the zero Client for
// background work such as scheduled refreshes.
func ClientFrom(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}
