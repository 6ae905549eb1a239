package events

import "context"

type clientIPKey struct{}

// WithClientIP stores the caller's IP on the context so emitters deeper in the
// call chain can stamp it onto events without threading it through every
// service signature.
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFrom returns the IP stored by WithClientIP, or "" when none is set.
func ClientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
