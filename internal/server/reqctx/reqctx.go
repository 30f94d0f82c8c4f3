// Package reqctx carries per-request metadata through context.
package reqctx

import (
	"context"
	"net"
	"net/http"
)

type ctxKey int

const (
	actorKey ctxKey = iota
	clientIPKey
)

// WithActor stores the acting identity for attribution of mutations.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// Actor returns the acting identity, or "" when none was supplied.
func Actor(ctx context.Context) string {
	v, _ := ctx.Value(actorKey).(string)
	return v
}

// WithClientIP stores the client address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client address, or "" when unknown.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

// GetClientIP extracts the client address from a request, honoring
// X-Forwarded-For when a proxy set it.
func GetClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := range len(fwd) {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
