// Package trace provides trace ID generation and context propagation so a
// chat request can be followed from the HTTP handler into the interaction log.
package trace

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Header is the HTTP header carrying an inbound trace ID.
const Header = "X-Request-ID"

// maxInboundLen bounds trace IDs accepted from clients.
const maxInboundLen = 64

type traceKey struct{}

// GenerateID returns a new random trace ID.
func GenerateID() string {
	return "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Accept returns id when it is a usable client-supplied trace ID, otherwise a
// freshly generated one.
func Accept(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxInboundLen || strings.ContainsAny(id, " \t\r\n") {
		return GenerateID()
	}
	return id
}

// WithTraceID returns a child context carrying the given trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// FromContext extracts the trace ID from ctx, returning "" if absent.
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok {
		return v
	}
	return ""
}
