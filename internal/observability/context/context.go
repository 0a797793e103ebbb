// Package context carries request-scoped correlation values.
package context

import "context"

type requestIDKey struct{}
type actorKey struct{}

type actor struct {
	kind string
	id   string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithActor records who triggered the current operation (admin, system, ...).
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	if actorType == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor{kind: actorType, id: actorID})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	a, _ := ctx.Value(actorKey{}).(actor)
	return a.kind, a.id
}

// Detach copies the correlation values of src onto dst. Work that outlives
// the request uses it to keep the request id and actor.
func Detach(dst, src context.Context) context.Context {
	dst = WithRequestID(dst, RequestIDFromContext(src))
	if kind, id := ActorFromContext(src); kind != "" {
		dst = WithActor(dst, kind, id)
	}
	return dst
}
