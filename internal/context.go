package internal

import (
	"context"
	"time"
)

type ctxKey string

const (
	ContextActorKey   ctxKey = "actor"
	ContextRolesKey   ctxKey = "roles"
	ContextTraceIDKey ctxKey = "traceID"
)

// SystemActor is stamped into audit columns when no authenticated caller exists.
const SystemActor = "system"

// ActorFromContext returns the authenticated subject, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return SystemActor
	}
	if actor, ok := ctx.Value(ContextActorKey).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}

func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ContextActorKey, actor)
}

func RolesFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if roles, ok := ctx.Value(ContextRolesKey).([]string); ok {
		return roles
	}
	return nil
}

func ContextWithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, ContextRolesKey, roles)
}

func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(ContextTraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ContextTraceIDKey, traceID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
