package auth

import (
	"context"
	"strings"
)

type contextKey string

const actorKey contextKey = "actor"

// DefaultActor is recorded as created_by when no actor is on the context.
const DefaultActor = "system"

// ContextWithActor returns a new context carrying the acting user.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext retrieves the acting user, falling back to DefaultActor.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return DefaultActor
	}
	value := ctx.Value(actorKey)
	if value == nil {
		return DefaultActor
	}
	actor, ok := value.(string)
	if !ok || actor == "" {
		return DefaultActor
	}
	return actor
}
