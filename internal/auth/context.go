package auth

import (
	"context"

	"github.com/rpattn/versioned/internal/domain"
)

type contextKey string

const actorKey contextKey = "actor"

// ContextWithActor returns a new context carrying the acting principal that
// changes should be attributed to.
func ContextWithActor(ctx context.Context, actor domain.Ref) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext retrieves the acting principal from the context, if any.
// System-initiated work carries no actor.
func ActorFromContext(ctx context.Context) (domain.Ref, bool) {
	if ctx == nil {
		return domain.Ref{}, false
	}
	value := ctx.Value(actorKey)
	if value == nil {
		return domain.Ref{}, false
	}
	actor, ok := value.(domain.Ref)
	if !ok {
		return domain.Ref{}, false
	}
	if actor.IsZero() {
		return domain.Ref{}, false
	}
	return actor, true
}
