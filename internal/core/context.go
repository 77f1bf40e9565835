package core

import "context"

type actorKey struct{}

// WithActor attaches the acting user to ctx. Access checks and audit entries
// read it back with ActorFromContext.
func WithActor(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, actorKey{}, user)
}

// ActorFromContext returns the acting user, or "" when none is attached.
func ActorFromContext(ctx context.Context) string {
	user, _ := ctx.Value(actorKey{}).(string)
	return user
}
