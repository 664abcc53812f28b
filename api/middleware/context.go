package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
)

type actorKey struct{}

// actor is the caller identity Auth extracted from the bearer token. Values
// are kept as raw claim strings; ActorFromContext parses them.
type actor struct {
	userID string
	role   string
}

func actorFrom(ctx context.Context) actor {
	if ctx == nil {
		return actor{}
	}
	a, _ := ctx.Value(actorKey{}).(actor)
	return a
}

func withActor(ctx context.Context, update func(*actor)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	a := actorFrom(ctx)
	update(&a)
	return context.WithValue(ctx, actorKey{}, a)
}

func UserIDFromContext(ctx context.Context) string { return actorFrom(ctx).userID }

func RoleFromContext(ctx context.Context) string { return actorFrom(ctx).role }

// ActorFromContext returns the parsed user id and role. ok is false unless
// both are present and well formed.
func ActorFromContext(ctx context.Context) (uuid.UUID, enums.Role, bool) {
	a := actorFrom(ctx)
	id, err := uuid.Parse(a.userID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, "", false
	}
	role, err := enums.ParseRole(a.role)
	if err != nil {
		return uuid.Nil, "", false
	}
	return id, role, true
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return withActor(ctx, func(a *actor) { a.userID = userID })
}

func WithRole(ctx context.Context, role string) context.Context {
	return withActor(ctx, func(a *actor) { a.role = role })
}

// WithActor sets both halves of the identity at once.
func WithActor(ctx context.Context, userID uuid.UUID, role enums.Role) context.Context {
	return withActor(ctx, func(a *actor) {
		a.userID = userID.String()
		a.role = string(role)
	})
}
