package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
)

type actorKey struct{}

type actor struct {
	userID uuid.UUID
	role   enums.UserRole
}

func actorFrom(ctx context.Context) (actor, bool) {
	if ctx == nil {
		return actor{}, false
	}
	a, ok := ctx.Value(actorKey{}).(actor)
	return a, ok && a.userID != uuid.Nil
}

// UserIDFromContext returns the authenticated user id as a string, or "".
func UserIDFromContext(ctx context.Context) string {
	if a, ok := actorFrom(ctx); ok {
		return a.userID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	a, _ := actorFrom(ctx)
	return a.role
}

// ActorFromContext returns the authenticated user id and role.
func ActorFromContext(ctx context.Context) (uuid.UUID, enums.UserRole, error) {
	a, ok := actorFrom(ctx)
	if !ok {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return a.userID, a.role, nil
}

func WithActor(ctx context.Context, userID uuid.UUID, role enums.UserRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor{userID: userID, role: role})
}
