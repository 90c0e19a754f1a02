package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID    contextKey = "user_id"
	ctxRole      contextKey = "actor_role"
	ctxCompanyID contextKey = "company_id"
	ctxAccessID  contextKey = "access_id"
)

func UserIDFromContext(ctx context.Context) string    { return stringValue(ctx, ctxUserID) }
func RoleFromContext(ctx context.Context) string      { return stringValue(ctx, ctxRole) }
func CompanyIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxCompanyID) }

// AccessIDFromContext returns the jti of the token that authenticated the request.
func AccessIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxAccessID) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, ctxUserID, userID)
}

func WithRole(ctx context.Context, role enums.Role) context.Context {
	return withValue(ctx, ctxRole, string(role))
}

func WithCompanyID(ctx context.Context, companyID string) context.Context {
	return withValue(ctx, ctxCompanyID, companyID)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	return withValue(ctx, ctxAccessID, accessID)
}

// Actor is the typed view of the authenticated caller.
type Actor struct {
	UserID    uuid.UUID
	CompanyID *uuid.UUID
	Role      enums.Role
}

// ActorFromContext parses the identity seeded by Auth. ok is false when the
// user id is missing or malformed; a malformed company id is dropped.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return Actor{}, false
	}
	actor := Actor{UserID: userID, Role: enums.Role(RoleFromContext(ctx))}
	if id, err := uuid.Parse(CompanyIDFromContext(ctx)); err == nil {
		actor.CompanyID = &id
	}
	return actor, true
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}
