// backend/internal/auth/principal.go
package auth

import (
	"context"
)

type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Principal is the resolved identity of the caller. Credential verification
// happens upstream; the engine only ever sees this pair.
type Principal struct {
	ID   uint
	Role Role
}

func (p Principal) IsInstructorOrAdmin() bool {
	return p.Role == RoleInstructor || p.Role == RoleAdmin
}

// Authorizer gates instructor-level actions. Centralized here so role rules
// are not re-implemented per handler.
type Authorizer interface {
	AuthorizeInstructorAction(p Principal) bool
}

type RoleAuthorizer struct{}

func (RoleAuthorizer) AuthorizeInstructorAction(p Principal) bool {
	return p.IsInstructorOrAdmin()
}

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the caller identity placed in the context by the
// resolver middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
