package auth

import (
	"context"
	"strings"
)

// Roles understood by the order API. Other marketplace roles (investor, ambassador)
// authenticate but are not granted any order permissions.
const (
	RoleBuyer   = "buyer"
	RoleArtisan = "artisan"
	RoleAdmin   = "admin"
)

// Identity is the authenticated principal for a request.
type Identity struct {
	UID   string
	Email string
	Roles []string
}

// HasRole reports whether the identity carries role (case-insensitive).
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = normaliseRole(role)
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity carries any of roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// PrimaryRole returns the most privileged order role: admin, then artisan, then buyer.
// Identities with none of them return their first role.
func (i *Identity) PrimaryRole() string {
	if i == nil {
		return ""
	}
	for _, role := range []string{RoleAdmin, RoleArtisan, RoleBuyer} {
		if i.HasRole(role) {
			return role
		}
	}
	if len(i.Roles) > 0 {
		return i.Roles[0]
	}
	return ""
}

type identityKey struct{}

// WithIdentity attaches identity to ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity set by the auth middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
