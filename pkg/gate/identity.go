package gate

import (
	"context"

	"github.com/google/uuid"
)

// Role is the caller's role within its tenant.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Identity is the resolved state of a discovery request's credential.
//
// An invalid or expired credential is NOT an error: it resolves to a
// zero-Valid Identity and the caller is served the public tier, exactly as
// if no credential had been presented. Errors are reserved for resolver
// infrastructure failures.
type Identity struct {
	// Valid is false for absent, malformed, expired or revoked credentials.
	Valid bool

	// Subject identifies the authenticated principal. Empty when !Valid.
	Subject string

	// TenantID is nil for principals with no tenant association (service
	// accounts, platform operators).
	TenantID *uuid.UUID

	Role Role
}

// Anonymous is the identity of a request bearing no usable credential.
var Anonymous = Identity{}

// IsTenantAdmin reports whether the identity is a tenant-scoped admin.
func (i Identity) IsTenantAdmin() bool {
	return i.Valid && i.TenantID != nil && i.Role == RoleAdmin
}

// IdentityResolver validates a raw credential and resolves the caller's
// identity. Implementations return Anonymous (not an error) for credentials
// that fail validation.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}
