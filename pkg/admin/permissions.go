package admin

import (
	"context"
	"net/http"
	"strings"
)

// Permission names a management capability on the admin API.
type Permission string

const (
	// PermissionView allows read access to catalog, effective sets and
	// summaries.
	PermissionView Permission = "tools:view"
	// PermissionManage allows override mutations. Implies view.
	PermissionManage Permission = "tools:manage"
)

// Principal is an authenticated admin API caller.
type Principal struct {
	// Actor identifies the caller in audit records.
	Actor       string
	Permissions map[Permission]bool
}

// Can reports whether the principal holds the permission. Manage implies
// view.
func (p *Principal) Can(perm Permission) bool {
	if p == nil {
		return false
	}
	if p.Permissions[perm] {
		return true
	}
	return perm == PermissionView && p.Permissions[PermissionManage]
}

// PermissionChecker authenticates admin API credentials. A nil Principal
// with nil error means the credential is unknown.
type PermissionChecker interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// StaticChecker authenticates from a fixed token table. Suited to
// deployments where the admin plane sits behind a service mesh and tokens
// rotate via config rollout.
type StaticChecker struct {
	principals map[string]Principal
}

// NewStaticChecker builds a checker over a token -> principal map.
func NewStaticChecker(principals map[string]Principal) *StaticChecker {
	copied := make(map[string]Principal, len(principals))
	for k, v := range principals {
		copied[k] = v
	}
	return &StaticChecker{principals: copied}
}

// Authenticate looks the token up.
func (c *StaticChecker) Authenticate(_ context.Context, token string) (*Principal, error) {
	if p, ok := c.principals[token]; ok {
		return &p, nil
	}
	return nil, nil
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
