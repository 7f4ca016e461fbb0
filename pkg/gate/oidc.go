package gate

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
)

// OIDCResolver validates bearer tokens as OIDC ID tokens and maps claims to
// an Identity. Tenant association comes from the tenant_id claim, role from
// the role claim.
type OIDCResolver struct {
	verifier *oidc.IDTokenVerifier
}

// OIDCResolverConfig configures OIDC token validation.
type OIDCResolverConfig struct {
	IssuerURL string
	ClientID  string
}

// NewOIDCResolver discovers the issuer and builds a token verifier.
func NewOIDCResolver(ctx context.Context, config OIDCResolverConfig) (*OIDCResolver, error) {
	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: config.ClientID,
	})

	return &OIDCResolver{verifier: verifier}, nil
}

// NewOIDCResolverWithVerifier wraps an existing verifier; used by tests.
func NewOIDCResolverWithVerifier(verifier *oidc.IDTokenVerifier) *OIDCResolver {
	return &OIDCResolver{verifier: verifier}
}

type identityClaims struct {
	Subject  string `json:"sub"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// Resolve validates the token and maps its claims. Verification failures
// resolve to Anonymous; only claim extraction on a verified token can error.
func (r *OIDCResolver) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Anonymous, nil
	}

	idToken, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return Anonymous, nil
	}

	var claims identityClaims
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("failed to parse token claims: %w", err)
	}

	identity := Identity{
		Valid:   true,
		Subject: claims.Subject,
		Role:    RoleMember,
	}
	if claims.Role == string(RoleAdmin) {
		identity.Role = RoleAdmin
	}
	if claims.TenantID != "" {
		tenantID, err := uuid.Parse(claims.TenantID)
		if err != nil {
			// A token carrying a malformed tenant claim is treated as
			// invalid, not as tenant-less.
			return Anonymous, nil
		}
		identity.TenantID = &tenantID
	}

	return identity, nil
}
