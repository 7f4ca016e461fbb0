package gate

import "context"

// StaticResolver resolves tokens from a fixed map. Intended for development
// and tests; production deployments use OIDCResolver.
type StaticResolver struct {
	tokens map[string]Identity
}

// NewStaticResolver builds a resolver over a token -> identity map.
func NewStaticResolver(tokens map[string]Identity) *StaticResolver {
	copied := make(map[string]Identity, len(tokens))
	for k, v := range tokens {
		copied[k] = v
	}
	return &StaticResolver{tokens: copied}
}

// Resolve looks the token up; unknown tokens resolve to Anonymous.
func (r *StaticResolver) Resolve(_ context.Context, token string) (Identity, error) {
	if identity, ok := r.tokens[token]; ok {
		return identity, nil
	}
	return Anonymous, nil
}
