package bus

import (
	"context"
	"fmt"
	"net/url"
)

// SecretsResolver resolves a SecretRef's scheme-qualified reference
// (§6.5) into its plaintext value. Implementations live under
// internal/adapters/secrets. ResolveAll rejects a scheme-qualified value
// whose scheme has no resolver in the map it is given.
type SecretsResolver interface {
	// Scheme is the URI scheme this resolver handles, e.g. "vault".
	Scheme() string
	Resolve(ctx context.Context, reference string) (string, error)
}

// ResolveAll walks every SecretRef field a caller collects and resolves
// scheme-qualified ones through the matching resolver, returning literals
// unchanged. Unknown schemes are a configuration error, not a silent
// pass-through.
func ResolveAll(ctx context.Context, refs map[string]SecretRef, resolvers map[string]SecretsResolver) (map[string]string, error) {
	out := make(map[string]string, len(refs))
	for key, ref := range refs {
		resolved, err := resolveOne(ctx, ref, resolvers)
		if err != nil {
			return nil, fmt.Errorf("resolving secret %q: %w", key, err)
		}
		out[key] = resolved
	}
	return out, nil
}

func resolveOne(ctx context.Context, ref SecretRef, resolvers map[string]SecretsResolver) (string, error) {
	raw := string(ref)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw, nil // literal value, not a scheme://reference
	}
	resolver, ok := resolvers[u.Scheme]
	if !ok {
		return "", fmt.Errorf("no secrets resolver registered for scheme %q", u.Scheme)
	}
	return resolver.Resolve(ctx, raw)
}
