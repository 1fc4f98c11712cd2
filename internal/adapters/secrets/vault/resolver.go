// Package vault resolves "vault://<mount>/<path>#<field>" references
// against a HashiCorp Vault KV v2 store.
package vault

import (
	"context"
	"fmt"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"
)

// Resolver implements bus.SecretsResolver against a Vault client that is
// already authenticated (token, AppRole, or Kubernetes auth is the
// caller's concern, not this adapter's).
type Resolver struct {
	client *vaultapi.Client
}

// New wraps an authenticated Vault client.
func New(client *vaultapi.Client) *Resolver {
	return &Resolver{client: client}
}

func (r *Resolver) Scheme() string { return "vault" }

// Resolve accepts "vault://secret/data/esb/bus#dsn": mount+path before the
// fragment, field name after it.
func (r *Resolver) Resolve(ctx context.Context, reference string) (string, error) {
	rest := strings.TrimPrefix(reference, "vault://")
	pathPart, field, ok := strings.Cut(rest, "#")
	if !ok || field == "" {
		return "", fmt.Errorf("vault reference %q missing #field", reference)
	}

	secret, err := r.client.Logical().ReadWithContext(ctx, pathPart)
	if err != nil {
		return "", fmt.Errorf("reading vault path %q: %w", pathPart, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault path %q has no data", pathPart)
	}

	data := secret.Data
	if inner, ok := data["data"].(map[string]interface{}); ok {
		data = inner // KV v2 nests the payload under "data"
	}

	value, ok := data[field]
	if !ok {
		return "", fmt.Errorf("vault path %q has no field %q", pathPart, field)
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("vault path %q field %q is not a string", pathPart, field)
	}
	return str, nil
}
