// Package gcpsm resolves "gcpsm://projects/<project>/secrets/<name>/versions/<version>"
// references against Google Cloud Secret Manager.
package gcpsm

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Resolver implements bus.SecretsResolver against a Secret Manager client.
type Resolver struct {
	client *secretmanager.Client
}

// New wraps an already-authenticated Secret Manager client.
func New(client *secretmanager.Client) *Resolver {
	return &Resolver{client: client}
}

func (r *Resolver) Scheme() string { return "gcpsm" }

// Resolve accepts "gcpsm://projects/p/secrets/s/versions/latest", the
// resource name Secret Manager itself uses, with the scheme stripped.
func (r *Resolver) Resolve(ctx context.Context, reference string) (string, error) {
	name := strings.TrimPrefix(reference, "gcpsm://")
	resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("accessing secret version %q: %w", name, err)
	}
	return string(resp.Payload.Data), nil
}
