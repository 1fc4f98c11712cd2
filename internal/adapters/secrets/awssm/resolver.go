// Package awssm resolves "awssm://<secret-id>" references against AWS
// Secrets Manager.
package awssm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Resolver implements bus.SecretsResolver against a Secrets Manager client.
type Resolver struct {
	client *secretsmanager.Client
}

// New wraps an already-configured Secrets Manager client.
func New(client *secretsmanager.Client) *Resolver {
	return &Resolver{client: client}
}

func (r *Resolver) Scheme() string { return "awssm" }

// Resolve accepts "awssm://<secret-id>[#<json-key>]": the secret id, and
// an optional field name when the secret value is a JSON object rather
// than a plain string.
func (r *Resolver) Resolve(ctx context.Context, reference string) (string, error) {
	rest := strings.TrimPrefix(reference, "awssm://")
	secretID, jsonKey, hasKey := strings.Cut(rest, "#")

	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", fmt.Errorf("fetching secret %q: %w", secretID, err)
	}

	raw := out.SecretBinary
	if out.SecretString != nil {
		raw = []byte(*out.SecretString)
	}
	if !hasKey {
		return string(raw), nil
	}

	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("secret %q is not a JSON object, cannot extract field %q: %w", secretID, jsonKey, err)
	}
	value, ok := fields[jsonKey]
	if !ok {
		return "", fmt.Errorf("secret %q has no field %q", secretID, jsonKey)
	}
	return value, nil
}
