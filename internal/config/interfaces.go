package config

import "context"

// SecretProvider abstracts secret retrieval so production can read AWS SSM
// Parameter Store while local development reads plain environment variables.
type SecretProvider interface {
	// GetParametersBatch resolves the given parameter paths and returns
	// path -> plaintext value for every path it could resolve.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
