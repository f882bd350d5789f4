package config

import (
	"context"
	"os"
)

// EnvVarProvider resolves "parameters" as OS environment variables. It lets
// local runs exercise the same SecretProvider path without AWS access.
type EnvVarProvider struct{}

// NewEnvVarProvider creates a new EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch looks each key up with os.LookupEnv; missing keys are
// omitted from the result.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			result[key] = val
		}
	}
	return result, nil
}
