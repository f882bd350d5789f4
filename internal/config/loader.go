// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. If APP_ENV != "local", resolve _SSM_PARAM pointer variables via the
//     SecretProvider and inject the resolved values back into the environment.
//  4. Use envconfig to process struct tags and populate the target struct.
//  5. Validate the struct using go-playground/validator; missing required
//     values are reported by environment variable name.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by the loaders.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks pointer variables: THUMBNAILS_BUCKET_NAME_SSM_PARAM
// holds the SSM path whose value becomes THUMBNAILS_BUCKET_NAME.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// loaderDeps holds the injectable OS dependencies of the loader so tests do
// not have to mutate global state.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadWorkerConfig loads and validates the thumbnail worker configuration.
// provider may be nil in local mode.
func LoadWorkerConfig(provider SecretProvider) (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := load(provider, defaultDeps(), &cfg); err != nil {
		return nil, err
	}
	cfg.Build = NewBuildInfo()
	return &cfg, nil
}

// LoadRedriveConfig loads and validates the DLQ redriver configuration.
// provider may be nil in local mode.
func LoadRedriveConfig(provider SecretProvider) (*RedriveConfig, error) {
	var cfg RedriveConfig
	if err := load(provider, defaultDeps(), &cfg); err != nil {
		return nil, err
	}
	cfg.Build = NewBuildInfo()
	return &cfg, nil
}

// load runs the loading sequence into target, which must be a pointer to a
// config struct.
func load(provider SecretProvider, deps loaderDeps, target any) error {
	time.Local = time.UTC

	// godotenv never overrides variables that are already set.
	_ = godotenv.Load()

	if appEnv, _ := deps.lookupEnv("APP_ENV"); appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return err
		}
	}

	if err := envconfig.Process("", target); err != nil {
		return &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	return validate(target)
}

// newValidator returns a validator that names fields by their envconfig tag,
// so errors point at the variable an operator has to set.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("envconfig"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

func validate(target any) error {
	err := newValidator().Struct(target)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}

	var missing []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: fmt.Sprintf("required environment variables not set: %s", strings.Join(missing, ", ")),
			Err:     err,
		}
	}

	return &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
}

// resolveSSMParams scans the environment for *_SSM_PARAM variables, fetches
// the referenced values through the provider in one batch, and sets the
// target variables. Targets that are already set are left alone (Env > SSM).
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	// ssm path -> target variable
	bindings := make(map[string]string)

	for _, entry := range deps.environ() {
		key, ssmPath, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || ssmPath == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		bindings[ssmPath] = target
	}

	if len(bindings) == 0 {
		return nil
	}

	paths := make([]string, 0, len(bindings))
	for p := range bindings {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if provider == nil {
		targets := make([]string, 0, len(paths))
		for _, p := range paths {
			targets = append(targets, bindings[p])
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(targets, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, p := range paths {
		value, ok := resolved[p]
		if !ok {
			missing = append(missing, bindings[p])
			continue
		}
		if err := deps.setEnv(bindings[p], value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", bindings[p]),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
