// Package configuration loads and validates the broker's JSON configuration
// file.
package configuration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"broker/pkg/logger"
	"broker/pkg/model"
)

type envVars struct {
	ConfigFile string `envconfig:"BROKER_CONFIG" required:"true"`
}

// New reads the config file path from the BROKER_CONFIG environment
// variable, decodes it strictly (unknown keys are rejected) and validates
// required fields.
func New(ctx context.Context) (*model.Config, error) {
	log := logger.NewSimple("configuration")
	log.Info("reading environment variable BROKER_CONFIG")

	env := envVars{}
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	return Parse(ctx, env.ConfigFile)
}

// Parse loads configuration from an explicit path, useful for tests and for
// callers that already know where the file lives.
func Parse(ctx context.Context, path string) (*model.Config, error) {
	cfg := &model.Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %q is a directory", path)
	}

	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding config file: %w", err)
	}

	v := validator.New()
	if err := v.StructCtx(ctx, cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}
