package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"sellerpilot/internal/types"
)

// Load resolves the configuration from the environment. A .env file in the
// working directory is loaded first when present; missing files are fine.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationConfig, "failed to process environment configuration", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return types.NewAppError(types.ErrCodeValidationConfig, fmt.Sprintf("invalid configuration: %v", err), err)
	}
	return nil
}
