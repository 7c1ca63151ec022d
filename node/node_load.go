package node

import (
	"os"

	"github.com/thrylos-labs/posseal/config"
)

// DefaultEnvFile picks the .env file for the current deployment from ENV.
func DefaultEnvFile() string {
	if os.Getenv("ENV") == "production" {
		return ".env.prod"
	}
	return ".env.dev"
}

// LoadConfig reads configPath, applies .env and process overrides and
// validates the result. An empty envPath falls back to DefaultEnvFile.
func LoadConfig(configPath, envPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if envPath == "" {
		envPath = DefaultEnvFile()
	}
	if err := cfg.LoadEnv(envPath); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
