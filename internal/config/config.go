// Package config loads settings from config files, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the tool reads,
// e.g. BRANCH_USAGE_REGISTRY_URL.
const EnvPrefix = "BRANCH_USAGE"

// Config holds all configuration settings.
type Config struct {
	RegistryURL string        `mapstructure:"registry_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	Months      int           `mapstructure:"months"`

	// GitHub enables the upstream branch lookup.
	GitHub      bool   `mapstructure:"github"`
	GitHubToken string `mapstructure:"github_token"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		RegistryURL: "https://packagist.org",
		Timeout:     10 * time.Second,
		Concurrency: 8,
		Months:      9,
	}
}

// Load reads configuration from path, or from the standard locations when
// path is empty. A missing config file is not an error.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := Default()
	v := viper.New()
	v.SetDefault("registry_url", cfg.RegistryURL)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("concurrency", cfg.Concurrency)
	v.SetDefault("months", cfg.Months)
	v.SetDefault("github", cfg.GitHub)
	v.SetDefault("github_token", "")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// The token is commonly exported without the prefix.
	if err := v.BindEnv("github_token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind github token: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("branch-usage")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "branch-usage-checker"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence. godotenv never
// overrides variables that are already set, so the first file wins.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
}
