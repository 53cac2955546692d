package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads config.toml from
// configDir (or the working directory when empty), and binds
// environment variables with the JIUTIAN_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound by the command)
//  2. Environment variables (JIUTIAN_PROXY_LISTEN, JIUTIAN_AUTH_API_KEY, ...)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	} else {
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("JIUTIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Load unmarshals the resolved viper state into a Config and applies
// the derived defaults that depend on other values.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.Proxy.UpstreamModel == "" {
		cfg.Proxy.UpstreamModel = cfg.Proxy.Model
	}
	return &cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() using
// dotted-key notation. This keeps defaults.go as the single source of
// truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Proxy
	v.SetDefault("proxy.listen", d.Proxy.Listen)
	v.SetDefault("proxy.upstream", d.Proxy.Upstream)
	v.SetDefault("proxy.model", d.Proxy.Model)
	v.SetDefault("proxy.upstream_model", d.Proxy.UpstreamModel)
	v.SetDefault("proxy.expose_errors", d.Proxy.ExposeErrors)

	// Auth
	v.SetDefault("auth.api_key", d.Auth.APIKey)
	v.SetDefault("auth.token_ttl_seconds", d.Auth.TokenTTLSeconds)
}
