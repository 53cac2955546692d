// Package config carries the persistent jiutian proxy configuration.
// Values come from (highest precedence first) CLI flags, JIUTIAN_*
// environment variables, an optional config.toml, and built-in
// defaults.
package config

// Config is the full configuration tree. The TOML layout uses sections
// for logical grouping; the same dotted keys back the environment
// variables (JIUTIAN_PROXY_LISTEN, JIUTIAN_AUTH_API_KEY, ...).
type Config struct {
	Version int         `mapstructure:"version"`
	Proxy   ProxyConfig `mapstructure:"proxy"`
	Auth    AuthConfig  `mapstructure:"auth"`
}

// ProxyConfig holds the HTTP surface and model-gating settings.
type ProxyConfig struct {
	// Listen is the address the proxy serves on (e.g. ":8000").
	Listen string `mapstructure:"listen"`

	// Upstream is the JiuTian API base URL.
	Upstream string `mapstructure:"upstream"`

	// Model is the single client-facing model identifier this proxy
	// fronts. Requests naming any other model are rejected.
	Model string `mapstructure:"model"`

	// UpstreamModel is the model identifier sent upstream. Defaults to
	// Model when empty.
	UpstreamModel string `mapstructure:"upstream_model"`

	// ExposeErrors gates whether internal error detail is echoed to
	// callers in the detail field of error bodies.
	ExposeErrors bool `mapstructure:"expose_errors"`
}

// AuthConfig holds the upstream credential settings.
type AuthConfig struct {
	// APIKey is the shared secret of the form "<identifier>.<signing key>".
	APIKey string `mapstructure:"api_key"`

	// TokenTTLSeconds is the lifetime requested for each minted
	// credential.
	TokenTTLSeconds int `mapstructure:"token_ttl_seconds"`
}
