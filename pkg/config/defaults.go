package config

const (
	// CurrentV is the currently supported config version.
	CurrentV = 0

	defaultListen       = ":8000"
	defaultUpstream     = "https://jiutian.10086.cn/largemodel/api/v1"
	defaultModel        = "jiutian-lan"
	defaultTokenTTLSecs = 3600
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Proxy: ProxyConfig{
			Listen:   defaultListen,
			Upstream: defaultUpstream,
			Model:    defaultModel,
		},
		Auth: AuthConfig{
			TokenTTLSeconds: defaultTokenTTLSecs,
		},
	}
}
