package proxy

import "time"

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g. ":8000")
	ListenAddr string

	// UpstreamURL is the JiuTian API base URL; the proxy calls
	// {UpstreamURL}/completions and {UpstreamURL}/chat/completions.
	UpstreamURL string

	// Model is the single client-facing model identifier this proxy
	// fronts. Requests naming any other model are rejected before any
	// upstream call.
	Model string

	// UpstreamModel is the model identifier sent upstream. Defaults to
	// Model when empty.
	UpstreamModel string

	// APIKey is the shared secret "<identifier>.<signing key>" used to
	// mint per-call upstream credentials.
	APIKey string

	// TokenTTL is the lifetime requested for each minted credential.
	TokenTTL time.Duration

	// ExposeErrors gates whether internal error detail is echoed to
	// callers.
	ExposeErrors bool
}
