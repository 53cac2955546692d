// Package proxy exposes a local HTTP surface for the JiuTian LLM API
// and translates its streaming responses into the wire formats the
// caller connected with.
//
// The proxy is a relay: each request is handled by a single goroutine
// owning a translation session, upstream event-stream frames are
// decoded and re-encoded one at a time, and downstream writes apply
// backpressure to upstream reads so no response is ever buffered
// whole.
package proxy

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"go.uber.org/zap"

	"github.com/huxuyf/jiutian/proxy/header"
)

// Proxy is the jiutian relay server.
type Proxy struct {
	config        Config
	logger        *zap.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Proxy.
func New(config Config, logger *zap.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	if config.Model == "" {
		return nil, errors.New("model is required")
	}
	if config.UpstreamModel == "" {
		config.UpstreamModel = config.Model
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = time.Hour
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	// Compression for the non-streaming responses
	app.Use(compress.New())

	p := &Proxy{
		config:        config,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			// LLM requests can be slow; streaming reads are bounded by
			// the transport, not this timeout.
			Timeout: 5 * time.Minute,
		},
	}

	app.Post("/api/completions", p.handleCompletions)
	app.Post("/api/chat", p.handleChat)
	app.Post("/api/generate", p.handleGenerate)
	app.Get("/api/tags", p.handleTags)
	app.Get("/api/version", p.handleVersion)
	app.Get("/health", p.handleHealth)

	return p, nil
}

// Run starts the proxy server on the configured listening address.
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		zap.String("listen", p.config.ListenAddr),
		zap.String("upstream", p.config.UpstreamURL),
		zap.String("model", p.config.Model),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		zap.String("listen", listener.Addr().String()),
		zap.String("upstream", p.config.UpstreamURL),
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy.
func (p *Proxy) Close() error {
	return p.server.Shutdown()
}

// setStreamHeaders marks the response as a live event stream.
func setStreamHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
}
