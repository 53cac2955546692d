// Package servecmder provides the serve command running the proxy server.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/huxuyf/jiutian/pkg/config"
	"github.com/huxuyf/jiutian/pkg/logger"
	"github.com/huxuyf/jiutian/proxy"
)

type ServeCommander struct {
	listen        string
	upstream      string
	model         string
	upstreamModel string
	apiKey        string
	tokenTTL      int
	exposeErrors  bool
	debug         bool

	logger *zap.Logger
}

const serveLongDesc string = `Run the proxy server.

The proxy listens on a local address, gates requests to the single
configured model, and relays them to the upstream JiuTian API with a
freshly minted credential. Streaming responses are translated frame by
frame into the dialect the caller connected with.

The API key must have the form "<identifier>.<signing key>" as issued
by the JiuTian console. It can also be supplied via JIUTIAN_AUTH_API_KEY
or the auth.api_key entry of config.toml.`

const serveShortDesc string = "Run the jiutian proxy server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			// Flags win; anything not set on the command line falls back
			// to the resolved config (env, file, defaults).
			if !cmd.Flags().Changed("listen") {
				cmder.listen = cfg.Proxy.Listen
			}
			if !cmd.Flags().Changed("upstream") {
				cmder.upstream = cfg.Proxy.Upstream
			}
			if !cmd.Flags().Changed("model") {
				cmder.model = cfg.Proxy.Model
			}
			if !cmd.Flags().Changed("upstream-model") {
				cmder.upstreamModel = cfg.Proxy.UpstreamModel
			}
			if !cmd.Flags().Changed("api-key") {
				cmder.apiKey = cfg.Auth.APIKey
			}
			if !cmd.Flags().Changed("token-ttl") {
				cmder.tokenTTL = cfg.Auth.TokenTTLSeconds
			}
			if !cmd.Flags().Changed("expose-errors") {
				cmder.exposeErrors = cfg.Proxy.ExposeErrors
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", defaults.Proxy.Listen, "Address for proxy to listen on")
	cmd.Flags().StringVarP(&cmder.upstream, "upstream", "u", defaults.Proxy.Upstream, "Upstream JiuTian API base URL")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", defaults.Proxy.Model, "Client-facing model identifier this proxy fronts")
	cmd.Flags().StringVar(&cmder.upstreamModel, "upstream-model", defaults.Proxy.UpstreamModel, "Model identifier sent upstream (default: same as --model)")
	cmd.Flags().StringVarP(&cmder.apiKey, "api-key", "k", defaults.Auth.APIKey, "JiuTian API key (\"<identifier>.<signing key>\")")
	cmd.Flags().IntVar(&cmder.tokenTTL, "token-ttl", defaults.Auth.TokenTTLSeconds, "Lifetime in seconds of each minted upstream credential")
	cmd.Flags().BoolVar(&cmder.exposeErrors, "expose-errors", defaults.Proxy.ExposeErrors, "Echo internal error detail to callers")

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if c.apiKey == "" {
		return fmt.Errorf("an API key is required (set --api-key or JIUTIAN_AUTH_API_KEY)")
	}

	p, err := proxy.New(proxy.Config{
		ListenAddr:    c.listen,
		UpstreamURL:   c.upstream,
		Model:         c.model,
		UpstreamModel: c.upstreamModel,
		APIKey:        c.apiKey,
		TokenTTL:      time.Duration(c.tokenTTL) * time.Second,
		ExposeErrors:  c.exposeErrors,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	errChan := make(chan error, 1)
	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	}
}
