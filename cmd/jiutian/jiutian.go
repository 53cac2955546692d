// Package jiutiancmder
package jiutiancmder

import (
	"github.com/spf13/cobra"

	servecmder "github.com/huxuyf/jiutian/cmd/jiutian/serve"
	versioncmder "github.com/huxuyf/jiutian/cmd/version"
)

const jiutianLongDesc string = `Jiutian is a local gateway for the JiuTian LLM API.

It serves familiar local endpoints, signs every upstream call with a
short-lived credential minted from your API key, and translates the
upstream event stream into the wire format each caller asked for.

Run the gateway using:
  jiutian serve    Run the proxy server`

const jiutianShortDesc string = "Jiutian - local JiuTian LLM gateway"

func NewJiutianCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jiutian",
		Short: jiutianShortDesc,
		Long:  jiutianLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the directory holding config.toml")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
