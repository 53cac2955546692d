package main

import (
	"fmt"
	"os"

	servecmder "github.com/huxuyf/jiutian/cmd/jiutian/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()

	cmd.Use = "jiutianprox"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the directory holding config.toml")

	err := cmd.Execute()
	if err != nil {
		fmt.Printf("Error executing root command: %v\n", err)
		os.Exit(1)
	}
}
