package main

import (
	"fmt"
	"os"

	jiutiancmder "github.com/huxuyf/jiutian/cmd/jiutian"
)

func main() {
	cmd := jiutiancmder.NewJiutianCmd()

	err := cmd.Execute()
	if err != nil {
		fmt.Printf("Error executing root command: %v\n", err)
		os.Exit(1)
	}
}
