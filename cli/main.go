package main

import (
	"os"

	"github.com/paystream-labs/paystream/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
