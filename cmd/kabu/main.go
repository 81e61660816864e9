package main

import (
	"os"

	"github.com/tenchu0314/kabu-predictor/cmd/kabu/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
