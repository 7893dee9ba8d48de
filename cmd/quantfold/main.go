package main

import (
	"os"

	"github.com/quantfold/quantfold/cmd/quantfold/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
