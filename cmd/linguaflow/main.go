package main

import (
	"os"

	"github.com/linguaflow/linguaflow/cmd/linguaflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
