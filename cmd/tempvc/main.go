package main

import (
	"os"

	"github.com/bnema/tempvc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
