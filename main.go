package main

import (
	"os"

	"github.com/conneroisu/assetpack/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
