package main

import (
	"os"

	"github.com/petshop-dev/petshop/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
