package main

import (
	"os"

	"github.com/greencredits/greencredits/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
