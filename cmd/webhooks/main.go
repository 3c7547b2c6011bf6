package main

import (
	"os"

	"github.com/jcieslar/webhooks/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
