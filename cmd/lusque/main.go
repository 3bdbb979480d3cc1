// Package main provides the lusque command.
package main

import (
	"os"

	"github.com/leapstack-labs/lusque/internal/bootstrap"
	"github.com/leapstack-labs/lusque/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(bootstrap.ExitCode(err))
	}
}
