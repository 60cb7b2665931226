// Package main provides the CLI for LeapDesk.
package main

import (
	"os"

	"github.com/leapstack-labs/leapdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
