// Package main provides the entry point for the reelvibe CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/reelvibe/cmd/reelvibe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
