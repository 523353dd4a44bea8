// Package main is the entry point for the mcpcs CLI.
package main

import (
	"os"

	"github.com/vikashloomba/mcpcs-go/cmd/mcpcs/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
