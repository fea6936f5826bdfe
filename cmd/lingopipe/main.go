// Package main provides the lingopipe CLI tool.
//
// Usage:
//
//	lingopipe [flags] <command> [args]
//
// Commands:
//
//	run      - Start a live interpreter session (microphone -> speakers)
//	devices  - List host audio devices
//	config   - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.lingopipe/config.yaml
//	Use 'lingopipe config' commands to manage contexts.
package main

import (
	"os"

	"github.com/lingopipe/lingopipe/cmd/lingopipe/commands"
	"github.com/lingopipe/lingopipe/pkg/cli"
)

func main() {
	if err := commands.Execute(); err != nil {
		cli.PrintError("%v", err)
		os.Exit(1)
	}
}
