// Package main provides the SchemaRecall CLI.
//
// Usage:
//
//	schemarecall [flags] <command> [args]
//
// Commands:
//
//	serve    - Serve the training tools over MCP stdio
//	train    - Store DDL, documentation or question/SQL pairs
//	related  - Retrieve training data related to a question
//	list     - List stored training data
//	remove   - Remove a training record by id
//	health   - Report store health
//	config   - Configuration management
//
// Configuration:
//
//	Settings are read from .schemarecallconfig and SCHEMARECALL_* variables.
//	Use 'schemarecall config init' to write a starter file.
package main

import (
	"fmt"
	"os"

	"github.com/localrivet/schemarecall/cmd/schemarecall/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
