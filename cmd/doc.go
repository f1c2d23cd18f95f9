// Package cmd implements the command-line interface for mailtriage.
//
// This package provides the following commands:
//   - triage: Move threads whose patches have landed from the source label to the done label
//   - labels: List labels or look one up by name
//   - threads: Print the messages of every thread under a label
//   - auth: Authorize mailtriage against a Gmail account
//   - cache: Inspect or prune the local thread cache
//   - serve: Start the MCP server to provide tools for AI assistants
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// The triage command is the default command when no subcommand is specified.
package cmd
