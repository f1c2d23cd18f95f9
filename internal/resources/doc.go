// Package resources provides read-only MCP resources describing the mailbox
// and the local thread cache.
package resources
