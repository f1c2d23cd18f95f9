// Package triage_tools exposes the triage workflow as MCP tools: browsing
// labels and threads, checking whether a thread's patch is in the commit
// log, and (in write mode) moving threads between labels.
package triage_tools
