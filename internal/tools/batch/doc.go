// Package batch provides helpers for tools that act on several threads in
// one call: parameter parsing for "one id or a list of ids" and a JSON
// summary that reports per-thread success or failure.
package batch
