// Package logging provides structured, rotation-capable logging for the
// kernel. When enabled, JSON logs are written to ~/.gik/logs/ for debugging
// commit, reindex, and ask pipelines.
//
// By default logging is minimal and goes to stderr only.
package logging
