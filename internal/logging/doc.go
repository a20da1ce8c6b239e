// Package logging assembles structured slog loggers and formatting helpers
// used across edlstream.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes helpers so build code can tag log lines with EDL
// hashes, build kinds, and component names. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape and routing guarantees.
package logging
