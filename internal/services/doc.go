// Package services holds cross-cutting helpers shared by build components:
// the error taxonomy used to classify build failures and the sentinel
// wrapping helpers that keep diagnostic text intact as errors cross package
// boundaries.
//
// Validation errors fail fast before any subprocess is spawned; external
// tool, timeout, and integrity errors abort the current build and carry the
// captured transcoder diagnostics up to the status record.
package services
