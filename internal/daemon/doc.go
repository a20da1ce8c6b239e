// Package daemon wires the long-running build service: a single-instance
// file lock, the job store, the workflow manager, and the operational HTTP
// surface.
package daemon
