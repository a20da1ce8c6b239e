// Package buildqueue persists build jobs in SQLite so requests survive
// daemon restarts and status is visible across processes. Enqueueing
// returns immediately; the workflow manager claims jobs and drives them to
// a terminal status.
package buildqueue
