// Package workflow drives persisted build jobs to completion. A polling
// manager claims pending jobs and executes them in a bounded pool of
// worker goroutines, recording terminal status back into the queue.
package workflow
