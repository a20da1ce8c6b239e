// Package ffmpeg runs transcoder subprocesses with consistent timeout,
// process-group termination, and stderr capture semantics.
//
// Every pipeline stage that shells out to ffmpeg goes through the Runner
// interface so builds share one failure model and tests can substitute fake
// runners that fabricate output files instead of encoding video.
package ffmpeg
