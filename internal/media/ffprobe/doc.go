// Package ffprobe wraps the ffprobe binary for source media inspection.
//
// Builders use it to validate EDL ranges against the real container duration
// and to confirm a source actually carries decodable video before any
// extraction work is scheduled.
package ffprobe
