// Package encodeprofile is the single source of transcoder arguments for
// every build path. Extraction, concat segmentation, per-decision CMAF, and
// the flat export all derive their ffmpeg invocations from one Profile so
// the invariant encoding cannot drift between builders.
package encodeprofile
