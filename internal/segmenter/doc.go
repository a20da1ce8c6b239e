// Package segmenter stream-copies an ordered set of normalized clips into
// an HLS fMP4 segment set and verifies the resulting artifacts.
package segmenter
