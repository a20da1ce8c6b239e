// Package clip extracts single cuts from source files as normalized,
// concat-compatible clips.
package clip
