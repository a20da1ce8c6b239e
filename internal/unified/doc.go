// Package unified builds the whole-EDL HLS asset: every cut is extracted as
// a normalized clip, the clips are concatenated into one fMP4 segment set,
// and the result is cached under the EDL content hash.
package unified
