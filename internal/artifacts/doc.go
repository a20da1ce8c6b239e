// Package artifacts manages the content-addressed unified build cache:
// directory layout, persisted status records, and the per-hash advisory
// lease that keeps concurrent first-time builds from colliding.
//
// Status records live in status.json next to the artifacts they describe,
// so status survives process restarts and is readable by any process with
// filesystem access. A record is written atomically and only after the
// state it reports is true on disk.
package artifacts
