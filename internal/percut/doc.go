// Package percut builds per-decision CMAF fragment sets and assembles them
// into a single VOD playlist. Each decision is cached under a content key
// derived from its identity, boundaries, and builder version, so editing
// one decision never rebuilds its neighbors.
package percut
