// Package edl defines the edit decision list data model: ordered cut
// entries, validation rules, and the content hash that addresses unified
// artifacts.
package edl
