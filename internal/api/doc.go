// Package api exposes the daemon's operational HTTP surface: health,
// Prometheus metrics, and read-only build status. Serving media and the
// editing CRUD surface belong to external layers; nothing here rewrites
// artifact filenames.
package api
