// Package config loads, normalizes, and validates edlstream configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// EDLSTREAM_API_BIND. The Config type centralizes every knob the daemon and
// CLI need: artifact and staging directories, transcoder parameters, worker
// pool sizing, and log routing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a validated encoding profile, and clear validation errors.
package config
