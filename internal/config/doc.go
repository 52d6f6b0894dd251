// Package config loads, normalizes, and validates buildwatch configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks such as BUILDWATCH_API_TOKEN,
// BUILDWATCH_NTFY_TOPIC, and GITHUB_TOKEN. Pipelines listed in the file are
// seeds: the daemon imports them into its store the first time it starts with
// an empty pipeline set.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
