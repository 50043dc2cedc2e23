// Package config loads runtime configuration for the atlas service from
// multiple sources (YAML files, environment variables, CLI flags) with
// precedence: CLI flags > YAML config > Environment variables > Defaults.
//
// Besides HTTP server settings it carries the packer limits, the zero size
// policy, texture rounding and the storage backend selection.
package config
