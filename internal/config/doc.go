// Package config loads, normalizes, and validates curator's TOML
// configuration. Configuration is an explicit immutable value threaded into
// component constructors; nothing reads it ambiently.
package config
