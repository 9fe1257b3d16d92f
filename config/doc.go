// Package config loads the colloquy server configuration. Values come from
// three layers, lowest priority first: built-in defaults, an optional YAML
// file, then COLLOQUY_* environment variables.
package config
