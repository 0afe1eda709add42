// Package config loads, defaults, and validates the TOML configuration.
// Components never read the environment themselves; the command layer builds
// one Config and passes the relevant section into each constructor.
package config
