// Package logging configures slog with console and JSON handlers and carries
// the standardized structured field vocabulary used across the pipelines.
package logging
