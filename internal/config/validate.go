package config

import (
	"fmt"
	"strings"
)

// Validate checks structural configuration invariants. Service credentials are
// checked later, by the client that needs them, so read-only commands work
// without keys.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.RegistryPath) == "" {
		return fmt.Errorf("paths.registry_path is required")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return fmt.Errorf("paths.output_dir is required")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}

	for name, value := range map[string]int{
		"workflow.item_delay_ms":            c.Workflow.ItemDelayMS,
		"meshgen.upload_delay_ms":           c.MeshGen.UploadDelayMS,
		"meshgen.fallback_poll_seconds":     c.MeshGen.FallbackPollSeconds,
		"meshgen.max_wait_minutes":          c.MeshGen.MaxWaitMinutes,
		"capture.readiness_timeout_seconds": c.Capture.ReadinessTimeout,
	} {
		if value < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	if c.MeshGen.MinPollSeconds < 1 {
		return fmt.Errorf("meshgen.min_poll_seconds must be at least 1")
	}
	if c.MeshGen.MaxPollSeconds < c.MeshGen.MinPollSeconds {
		return fmt.Errorf("meshgen.max_poll_seconds must not be below meshgen.min_poll_seconds")
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return fmt.Errorf("capture.width and capture.height must be positive")
	}
	return nil
}
