package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and document locations.
type Paths struct {
	OutputDir    string `toml:"output_dir"`
	ModelsDir    string `toml:"models_dir"`
	RegistryPath string `toml:"registry_path"`
	DataDir      string `toml:"data_dir"`
}

// Places contains configuration for the location resolution and place detail
// services.
type Places struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Capture contains configuration for the headless render surface.
type Capture struct {
	BaseURL          string `toml:"base_url"`
	Width            int    `toml:"width"`
	Height           int    `toml:"height"`
	ReadinessTimeout int    `toml:"readiness_timeout_seconds"`
	PollIntervalMS   int    `toml:"poll_interval_ms"`
}

// Inference contains configuration for the metadata-inference model.
type Inference struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ImageGen contains configuration for the sprite synthesis model.
type ImageGen struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ObjectStore contains configuration for the binary upload service that feeds
// the model generation provider.
type ObjectStore struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Bucket         string `toml:"bucket"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// MeshGen contains configuration for the asynchronous 3D generation provider
// and the polling behavior of the model pipeline.
type MeshGen struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	FallbackPollSeconds int    `toml:"fallback_poll_seconds"`
	MinPollSeconds      int    `toml:"min_poll_seconds"`
	MaxPollSeconds      int    `toml:"max_poll_seconds"`
	MaxWaitMinutes      int    `toml:"max_wait_minutes"`
	UploadDelayMS       int    `toml:"upload_delay_ms"`
}

// Workflow contains pacing configuration for the item pipeline.
type Workflow struct {
	ItemDelayMS int `toml:"item_delay_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for placeforge. Every
// component receives the values it needs explicitly; nothing reads the
// environment or process-wide state at run time.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Places      Places      `toml:"places"`
	Capture     Capture     `toml:"capture"`
	Inference   Inference   `toml:"inference"`
	ImageGen    ImageGen    `toml:"imagegen"`
	ObjectStore ObjectStore `toml:"object_store"`
	MeshGen     MeshGen     `toml:"meshgen"`
	Workflow    Workflow    `toml:"workflow"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/placeforge/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error: defaults apply. The returned config has all path fields
// expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("placeforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	for _, field := range []*string{
		&c.Paths.OutputDir,
		&c.Paths.ModelsDir,
		&c.Paths.RegistryPath,
		&c.Paths.DataDir,
	} {
		expanded, err := ExpandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.ModelsDir, c.Paths.DataDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath resolves a leading tilde and returns the cleaned absolute path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
