// Package config loads the client configuration from a YAML file in the user
// config directory. Missing files fall back to defaults; flags override
// loaded values at the command layer.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration round-trips through YAML as a human-editable string such as "60s"
// or "30ms" instead of raw nanoseconds.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return errors.Wrap(err, "duration must be a string such as 60s")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	// ServerURL is the base URL of the backend API.
	ServerURL string `yaml:"server_url"`
	// RequestTimeout bounds every transport round trip.
	RequestTimeout Duration `yaml:"request_timeout"`
	// RevealInterval is the per-character cadence of the reveal animation.
	RevealInterval Duration `yaml:"reveal_interval"`
	// BlinkInterval is the cursor blink cadence.
	BlinkInterval Duration `yaml:"blink_interval"`
	// LogLevel is a zerolog level name.
	LogLevel string `yaml:"log_level"`
	// TokenPath overrides where the bearer token is stored.
	TokenPath string `yaml:"token_path,omitempty"`
}

func Default() Config {
	return Config{
		ServerURL:      "http://localhost:8000",
		RequestTimeout: Duration(60 * time.Second),
		RevealInterval: Duration(30 * time.Millisecond),
		BlinkInterval:  Duration(500 * time.Millisecond),
		LogLevel:       "info",
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve user config dir")
	}
	return filepath.Join(dir, "neurochat", "config.yaml"), nil
}

// Load reads the config at path, layering it over the defaults. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config file %s", path)
	}
	return cfg, nil
}

// Write persists the config, creating the directory if needed.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}
