// Package config loads and writes mycbr connection profiles.
//
// Precedence (highest to lowest):
//  1. Command-line flags (applied by the caller)
//  2. Environment variables (MYCBR_BASE_URL, MYCBR_LOG_LEVEL, ...)
//  3. YAML profile file ($XDG_CONFIG_HOME/mycbr/config.yaml)
//  4. Defaults
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"mycbr/internal/logging"
)

// Output formats accepted by Profile.Output.
var OutputFormats = []string{"ascii", "markdown", "json", "csv"}

// Profile is everything mycbr needs to talk to one CBR server.
type Profile struct {
	BaseURL   string        `koanf:"base_url" yaml:"base_url"`
	Concept   string        `koanf:"concept" yaml:"concept,omitempty"`
	Casebase  string        `koanf:"casebase" yaml:"casebase,omitempty"`
	Function  string        `koanf:"function" yaml:"function,omitempty"`
	Precision int           `koanf:"precision" yaml:"precision"`
	K         int           `koanf:"k" yaml:"k"`
	Timeout   time.Duration `koanf:"timeout" yaml:"timeout"`
	Output    string        `koanf:"output" yaml:"output"`
	Log       Log           `koanf:"log" yaml:"log"`
}

// Log configures slog output.
type Log struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// Default returns the built-in profile.
func Default() Profile {
	return Profile{
		BaseURL:   "http://localhost:8080",
		Precision: 3,
		K:         -1,
		Timeout:   30 * time.Second,
		Output:    "ascii",
		Log:       Log{Level: "info", Format: logging.FormatText},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/mycbr/config.yaml (or the platform equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(dir, "mycbr", "config.yaml"), nil
}

// Validate rejects profiles mycbr cannot act on.
func (p *Profile) Validate() error {
	var errs []error

	u, err := url.Parse(p.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("base_url: scheme must be http or https, got %q", p.BaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("base_url: missing host in %q", p.BaseURL))
	}

	if p.K < -1 {
		errs = append(errs, fmt.Errorf("k: must be -1 (all) or >= 0, got %d", p.K))
	}
	if p.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout: must not be negative, got %s", p.Timeout))
	}
	if !slices.Contains(OutputFormats, p.Output) {
		errs = append(errs, fmt.Errorf("output: unknown format %q (want one of %v)", p.Output, OutputFormats))
	}
	if _, err := logging.ParseLevel(p.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if p.Log.Format != logging.FormatText && p.Log.Format != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", p.Log.Format))
	}
	return errors.Join(errs...)
}
