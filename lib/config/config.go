// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the configuration file for [Load].
const EnvironmentVariable = "ORCAROOT_CONFIG"

// ErrNotConfigured is returned by Load when ORCAROOT_CONFIG is unset.
var ErrNotConfigured = errors.New("config: " + EnvironmentVariable + " environment variable not set")

// Config is the configuration of a stream tool.
type Config struct {
	// Intake configures socket buffering.
	Intake IntakeConfig `yaml:"intake"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`

	// Decoders binds data IDs to decoders.
	Decoders DecodersConfig `yaml:"decoders"`

	// Status configures periodic status reporting.
	Status StatusConfig `yaml:"status"`
}

// IntakeConfig configures a socket reader.
type IntakeConfig struct {
	// BufferWords is the ring capacity in 32-bit words.
	// Default: 1048576 (4 MiB)
	BufferWords int `yaml:"buffer_words"`

	// PollInterval is how long a waiting consumer sleeps between
	// checks of the ring. 0 makes reads return immediately with
	// whatever is buffered.
	// Default: 1s
	PollInterval time.Duration `yaml:"poll_interval"`

	// ReadinessTimeout bounds each producer wait for socket data.
	// Default: 1s
	ReadinessTimeout time.Duration `yaml:"readiness_timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Verbosity is one of trace, debug, routine, warning, error, fatal.
	// Default: routine
	Verbosity string `yaml:"verbosity"`

	// Format is "text", "json", or "auto" (text on a terminal, JSON
	// otherwise).
	// Default: auto
	Format string `yaml:"format"`
}

// DecodersConfig binds data IDs to registered decoders.
type DecodersConfig struct {
	Bindings []Binding `yaml:"bindings"`
}

// Binding routes records carrying DataID to the decoder registered
// as Identity.
type Binding struct {
	// Identity is the decoder's run-header key, e.g.
	// "ORKatrinFLTModel:KatrinFLT".
	Identity string `yaml:"identity"`

	// DataID is the unshifted data ID from the run header.
	DataID uint32 `yaml:"data_id"`
}

// StatusConfig configures status reporting.
type StatusConfig struct {
	// File, when set, receives a CBOR status snapshot on exit.
	File string `yaml:"file"`

	// Interval between status log lines. 0 disables them.
	// Default: 10s
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration used when no file is given, and
// the base every file is merged over.
func Default() *Config {
	return &Config{
		Intake: IntakeConfig{
			BufferWords:      1 << 20,
			PollInterval:     time.Second,
			ReadinessTimeout: time.Second,
		},
		Logging: LoggingConfig{
			Verbosity: "routine",
			Format:    "auto",
		},
		Status: StatusConfig{
			Interval: 10 * time.Second,
		},
	}
}

// Load loads the file named by ORCAROOT_CONFIG. It returns
// ErrNotConfigured when the variable is unset; callers that can run
// on defaults check for that with errors.Is.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, ErrNotConfigured
	}
	return LoadFile(path)
}

// LoadFile loads the configuration at path over [Default] and expands
// variables in path fields. It does not validate; call Validate once
// command-line overrides are applied.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges the file at path into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch filepath.Ext(path) {
	case ".json", ".jsonc":
		// JSON is valid YAML once comments and trailing commas are
		// stripped, so one decoder serves both.
		data = jsonc.ToJSON(data)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Status.File = expandVars(c.Status.File, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, looking in
// vars before the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var logFormats = []string{"auto", "text", "json"}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Intake.BufferWords <= 0 {
		errs = append(errs, fmt.Errorf("intake.buffer_words must be positive, got %d", c.Intake.BufferWords))
	}
	if c.Intake.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("intake.poll_interval must not be negative, got %s", c.Intake.PollInterval))
	}
	if c.Intake.ReadinessTimeout <= 0 {
		errs = append(errs, fmt.Errorf("intake.readiness_timeout must be positive, got %s", c.Intake.ReadinessTimeout))
	}

	if c.Logging.Verbosity == "" {
		errs = append(errs, fmt.Errorf("logging.verbosity is required"))
	}
	if !contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", logFormats))
	}

	seen := make(map[uint32]string)
	for i, binding := range c.Decoders.Bindings {
		if binding.Identity == "" {
			errs = append(errs, fmt.Errorf("decoders.bindings[%d].identity is required", i))
		}
		if previous, ok := seen[binding.DataID]; ok && previous != binding.Identity {
			errs = append(errs, fmt.Errorf("decoders.bindings[%d]: data_id %#x already bound to %s", i, binding.DataID, previous))
		}
		seen[binding.DataID] = binding.Identity
	}

	if c.Status.Interval < 0 {
		errs = append(errs, fmt.Errorf("status.interval must not be negative, got %s", c.Status.Interval))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
