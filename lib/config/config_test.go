// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Intake.BufferWords != 1<<20 {
		t.Errorf("expected buffer_words=1048576, got %d", cfg.Intake.BufferWords)
	}
	if cfg.Intake.PollInterval != time.Second {
		t.Errorf("expected poll_interval=1s, got %s", cfg.Intake.PollInterval)
	}
	if cfg.Intake.ReadinessTimeout != time.Second {
		t.Errorf("expected readiness_timeout=1s, got %s", cfg.Intake.ReadinessTimeout)
	}
	if cfg.Logging.Verbosity != "routine" || cfg.Logging.Format != "auto" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresOrcaRootConfig(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestLoad_WithOrcaRootConfig(t *testing.T) {
	path := writeConfig(t, "orcaroot.yaml", `
intake:
  buffer_words: 4096
`)
	t.Setenv(EnvironmentVariable, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Intake.BufferWords != 4096 {
		t.Errorf("expected buffer_words=4096, got %d", cfg.Intake.BufferWords)
	}
	// Absent keys keep their defaults.
	if cfg.Intake.PollInterval != time.Second {
		t.Errorf("expected default poll_interval, got %s", cfg.Intake.PollInterval)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeConfig(t, "orcaroot.yaml", `
intake:
  buffer_words: 65536
  poll_interval: 0s
  readiness_timeout: 250ms
logging:
  verbosity: debug
  format: json
decoders:
  bindings:
    - identity: ORKatrinFLTModel:KatrinFLT
      data_id: 0x00080000
status:
  file: /tmp/status.cbor
  interval: 30s
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Intake.BufferWords != 65536 {
		t.Errorf("buffer_words = %d", cfg.Intake.BufferWords)
	}
	if cfg.Intake.PollInterval != 0 {
		t.Errorf("poll_interval = %s, want 0", cfg.Intake.PollInterval)
	}
	if cfg.Intake.ReadinessTimeout != 250*time.Millisecond {
		t.Errorf("readiness_timeout = %s", cfg.Intake.ReadinessTimeout)
	}
	if cfg.Logging.Verbosity != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if len(cfg.Decoders.Bindings) != 1 {
		t.Fatalf("bindings = %+v", cfg.Decoders.Bindings)
	}
	binding := cfg.Decoders.Bindings[0]
	if binding.Identity != "ORKatrinFLTModel:KatrinFLT" || binding.DataID != 0x00080000 {
		t.Errorf("binding = %+v", binding)
	}
	if cfg.Status.File != "/tmp/status.cbor" || cfg.Status.Interval != 30*time.Second {
		t.Errorf("status = %+v", cfg.Status)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	path := writeConfig(t, "orcaroot.jsonc", `{
  // Small ring for a test stand.
  "intake": {
    "buffer_words": 2048,
    "poll_interval": "10ms", /* fast polling */
  },
  "decoders": {
    "bindings": [
      {"identity": "ORKatrinFLTModel:KatrinFLT", "data_id": 524288},
    ],
  },
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Intake.BufferWords != 2048 {
		t.Errorf("buffer_words = %d", cfg.Intake.BufferWords)
	}
	if cfg.Intake.PollInterval != 10*time.Millisecond {
		t.Errorf("poll_interval = %s", cfg.Intake.PollInterval)
	}
	if len(cfg.Decoders.Bindings) != 1 || cfg.Decoders.Bindings[0].DataID != 0x00080000 {
		t.Errorf("bindings = %+v", cfg.Decoders.Bindings)
	}
}

func TestLoadFile_Empty(t *testing.T) {
	path := writeConfig(t, "empty.yaml", "")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed on an empty file: %v", err)
	}
	if cfg.Intake.BufferWords != Default().Intake.BufferWords {
		t.Errorf("empty file changed buffer_words to %d", cfg.Intake.BufferWords)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v, want os.ErrNotExist", err)
	}

	path := writeConfig(t, "typo.yaml", "intake:\n  bufer_words: 12\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("unknown key was accepted")
	}

	path = writeConfig(t, "bad-duration.yaml", "intake:\n  poll_interval: soon\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("malformed duration was accepted")
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("HOME", "/home/daq")

	path := writeConfig(t, "orcaroot.yaml", `
status:
  file: ${HOME}/status.cbor
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Status.File != "/home/daq/status.cbor" {
		t.Errorf("status.file = %s, want /home/daq/status.cbor", cfg.Status.File)
	}

	tests := []struct {
		input string
		want  string
	}{
		{"${HOME}/status.cbor", "/home/daq/status.cbor"},
		{"${ORCAROOT_UNSET_VARIABLE:-/var/lib/orcaroot}/s", "/var/lib/orcaroot/s"},
		{"${ORCAROOT_UNSET_VARIABLE}", ""},
		{"plain/path", "plain/path"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, map[string]string{"HOME": "/home/daq"}); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Intake.BufferWords = 0
	cfg.Intake.PollInterval = -time.Second
	cfg.Intake.ReadinessTimeout = 0
	cfg.Logging.Verbosity = ""
	cfg.Logging.Format = "xml"
	cfg.Status.Interval = -1
	cfg.Decoders.Bindings = []Binding{
		{Identity: "ORKatrinFLTModel:KatrinFLT", DataID: 0x00080000},
		{Identity: "", DataID: 0x000C0000},
		{Identity: "ORTestModel:Test", DataID: 0x00080000},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{
		"intake.buffer_words",
		"intake.poll_interval",
		"intake.readiness_timeout",
		"logging.verbosity",
		"logging.format",
		"decoders.bindings[1].identity",
		"already bound",
		"status.interval",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error does not mention %q:\n%v", want, err)
		}
	}
}
