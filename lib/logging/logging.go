// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the slog loggers used by the stream tools.
//
// When the output is a terminal the logger uses slog.TextHandler for
// human-readable lines; when it is piped or redirected (DAQ run
// scripts, systemd, log shippers) it uses slog.JSONHandler.
//
// Verbosity names follow ORCA's log severities and map onto slog
// levels, with two levels beyond slog's own:
//
//	trace    LevelTrace (debug-4)
//	debug    slog.LevelDebug
//	routine  slog.LevelInfo
//	warning  slog.LevelWarn
//	error    slog.LevelError
//	fatal    LevelFatal (error+4)
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	// LevelTrace is below debug: per-record detail.
	LevelTrace = slog.LevelDebug - 4

	// LevelFatal is above error: the process is about to exit.
	LevelFatal = slog.LevelError + 4
)

// Output formats accepted by NewFormat.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// ErrUnknownVerbosity is returned by ParseVerbosity for a name it does
// not know.
var ErrUnknownVerbosity = errors.New("logging: unknown verbosity")

var verbosities = []struct {
	name  string
	level slog.Level
}{
	{"trace", LevelTrace},
	{"debug", slog.LevelDebug},
	{"routine", slog.LevelInfo},
	{"warning", slog.LevelWarn},
	{"error", slog.LevelError},
	{"fatal", LevelFatal},
}

// ParseVerbosity maps a verbosity name (case-insensitive) to a level.
// slog's own "info" and "warn" are accepted as aliases.
func ParseVerbosity(name string) (slog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	}
	for _, verbosity := range verbosities {
		if verbosity.name == name {
			return verbosity.level, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownVerbosity, name, strings.Join(VerbosityNames(), ", "))
}

// VerbosityNames lists the verbosity names from least to most severe.
func VerbosityNames() []string {
	names := make([]string, len(verbosities))
	for i, verbosity := range verbosities {
		names[i] = verbosity.name
	}
	return names
}

// New returns a logger writing to w at level, choosing text or JSON
// by whether w is a terminal.
//
//	logger := logging.New(os.Stderr, slog.LevelInfo).With("source", "crate-1")
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	logger, _ := NewFormat(w, level, FormatAuto)
	return logger
}

// NewFormat is New with an explicit format: FormatText, FormatJSON, or
// FormatAuto.
func NewFormat(w io.Writer, level slog.Leveler, format string) (*slog.Logger, error) {
	options := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameLevels,
	}

	switch format {
	case FormatAuto, "":
		if isTerminal(w) {
			return slog.New(slog.NewTextHandler(w, options)), nil
		}
		return slog.New(slog.NewJSONHandler(w, options)), nil
	case FormatText:
		return slog.New(slog.NewTextHandler(w, options)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, options)), nil
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// renameLevels prints the extra levels as TRACE and FATAL rather than
// slog's DEBUG-4 and ERROR+4.
func renameLevels(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 || attr.Key != slog.LevelKey {
		return attr
	}
	level, ok := attr.Value.Any().(slog.Level)
	if !ok {
		return attr
	}
	switch {
	case level <= LevelTrace:
		attr.Value = slog.StringValue("TRACE")
	case level >= LevelFatal:
		attr.Value = slog.StringValue("FATAL")
	}
	return attr
}
