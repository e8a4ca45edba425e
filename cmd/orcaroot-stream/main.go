// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/sjmeijer/orcaroot/lib/clock"
	"github.com/sjmeijer/orcaroot/lib/config"
	"github.com/sjmeijer/orcaroot/lib/decoder"
	"github.com/sjmeijer/orcaroot/lib/logging"
	"github.com/sjmeijer/orcaroot/lib/version"
)

// dialTimeout bounds the connection attempt to a data socket.
const dialTimeout = 10 * time.Second

// errStreamNotOK is returned when the stream ended on an error. main
// exits 1 for it like any other error.
var errStreamNotOK = errors.New("stream ended with the reader not OK")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// flags holds the command-line values. Only flags the user set
// override the configuration file.
type flags struct {
	configPath       string
	verbosity        string
	logFormat        string
	label            string
	bufferWords      int
	pollInterval     time.Duration
	readinessTimeout time.Duration
	bindings         []string
	statusFile       string
	statusInterval   time.Duration
	showVersion      bool
	help             bool
}

func newFlagSet(values *flags) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("orcaroot-stream", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&values.configPath, "config", "", "configuration file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVarP(&values.verbosity, "verbosity", "v", "", "log verbosity: "+strings.Join(logging.VerbosityNames(), ", "))
	flagSet.StringVar(&values.logFormat, "log-format", "", "log format: auto, text, json")
	flagSet.StringVar(&values.label, "label", "", "source label attached to every log line")
	flagSet.IntVar(&values.bufferWords, "buffer-words", 0, "ring buffer capacity in 32-bit words")
	flagSet.DurationVar(&values.pollInterval, "poll-interval", 0, "consumer poll interval (0 never blocks)")
	flagSet.DurationVar(&values.readinessTimeout, "readiness-timeout", 0, "producer wait per readiness check")
	flagSet.StringArrayVar(&values.bindings, "bind", nil, "bind a decoder to a data ID as identity=dataID (repeatable)")
	flagSet.StringVar(&values.statusFile, "status-file", "", "write a CBOR status snapshot here on exit")
	flagSet.DurationVar(&values.statusInterval, "status-interval", 0, "interval between status log lines (0 disables)")
	flagSet.BoolVar(&values.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&values.help, "help", "h", false, "show help")
	return flagSet
}

func run(args []string, stdout, stderr io.Writer) error {
	var values flags
	flagSet := newFlagSet(&values)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stdout, flagSet)
			return nil
		}
		return err
	}
	if values.help {
		printHelp(stdout, flagSet)
		return nil
	}
	if values.showVersion {
		fmt.Fprintf(stdout, "orcaroot-stream %s\n", version.Full())
		return nil
	}

	inputs := flagSet.Args()
	if len(inputs) == 0 {
		return fmt.Errorf("no input: give one host:port or one or more files (see --help)")
	}

	cfg, err := loadConfig(values.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, flagSet, &values); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	level, err := logging.ParseVerbosity(cfg.Logging.Verbosity)
	if err != nil {
		return err
	}
	logger, err := logging.NewFormat(stderr, level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	registry := decoder.Default()
	for _, binding := range cfg.Decoders.Bindings {
		if err := registry.Bind(binding.DataID, binding.Identity); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream := &streamer{
		logger:   logger,
		registry: registry,
		clock:    clock.Real(),
		interval: cfg.Status.Interval,
		counts:   newTally(),
	}
	return stream.run(ctx, cfg, values.label, inputs)
}

// loadConfig reads the file named by --config, else the file named by
// ORCAROOT_CONFIG, else returns the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNotConfigured) {
		return config.Default(), nil
	}
	return cfg, err
}

// applyFlags overrides cfg with every flag the user set explicitly.
func applyFlags(cfg *config.Config, flagSet *pflag.FlagSet, values *flags) error {
	if flagSet.Changed("verbosity") {
		cfg.Logging.Verbosity = values.verbosity
	}
	if flagSet.Changed("log-format") {
		cfg.Logging.Format = values.logFormat
	}
	if flagSet.Changed("buffer-words") {
		cfg.Intake.BufferWords = values.bufferWords
	}
	if flagSet.Changed("poll-interval") {
		cfg.Intake.PollInterval = values.pollInterval
	}
	if flagSet.Changed("readiness-timeout") {
		cfg.Intake.ReadinessTimeout = values.readinessTimeout
	}
	if flagSet.Changed("status-file") {
		cfg.Status.File = values.statusFile
	}
	if flagSet.Changed("status-interval") {
		cfg.Status.Interval = values.statusInterval
	}
	for _, text := range values.bindings {
		binding, err := parseBinding(text)
		if err != nil {
			return err
		}
		cfg.Decoders.Bindings = append(cfg.Decoders.Bindings, binding)
	}
	return nil
}

// parseBinding parses "identity=dataID". The identity may itself hold
// colons ("ORKatrinFLTModel:KatrinFLT"); the data ID accepts 0x and 0o
// prefixes.
func parseBinding(text string) (config.Binding, error) {
	separator := strings.LastIndex(text, "=")
	if separator <= 0 || separator == len(text)-1 {
		return config.Binding{}, fmt.Errorf("--bind %q: want identity=dataID", text)
	}
	dataID, err := strconv.ParseUint(text[separator+1:], 0, 32)
	if err != nil {
		return config.Binding{}, fmt.Errorf("--bind %q: data ID: %w", text, err)
	}
	return config.Binding{
		Identity: text[:separator],
		DataID:   uint32(dataID),
	}, nil
}

// isAddress reports whether input names a data socket rather than a
// file. An existing file always wins.
func isAddress(input string) bool {
	if _, err := os.Stat(input); err == nil {
		return false
	}
	host, port, err := net.SplitHostPort(input)
	if err != nil || host == "" {
		return false
	}
	_, err = strconv.ParseUint(port, 10, 16)
	return err == nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(w, `orcaroot-stream - read an ORCA data stream

Connects to an ORCA data socket, or reads recorded stream files, frames
the records, and reports per-data-ID counts. Records whose data ID is
bound to a decoder are decoded and logged at debug verbosity.

USAGE
    orcaroot-stream [flags] <host:port>
    orcaroot-stream [flags] <file>...

Files ending in .zst or .lz4 are decompressed on the fly.

EXAMPLES
    # Follow a live DAQ and bind the KATRIN FLT energy decoder
    orcaroot-stream --bind ORKatrinFLTModel:KatrinFLT=0x80000 daq01:44666

    # Check a set of recorded runs and keep a status snapshot
    orcaroot-stream --status-file run.status.cbor Run1234 Run1235.zst

FLAGS
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
