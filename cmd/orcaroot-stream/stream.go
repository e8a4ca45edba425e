// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sjmeijer/orcaroot/lib/clock"
	"github.com/sjmeijer/orcaroot/lib/codec"
	"github.com/sjmeijer/orcaroot/lib/config"
	"github.com/sjmeijer/orcaroot/lib/decoder"
	"github.com/sjmeijer/orcaroot/lib/framing"
	"github.com/sjmeijer/orcaroot/lib/intake"
	"github.com/sjmeijer/orcaroot/lib/version"
)

// source is what the streamer reads from: an [intake.SocketReader] or
// an [intake.FileReader].
type source interface {
	io.Reader
	OK() bool
	Close() error
}

// streamer drives one run of the tool over one source.
type streamer struct {
	logger   *slog.Logger
	registry *decoder.Registry
	clock    clock.Clock
	interval time.Duration
	counts   *tally
}

// run opens the inputs, consumes the stream to its end (or until ctx
// is cancelled), and writes the status snapshot if configured.
func (s *streamer) run(ctx context.Context, cfg *config.Config, label string, inputs []string) error {
	input, describe, err := s.open(ctx, cfg, label, inputs)
	if err != nil {
		return err
	}
	defer input.Close()

	// A socket reader's Read blocks on the producer; closing it stops the
	// producer and lets the read drain and return. A file reader is
	// checked between records instead.
	if _, ok := input.(*intake.SocketReader); ok {
		go func() {
			<-ctx.Done()
			input.Close()
		}()
	}

	statusDone := make(chan struct{})
	statusStop := make(chan struct{})
	go func() {
		defer close(statusDone)
		s.reportStatus(statusStop, input)
	}()

	started := s.clock.Now()
	records := framing.NewRecordReader(input, nil)
	consumeErr := s.consume(ctx, records)
	close(statusStop)
	<-statusDone

	ok := input.OK() && consumeErr == nil
	if consumeErr != nil {
		s.logger.Error("stream failed", "error", consumeErr)
	}

	snapshot := s.snapshot(records, ok, started)
	describe(&snapshot)
	if consumeErr != nil && snapshot.Error == "" {
		snapshot.Error = consumeErr.Error()
	}
	s.logger.Info("stream finished",
		"ok", ok,
		"records", snapshot.Records,
		"words", snapshot.Words,
		"stream_version", snapshot.StreamVersion,
		"duration", snapshot.EndedAt.Sub(snapshot.StartedAt),
	)

	if cfg.Status.File != "" {
		if err := codec.WriteFile(cfg.Status.File, snapshot); err != nil {
			return fmt.Errorf("writing status snapshot: %w", err)
		}
		s.logSnapshot(ctx, cfg.Status.File, snapshot)
	}

	if !ok {
		return errStreamNotOK
	}
	return nil
}

// open returns the source for inputs and a function that adds the
// source's own details to a status snapshot.
func (s *streamer) open(ctx context.Context, cfg *config.Config, label string, inputs []string) (source, func(*statusSnapshot), error) {
	if len(inputs) == 1 && isAddress(inputs[0]) {
		return s.openSocket(ctx, cfg, label, inputs[0])
	}
	for _, input := range inputs {
		if isAddress(input) {
			return nil, nil, fmt.Errorf("%s: a data socket must be the only input", input)
		}
	}

	logger := s.logger
	if label != "" {
		logger = logger.With("source", label)
	}
	files := intake.NewFileReader(logger)
	for _, path := range inputs {
		if err := files.AddFile(path); err != nil {
			return nil, nil, err
		}
	}
	describe := func(snapshot *statusSnapshot) {
		snapshot.Source = strings.Join(inputs, " ")
		snapshot.Files = files.Digests()
		if err := files.Err(); err != nil {
			snapshot.Error = err.Error()
		}
	}
	return &cancellableFiles{FileReader: files, ctx: ctx}, describe, nil
}

func (s *streamer) openSocket(ctx context.Context, cfg *config.Config, label, address string) (source, func(*statusSnapshot), error) {
	dialContext, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, err := intake.Dial(dialContext, address)
	if err != nil {
		return nil, nil, err
	}
	if label == "" {
		label = address
	}

	reader, err := intake.NewSocketReader(conn,
		intake.WithBufferWords(cfg.Intake.BufferWords),
		intake.WithPollInterval(cfg.Intake.PollInterval),
		intake.WithReadinessTimeout(cfg.Intake.ReadinessTimeout),
		intake.WithClock(s.clock),
		intake.WithLogger(s.logger),
		intake.WithLabel(label),
	)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := reader.Start(); err != nil {
		reader.Close()
		return nil, nil, err
	}

	describe := func(snapshot *statusSnapshot) {
		stats := reader.Stats()
		snapshot.Source = address
		snapshot.Intake = &stats
		if stats.Error != "" {
			snapshot.Error = stats.Error
		}
	}
	return reader, describe, nil
}

// cancellableFiles ends a file stream early, at a read boundary, once
// ctx is cancelled.
type cancellableFiles struct {
	*intake.FileReader
	ctx context.Context
}

func (c *cancellableFiles) Read(p []byte) (int, error) {
	if c.ctx.Err() != nil {
		return 0, io.EOF
	}
	return c.FileReader.Read(p)
}

// consume frames records until the stream ends. Cancellation is a
// clean end.
func (s *streamer) consume(ctx context.Context, records *framing.RecordReader) error {
	debug := s.logger.Enabled(ctx, slog.LevelDebug)
	for {
		record, err := records.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("stream interrupted", "error", err)
				return nil
			}
			return err
		}

		bound, hasDecoder := s.registry.ForRecord(record.Words)
		s.counts.add(record, bound, hasDecoder)
		if debug && hasDecoder {
			s.logDecoded(ctx, record, bound)
		}
	}
}

// logDecoded logs every row of a decoded record at debug level, one
// attribute per parameter.
func (s *streamer) logDecoded(ctx context.Context, record framing.Record, bound decoder.Decoder) {
	for row := range bound.RowCount(record.Words) {
		attrs := []slog.Attr{
			slog.String("decoder", bound.Identity()),
			slog.String("data_id", fmt.Sprintf("%#x", record.DataID)),
			slog.Int("row", row),
		}
		for parameter := range bound.ParameterCount() {
			name := strings.ToLower(bound.ParameterName(parameter))
			attrs = append(attrs, slog.Uint64(name, uint64(bound.Parameter(record.Words, parameter, row))))
		}
		s.logger.LogAttrs(ctx, slog.LevelDebug, "record decoded", attrs...)
	}
}

// reportStatus logs a status line every s.interval until stop closes.
// A file reader is owned by the consuming goroutine, so only socket
// sources report their ring.
func (s *streamer) reportStatus(stop <-chan struct{}, input source) {
	if s.interval <= 0 {
		<-stop
		return
	}
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			records, words := s.counts.totals()
			attrs := []any{"records", records, "words", words}
			if reader, ok := input.(*intake.SocketReader); ok {
				stats := reader.Stats()
				attrs = append(attrs,
					"state", stats.State,
					"occupancy_words", stats.Ring.OccupancyWords,
					"total_lost_words", stats.Ring.TotalLostWords,
				)
			}
			s.logger.Info("intake status", attrs...)
		}
	}
}

// statusSnapshot is the CBOR document written to --status-file.
type statusSnapshot struct {
	Tool          string              `cbor:"tool"`
	Version       string              `cbor:"version"`
	Commit        string              `cbor:"commit"`
	Source        string              `cbor:"source"`
	StartedAt     time.Time           `cbor:"started_at"`
	EndedAt       time.Time           `cbor:"ended_at"`
	OK            bool                `cbor:"ok"`
	Error         string              `cbor:"error,omitempty"`
	StreamVersion string              `cbor:"stream_version"`
	Records       uint64              `cbor:"records"`
	Words         uint64              `cbor:"words"`
	DataIDs       []dataIDCount       `cbor:"data_ids"`
	Intake        *intake.Stats       `cbor:"intake,omitempty"`
	Files         []intake.FileDigest `cbor:"files,omitempty"`
}

func (s *streamer) snapshot(records *framing.RecordReader, ok bool, started time.Time) statusSnapshot {
	streamVersion := "unknown"
	if v, observed := records.Version(); observed {
		streamVersion = v.String()
	}
	total, words := s.counts.totals()
	return statusSnapshot{
		Tool:          "orcaroot-stream",
		Version:       version.Info(),
		Commit:        version.Commit(),
		StartedAt:     started.UTC(),
		EndedAt:       s.clock.Now().UTC(),
		OK:            ok,
		StreamVersion: streamVersion,
		Records:       total,
		Words:         words,
		DataIDs:       s.counts.byDataID(),
	}
}

// logSnapshot logs the written snapshot in CBOR diagnostic notation at
// debug level.
func (s *streamer) logSnapshot(ctx context.Context, path string, snapshot statusSnapshot) {
	if !s.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	data, err := codec.Marshal(snapshot)
	if err != nil {
		s.logger.Debug("status snapshot written", "path", path, "error", err)
		return
	}
	diagnostic, err := codec.Diagnose(data)
	if err != nil {
		s.logger.Debug("status snapshot written", "path", path, "error", err)
		return
	}
	s.logger.Debug("status snapshot written", "path", path, "snapshot", diagnostic)
}

// dataIDCount is the per-data-ID share of a stream.
type dataIDCount struct {
	DataID  uint32 `cbor:"data_id"`
	Decoder string `cbor:"decoder,omitempty"`
	Records uint64 `cbor:"records"`
	Words   uint64 `cbor:"words"`
}

// tally counts records as they are consumed. The status goroutine
// reads it concurrently.
type tally struct {
	mu      sync.Mutex
	records uint64
	words   uint64
	ids     map[uint32]*dataIDCount
}

func newTally() *tally {
	return &tally{ids: make(map[uint32]*dataIDCount)}
}

func (t *tally) add(record framing.Record, bound decoder.Decoder, hasDecoder bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records++
	t.words += uint64(len(record.Words))
	count, ok := t.ids[record.DataID]
	if !ok {
		count = &dataIDCount{DataID: record.DataID}
		if hasDecoder {
			count.Decoder = bound.Identity()
		}
		t.ids[record.DataID] = count
	}
	count.Records++
	count.Words += uint64(len(record.Words))
}

func (t *tally) totals() (records, words uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.records, t.words
}

// byDataID returns the per-data-ID counts ordered by data ID.
func (t *tally) byDataID() []dataIDCount {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make([]dataIDCount, 0, len(t.ids))
	for _, count := range t.ids {
		counts = append(counts, *count)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].DataID < counts[j].DataID })
	return counts
}
