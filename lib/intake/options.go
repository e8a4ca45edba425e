// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package intake

import (
	"log/slog"
	"time"

	"github.com/sjmeijer/orcaroot/lib/clock"
	"github.com/sjmeijer/orcaroot/lib/decoder"
	"github.com/sjmeijer/orcaroot/lib/ringbuffer"
)

// DefaultReadinessTimeout bounds each wait for socket readiness, and
// so how long Stop can take to be noticed by an idle producer.
const DefaultReadinessTimeout = time.Second

type options struct {
	bufferWords      int
	pollInterval     time.Duration
	readinessTimeout time.Duration
	lengths          decoder.LengthDecoder
	clock            clock.Clock
	logger           *slog.Logger
	label            string
}

func defaultOptions() options {
	return options{
		bufferWords:      ringbuffer.DefaultCapacityWords,
		pollInterval:     ringbuffer.DefaultPollInterval,
		readinessTimeout: DefaultReadinessTimeout,
		lengths:          decoder.Basic{},
		clock:            clock.Real(),
		logger:           slog.Default(),
	}
}

// Option configures a SocketReader.
type Option func(*options)

// WithBufferWords sets the ring capacity in 32-bit words.
func WithBufferWords(words int) Option {
	return func(o *options) { o.bufferWords = words }
}

// WithPollInterval sets how long a blocked Read sleeps between checks
// of the ring. Zero makes Read return whatever is buffered at once.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.pollInterval = d
		}
	}
}

// WithReadinessTimeout bounds each producer wait for the socket.
func WithReadinessTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.readinessTimeout = d
		}
	}
}

// WithLengthDecoder sets the function that sizes records from their
// header word. The default is [decoder.Basic].
func WithLengthDecoder(lengths decoder.LengthDecoder) Option {
	return func(o *options) {
		if lengths != nil {
			o.lengths = lengths
		}
	}
}

// WithClock sets the clock used for the consumer's poll sleep.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the reader's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLabel names the reader in logs and status snapshots.
func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}
