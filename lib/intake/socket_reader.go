// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sjmeijer/orcaroot/lib/decoder"
	"github.com/sjmeijer/orcaroot/lib/framing"
	"github.com/sjmeijer/orcaroot/lib/ringbuffer"
)

var (
	// ErrUnalignedRead is returned by Read when len(p) is not a
	// multiple of 4. Nothing is consumed.
	ErrUnalignedRead = errors.New("intake: read length is not a multiple of 4 bytes")

	// ErrNotOK is returned by Start once the reader has failed.
	ErrNotOK = errors.New("intake: reader is not OK")

	// ErrConnectionClosed is returned by Start on a closed connection.
	ErrConnectionClosed = errors.New("intake: connection is closed")

	// ErrRunning is returned when reconfiguring a running reader.
	ErrRunning = errors.New("intake: producer is running")
)

// State is the producer's lifecycle state.
type State int32

const (
	// Idle means the producer has never been started.
	Idle State = iota
	// Running means the producer goroutine is active.
	Running
	// StoppedClean means the producer exited because it was asked to.
	StoppedClean
	// StoppedError means the producer exited on a socket or protocol
	// error. The reader is no longer OK.
	StoppedError
)

// String returns the state name used in logs and status output.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case StoppedClean:
		return "stopped"
	case StoppedError:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// SocketReader buffers an ORCA stream from a [Conn] and serves it to
// one consumer. Start, Stop, Close and SetBufferWords may be called
// from any goroutine but not concurrently with Read.
type SocketReader struct {
	conn             Conn
	lengths          decoder.LengthDecoder
	readinessTimeout time.Duration
	logger           *slog.Logger
	label            string

	// framer survives restarts: the stream version belongs to the
	// connection, not to one producer run.
	framer framing.Framer
	ring   *ringbuffer.Ring

	// staging is owned by the consumer.
	staging staging

	// mu guards the lifecycle fields below.
	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	sessionID string
	lastErr   error

	ok    atomic.Bool
	state atomic.Int32

	recordsAdmitted atomic.Uint64
	recordsDropped  atomic.Uint64
	wordsAdmitted   atomic.Uint64
}

// NewSocketReader returns an idle reader over conn. Call Start to begin
// buffering.
func NewSocketReader(conn Conn, opts ...Option) (*SocketReader, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if o.label != "" {
		logger = logger.With("source", o.label)
	}

	ring, err := ringbuffer.New(o.bufferWords,
		ringbuffer.WithClock(o.clock),
		ringbuffer.WithPollInterval(o.pollInterval),
		ringbuffer.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	reader := &SocketReader{
		conn:             conn,
		lengths:          o.lengths,
		readinessTimeout: o.readinessTimeout,
		logger:           logger,
		label:            o.label,
		ring:             ring,
		staging:          newStaging(o.bufferWords),
	}
	reader.ok.Store(conn.Valid())
	return reader, nil
}

// SetBufferWords reallocates the ring (and the staging buffer sized
// from it). Buffered data is discarded.
func (r *SocketReader) SetBufferWords(words int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runningLocked() {
		return ErrRunning
	}
	if err := r.ring.Reset(words); err != nil {
		return err
	}
	r.staging = newStaging(words)
	return nil
}

// Start launches the producer goroutine. It is a no-op if the producer
// is already running. The ring is emptied before each start; the
// stream version learned from an earlier run on the same connection
// is kept.
func (r *SocketReader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runningLocked() {
		return nil
	}
	if !r.ok.Load() {
		return ErrNotOK
	}
	if !r.conn.Valid() {
		return ErrConnectionClosed
	}

	if err := r.ring.Reset(r.ring.Capacity()); err != nil {
		return err
	}
	r.staging = newStaging(r.ring.Capacity())
	r.ring.SetRunning(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	session := uuid.NewString()
	r.cancel = cancel
	r.done = done
	r.sessionID = session
	r.state.Store(int32(Running))

	r.logger.Info("producer started",
		"session_id", session,
		"buffer_words", r.ring.Capacity(),
	)

	go func() {
		defer close(done)
		err := r.produce(ctx)
		r.finish(ctx, session, err)
	}()
	return nil
}

// Stop asks the producer to exit and waits for it. An idle producer
// notices within one readiness timeout; a record receive already in
// progress is completed first (Close aborts one).
func (r *SocketReader) Stop() {
	r.stop(false)
}

// Done returns a channel that is closed when the current producer run
// exits. For a reader that was never started it is already closed.
func (r *SocketReader) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return r.done
}

// Close stops the producer and closes the connection. Buffered data
// can still be read afterwards.
func (r *SocketReader) Close() error {
	return r.stop(true)
}

func (r *SocketReader) stop(closeConn bool) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if closeConn {
		err = r.conn.Close()
	}
	if done != nil {
		<-done
	}
	return err
}

// runningLocked reports whether a producer goroutine exists and has
// not exited. r.mu must be held.
func (r *SocketReader) runningLocked() bool {
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Read implements io.Reader. See ReadContext.
func (r *SocketReader) Read(p []byte) (int, error) {
	return r.ReadContext(context.Background(), p)
}

// ReadContext fills p with buffered words, waiting for the producer as
// needed. len(p) must be a multiple of 4. Once the producer has
// stopped and the ring is drained, a count short of len(p) comes with
// io.EOF; use OK to tell a clean end of stream from a failure. With a
// zero poll interval a short count on a live stream comes with a nil
// error, and the caller reads again. If ctx is cancelled, ReadContext
// returns what it has copied with ctx.Err().
func (r *SocketReader) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p)%ringbuffer.WordSize != 0 {
		return 0, fmt.Errorf("%w: got %d", ErrUnalignedRead, len(p))
	}
	if len(p) == 0 {
		return 0, nil
	}
	n := r.staging.read(ctx, r.ring, p)
	if n == len(p) {
		return n, nil
	}
	if err := ctx.Err(); err != nil {
		return n, err
	}
	if !r.ring.Drained() {
		return n, nil
	}
	return n, io.EOF
}

// OK reports whether the reader can still deliver a complete stream.
// It turns false on the first socket or protocol error and stays
// false.
func (r *SocketReader) OK() bool {
	return r.ok.Load()
}

// Running reports whether the producer is buffering.
func (r *SocketReader) Running() bool {
	return r.ring.Running()
}

// State returns the producer's lifecycle state.
func (r *SocketReader) State() State {
	return State(r.state.Load())
}

// Err returns the error that stopped the producer, if any.
func (r *SocketReader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// StreamVersion returns the connection's stream layout once the first
// record has been seen.
func (r *SocketReader) StreamVersion() (framing.StreamVersion, bool) {
	return r.framer.Version()
}

// SessionID identifies the current (or last) producer run.
func (r *SocketReader) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Stats is a point-in-time snapshot of a reader.
type Stats struct {
	Label           string           `cbor:"label,omitempty"`
	SessionID       string           `cbor:"session_id"`
	State           string           `cbor:"state"`
	OK              bool             `cbor:"ok"`
	StreamVersion   string           `cbor:"stream_version"`
	RecordsAdmitted uint64           `cbor:"records_admitted"`
	RecordsDropped  uint64           `cbor:"records_dropped"`
	WordsAdmitted   uint64           `cbor:"words_admitted"`
	Error           string           `cbor:"error,omitempty"`
	Ring            ringbuffer.Stats `cbor:"ring"`
}

// Stats returns a snapshot of the reader and its ring.
func (r *SocketReader) Stats() Stats {
	version := "unknown"
	if v, observed := r.framer.Version(); observed {
		version = v.String()
	}
	stats := Stats{
		Label:           r.label,
		SessionID:       r.SessionID(),
		State:           r.State().String(),
		OK:              r.OK(),
		StreamVersion:   version,
		RecordsAdmitted: r.recordsAdmitted.Load(),
		RecordsDropped:  r.recordsDropped.Load(),
		WordsAdmitted:   r.wordsAdmitted.Load(),
		Ring:            r.ring.Stats(),
	}
	if err := r.Err(); err != nil {
		stats.Error = err.Error()
	}
	return stats
}
