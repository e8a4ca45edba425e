// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package ringbuffer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sjmeijer/orcaroot/lib/clock"
	"github.com/sjmeijer/orcaroot/lib/rwlock"
)

// WordSize is the width of one ring word in bytes.
const WordSize = 4

// DefaultCapacityWords is the default ring capacity: 1M words (4 MiB),
// several seconds of a busy crate at typical ORCA rates.
const DefaultCapacityWords = 1 << 20

// DefaultPollInterval is how long a blocked consumer sleeps between
// occupancy checks.
const DefaultPollInterval = time.Second

var (
	// ErrInvalidCapacity is returned for a non-positive capacity.
	ErrInvalidCapacity = errors.New("ringbuffer: capacity must be positive")

	// ErrInsufficientSpace is returned when a record needs more words
	// than are currently free. The ring is unchanged.
	ErrInsufficientSpace = errors.New("ringbuffer: insufficient free space for record")

	// ErrUnalignedRecord is returned for a record whose byte length is
	// not a multiple of WordSize.
	ErrUnalignedRecord = errors.New("ringbuffer: record length is not a multiple of the word size")
)

// Option configures a Ring.
type Option func(*Ring)

// WithClock sets the clock used for the consumer's poll sleep.
func WithClock(c clock.Clock) Option {
	return func(r *Ring) { r.clock = c }
}

// WithPollInterval sets the consumer's sleep between occupancy checks.
// Zero disables blocking: Read returns whatever is available at once.
func WithPollInterval(d time.Duration) Option {
	return func(r *Ring) {
		if d >= 0 {
			r.pollInterval = d
		}
	}
}

// WithLogger sets the logger that receives loss warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Ring) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Ring is a circular buffer of words shared by one producer and one
// consumer. All index and counter fields are guarded by lock.
type Ring struct {
	lock rwlock.Lock

	storage  []byte
	capacity int

	// writeIndex and readIndex are word positions in [0, capacity).
	writeIndex int
	readIndex  int
	// occupancy is the authoritative count of unread words.
	occupancy int

	// lostWords accumulates discarded words since the last successful
	// read; totalLostWords is never reset.
	lostWords      uint64
	totalLostWords uint64
	wrapCount      uint64
	running        bool

	pollInterval time.Duration
	clock        clock.Clock
	logger       *slog.Logger
}

// New allocates a ring holding capacityWords words.
func New(capacityWords int, options ...Option) (*Ring, error) {
	ring := &Ring{
		pollInterval: DefaultPollInterval,
		clock:        clock.Real(),
		logger:       slog.Default(),
	}
	for _, option := range options {
		option(ring)
	}
	if err := ring.Reset(capacityWords); err != nil {
		return nil, err
	}
	return ring, nil
}

// Reset reallocates storage for capacityWords words and zeroes every
// index and counter, leaving the ring stopped. It must not be called
// while a producer or consumer is using the ring.
func (r *Ring) Reset(capacityWords int) error {
	if capacityWords <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacityWords)
	}
	r.lock.WithWrite(func() {
		r.storage = make([]byte, capacityWords*WordSize)
		r.capacity = capacityWords
		r.writeIndex = 0
		r.readIndex = 0
		r.occupancy = 0
		r.lostWords = 0
		r.totalLostWords = 0
		r.wrapCount = 0
		r.running = false
	})
	return nil
}

// Capacity returns the ring size in words.
func (r *Ring) Capacity() int {
	r.lock.ReadLock()
	defer r.lock.ReadUnlock()
	return r.capacity
}

// Free returns the number of words that can be admitted right now.
func (r *Ring) Free() int {
	r.lock.ReadLock()
	defer r.lock.ReadUnlock()
	return r.capacity - r.occupancy
}

// Write admits record, whose length must be a multiple of WordSize.
// Returns ErrInsufficientSpace, with the ring untouched, when the
// record does not fit. The caller decides whether to RecordLoss.
func (r *Ring) Write(record []byte) error {
	if len(record)%WordSize != 0 {
		return fmt.Errorf("%w: %d bytes", ErrUnalignedRecord, len(record))
	}
	words := len(record) / WordSize
	if words == 0 {
		return nil
	}
	return r.Admit(words, func(first, second []byte) error {
		copied := copy(first, record)
		copy(second, record[copied:])
		return nil
	})
}

// Admit reserves words words at the write position and calls fill with
// the destination: first runs to the end of the array, second (nil
// unless the record wraps) starts at index 0. The ring is committed
// only if fill returns nil; a fill error leaves it untouched and is
// returned as is. Returns ErrInsufficientSpace without calling fill
// when the record does not fit.
//
// fill runs without the lock held. That is safe only because the
// producer is the sole writer: the consumer never touches free space.
func (r *Ring) Admit(words int, fill func(first, second []byte) error) error {
	if words <= 0 {
		return nil
	}
	r.lock.ReadLock()
	if words > r.capacity-r.occupancy {
		r.lock.ReadUnlock()
		return fmt.Errorf("%w: need %d words, %d free", ErrInsufficientSpace, words, r.capacity-r.occupancy)
	}
	start := r.writeIndex
	firstWords := min(words, r.capacity-start)
	secondWords := words - firstWords
	storage := r.storage
	r.lock.ReadUnlock()

	first := storage[start*WordSize : (start+firstWords)*WordSize]
	var second []byte
	if secondWords > 0 {
		second = storage[:secondWords*WordSize]
	}
	if err := fill(first, second); err != nil {
		return err
	}

	r.lock.WithWrite(func() {
		r.writeIndex += firstWords
		if r.writeIndex == r.capacity {
			r.writeIndex = 0
		}
		if secondWords > 0 {
			r.writeIndex = secondWords
			r.wrapCount++
		}
		r.occupancy += words
	})
	return nil
}

// RecordLoss charges words discarded words to the loss counters.
func (r *Ring) RecordLoss(words int) {
	if words <= 0 {
		return
	}
	r.lock.WithWrite(func() {
		r.lostWords += uint64(words)
		r.totalLostWords += uint64(words)
	})
}

// Read copies up to len(destination)/WordSize words into destination
// and returns the number of words delivered.
//
// When fewer words are buffered than requested, Read polls until the
// full amount is buffered, or at least minimumWords are buffered, or
// the producer is no longer running; in the latter two cases it
// delivers what is available. These conditions are checked before the
// first sleep, so a ring already holding minimumWords words is read at
// once. A zero poll interval makes Read return what is available
// without waiting, which may be nothing while the producer runs. A
// zero return otherwise means the producer has stopped and the ring is
// drained, or ctx was cancelled. Drained tells the cases apart.
func (r *Ring) Read(ctx context.Context, destination []byte, minimumWords int) int {
	want := len(destination) / WordSize
	if want == 0 {
		return 0
	}
	minimumWords = max(minimumWords, 1)

	r.lock.ReadLock()
	for r.occupancy < want {
		if !r.running || r.occupancy >= minimumWords || r.pollInterval == 0 {
			want = r.occupancy
			break
		}
		r.lock.ReadUnlock()
		select {
		case <-ctx.Done():
			return 0
		case <-r.clock.After(r.pollInterval):
		}
		r.lock.ReadLock()
	}
	if want == 0 {
		r.lock.ReadUnlock()
		return 0
	}

	start := r.readIndex
	firstWords := min(want, r.capacity-start)
	secondWords := want - firstWords
	copied := copy(destination, r.storage[start*WordSize:(start+firstWords)*WordSize])
	copy(destination[copied:], r.storage[:secondWords*WordSize])

	r.lock.Upgrade()
	r.readIndex = (start + want) % r.capacity
	r.occupancy -= want
	lost := r.lostWords
	r.lostWords = 0
	r.lock.WriteUnlock()

	if lost > 0 {
		r.logger.Warn("stream discarded words", "lost_words", lost)
	}
	return want
}

// SetRunning records whether the producer is active. Consumers blocked
// in Read observe a transition to false on their next poll.
func (r *Ring) SetRunning(running bool) {
	r.lock.WithWrite(func() { r.running = running })
}

// Running reports whether the producer is active.
func (r *Ring) Running() (running bool) {
	r.lock.WithRead(func() { running = r.running })
	return running
}

// Drained reports whether the producer has stopped and every buffered
// word has been read.
func (r *Ring) Drained() (drained bool) {
	r.lock.WithRead(func() { drained = !r.running && r.occupancy == 0 })
	return drained
}

// Stats is a point-in-time snapshot of the ring's state.
type Stats struct {
	CapacityWords    int             `cbor:"capacity_words"`
	OccupancyWords   int             `cbor:"occupancy_words"`
	ReadIndex        int             `cbor:"read_index"`
	WriteIndex       int             `cbor:"write_index"`
	PendingLostWords uint64          `cbor:"pending_lost_words"`
	TotalLostWords   uint64          `cbor:"total_lost_words"`
	WrapCount        uint64          `cbor:"wrap_count"`
	Running          bool            `cbor:"running"`
	Lock             rwlock.Counters `cbor:"lock"`
}

// Stats returns a snapshot of the ring.
func (r *Ring) Stats() Stats {
	r.lock.ReadLock()
	defer r.lock.ReadUnlock()
	return Stats{
		CapacityWords:    r.capacity,
		OccupancyWords:   r.occupancy,
		ReadIndex:        r.readIndex,
		WriteIndex:       r.writeIndex,
		PendingLostWords: r.lostWords,
		TotalLostWords:   r.totalLostWords,
		WrapCount:        r.wrapCount,
		Running:          r.running,
		Lock:             r.lock.Counters(),
	}
}
