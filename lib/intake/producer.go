// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package intake

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sjmeijer/orcaroot/lib/framing"
	"github.com/sjmeijer/orcaroot/lib/netutil"
	"github.com/sjmeijer/orcaroot/lib/ringbuffer"
)

// scratchWords sizes the buffer records are discarded through.
const scratchWords = 0xFFFF

// produce moves records from the connection into the ring until ctx is
// cancelled (returning nil) or the stream fails.
func (r *SocketReader) produce(ctx context.Context) error {
	var (
		head    [ringbuffer.WordSize]byte
		scratch []byte
	)
	for {
		if ctx.Err() != nil {
			return nil
		}

		ready, err := r.conn.WaitReadable(r.readinessTimeout)
		if err != nil {
			return fmt.Errorf("waiting for data: %w", err)
		}
		if !ready {
			continue
		}

		// A header still arriving when the timeout passes is peeked
		// again after the cancellation check.
		ready, err = r.conn.Peek(head[:], r.readinessTimeout)
		if err != nil {
			return fmt.Errorf("peeking record header: %w", err)
		}
		if !ready {
			continue
		}
		raw := binary.NativeEndian.Uint32(head[:])
		if version := r.framer.Observe(raw); version == framing.Unrecognized {
			return fmt.Errorf("%w: first word %#08x", framing.ErrUnrecognizedStream, raw)
		}

		header := []uint32{raw}
		words := r.framer.RecordLengthWords(header, r.lengths)
		if words <= 0 {
			return fmt.Errorf("%w: header %#08x", framing.ErrZeroLengthRecord, header[0])
		}

		err = r.ring.Admit(words, func(first, second []byte) error {
			if err := r.conn.Recv(first); err != nil {
				return err
			}
			if len(second) > 0 {
				return r.conn.Recv(second)
			}
			return nil
		})
		switch {
		case err == nil:
			r.recordsAdmitted.Add(1)
			r.wordsAdmitted.Add(uint64(words))
		case errors.Is(err, ringbuffer.ErrInsufficientSpace):
			r.ring.RecordLoss(words)
			r.recordsDropped.Add(1)
			if scratch == nil {
				scratch = make([]byte, scratchWords*ringbuffer.WordSize)
			}
			if err := r.discard(words, scratch); err != nil {
				return fmt.Errorf("discarding %d-word record: %w", words, err)
			}
		default:
			return fmt.Errorf("receiving %d-word record: %w", words, err)
		}
	}
}

// discard consumes words words from the connection through scratch.
func (r *SocketReader) discard(words int, scratch []byte) error {
	for words > 0 {
		chunk := min(words, len(scratch)/ringbuffer.WordSize)
		if err := r.conn.Recv(scratch[:chunk*ringbuffer.WordSize]); err != nil {
			return err
		}
		words -= chunk
	}
	return nil
}

// finish records how the producer exited. The ring stops accepting
// waiting readers first so a blocked consumer drains and returns.
func (r *SocketReader) finish(ctx context.Context, session string, err error) {
	r.ring.SetRunning(false)

	// An error caused by Close tearing down the connection is a
	// requested stop, not a failure.
	if err != nil && ctx.Err() != nil && netutil.IsExpectedCloseError(err) {
		err = nil
	}

	if err == nil {
		r.state.Store(int32(StoppedClean))
		r.logger.Info("producer stopped",
			"session_id", session,
			"records_admitted", r.recordsAdmitted.Load(),
			"records_dropped", r.recordsDropped.Load(),
		)
		return
	}

	r.ok.Store(false)
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
	r.state.Store(int32(StoppedError))

	if kind := netutil.ClassifyClose(err); kind != netutil.NotClosed {
		r.logger.Info("data connection closed",
			"session_id", session,
			"closed_by", kind.String(),
			"error", err,
		)
		return
	}
	r.logger.Error("producer failed",
		"session_id", session,
		"error", err,
	)
}
