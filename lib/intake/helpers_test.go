// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package intake

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sjmeijer/orcaroot/lib/framing"
)

// fakeConn is an in-memory Conn. Bytes are made available with feed;
// hangUp makes the stream end once they are consumed.
type fakeConn struct {
	mu      sync.Mutex
	data    []byte
	hangup  bool
	closed  bool
	changed chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{changed: make(chan struct{})}
}

func (c *fakeConn) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *fakeConn) feed(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = append(c.data, data...)
	c.notifyLocked()
}

func (c *fakeConn) hangUp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hangup = true
	c.notifyLocked()
}

// waitFor blocks until ready (called with c.mu held) is true or
// timeout passes. A negative timeout waits forever.
func (c *fakeConn) waitFor(timeout time.Duration, ready func() bool) bool {
	var deadline <-chan time.Time
	if timeout >= 0 {
		deadline = time.After(timeout)
	}
	for {
		c.mu.Lock()
		if ready() {
			c.mu.Unlock()
			return true
		}
		changed := c.changed
		c.mu.Unlock()
		select {
		case <-changed:
		case <-deadline:
			return false
		}
	}
}

func (c *fakeConn) WaitReadable(timeout time.Duration) (bool, error) {
	ready := c.waitFor(timeout, func() bool { return c.closed || c.hangup || len(c.data) > 0 })
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, net.ErrClosed
	}
	return ready, nil
}

func (c *fakeConn) Peek(p []byte, timeout time.Duration) (bool, error) {
	if !c.waitFor(timeout, func() bool { return c.closed || c.hangup || len(c.data) >= len(p) }) {
		return false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return false, net.ErrClosed
	case len(c.data) >= len(p):
		copy(p, c.data)
		return true, nil
	case len(c.data) == 0:
		return false, io.EOF
	default:
		return false, io.ErrUnexpectedEOF
	}
}

func (c *fakeConn) Recv(p []byte) error {
	c.waitFor(-1, func() bool { return c.closed || c.hangup || len(c.data) >= len(p) })
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return net.ErrClosed
	case len(c.data) >= len(p):
		copy(p, c.data)
		c.data = c.data[len(p):]
		return nil
	default:
		c.data = nil
		return io.ErrUnexpectedEOF
	}
}

func (c *fakeConn) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.notifyLocked()
	return nil
}

func encodeWords(order binary.ByteOrder, words ...uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, word := range words {
		order.PutUint32(out[i*4:], word)
	}
	return out
}

// longRecord builds a long-form record of the given total length. The
// payload counts up from 1 so reordering shows.
func longRecord(dataID uint32, words int) []uint32 {
	record := make([]uint32, words)
	record[0] = dataID | uint32(words)
	for i := 1; i < words; i++ {
		record[i] = uint32(i)
	}
	return record
}

// oppositeOrder is the byte order of a writer on a host of the other
// endianness.
func oppositeOrder() binary.ByteOrder {
	if binary.NativeEndian.Uint16([]byte{0x12, 0x34}) == 0x1234 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// readRecords frames source to the end and returns copies of every
// record.
func readRecords(t *testing.T, source io.Reader) [][]uint32 {
	t.Helper()
	reader := framing.NewRecordReader(source, nil)
	var records [][]uint32
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return records
		}
		if err != nil {
			t.Fatalf("reading record %d: %v", len(records), err)
		}
		records = append(records, slices.Clone(record.Words))
	}
}

// eventually polls condition until it holds or five seconds pass.
func eventually(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// lockedBuffer is a log sink shared by producer and consumer
// goroutines.
type lockedBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}
