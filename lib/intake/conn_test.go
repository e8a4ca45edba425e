// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package intake

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/sjmeijer/orcaroot/lib/testutil"
)

func TestTCPConnPeekAndReceive(t *testing.T) {
	t.Parallel()

	client, peer := testutil.Loopback(t)
	conn, err := NewTCPConn(client)
	if err != nil {
		t.Fatalf("NewTCPConn: %v", err)
	}

	ready, err := conn.WaitReadable(20 * time.Millisecond)
	if err != nil || ready {
		t.Fatalf("WaitReadable on an idle socket = (%v, %v), want (false, nil)", ready, err)
	}

	sent := encodeWords(binary.NativeEndian, 0x00000002, 0xCAFEF00D)
	if _, err := peer.Write(sent); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	ready, err = conn.WaitReadable(5 * time.Second)
	if err != nil || !ready {
		t.Fatalf("WaitReadable with data pending = (%v, %v), want (true, nil)", ready, err)
	}

	head := make([]byte, 4)
	for range 2 {
		if ok, err := conn.Peek(head, 5*time.Second); err != nil || !ok {
			t.Fatalf("Peek = (%v, %v), want (true, nil)", ok, err)
		}
		if !bytes.Equal(head, sent[:4]) {
			t.Errorf("Peek = %x, want %x", head, sent[:4])
		}
	}
	body := make([]byte, 8)
	if err := conn.Recv(body); err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !bytes.Equal(body, sent) {
		t.Errorf("Recv = %x, want %x (peek must not consume)", body, sent)
	}

	// A header that arrives in pieces is peeked whole.
	if _, err := peer.Write([]byte{1, 2}); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		peer.Write([]byte{3, 4})
	}()
	if ok, err := conn.Peek(head, 5*time.Second); err != nil || !ok {
		t.Fatalf("split Peek = (%v, %v), want (true, nil)", ok, err)
	}
	if !bytes.Equal(head, []byte{1, 2, 3, 4}) {
		t.Errorf("split Peek = %x, want 01020304", head)
	}
	if err := conn.Recv(head); err != nil {
		t.Fatalf("Recv: %v", err)
	}

	peer.Close()
	ready, err = conn.WaitReadable(5 * time.Second)
	if err != nil || !ready {
		t.Fatalf("WaitReadable after hangup = (%v, %v), want (true, nil)", ready, err)
	}
	if _, err := conn.Peek(head, 5*time.Second); !errors.Is(err, io.EOF) {
		t.Errorf("Peek after hangup: got %v, want io.EOF", err)
	}

	if !conn.Valid() {
		t.Error("connection invalid before Close")
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if conn.Valid() {
		t.Error("connection valid after Close")
	}
	if err := conn.Close(); !errors.Is(err, net.ErrClosed) {
		t.Errorf("second Close: got %v, want net.ErrClosed", err)
	}
}

func TestTCPConnPartialPeek(t *testing.T) {
	t.Parallel()

	client, peer := testutil.Loopback(t)
	conn, err := NewTCPConn(client)
	if err != nil {
		t.Fatalf("NewTCPConn: %v", err)
	}
	defer conn.Close()

	if _, err := peer.Write([]byte{1, 2}); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	head := make([]byte, 4)
	start := time.Now()
	ok, err := conn.Peek(head, 30*time.Millisecond)
	if err != nil || ok {
		t.Fatalf("Peek of half a header = (%v, %v), want (false, nil)", ok, err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Peek of half a header took %s, want about the timeout", elapsed)
	}

	peer.Close()
	if _, err := conn.Peek(head, 5*time.Second); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Peek after a mid-header hangup: got %v, want io.ErrUnexpectedEOF", err)
	}
	// The partial bytes are still queued.
	partial := make([]byte, 2)
	if err := conn.Recv(partial); err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !bytes.Equal(partial, []byte{1, 2}) {
		t.Errorf("Recv = %x, want 0102", partial)
	}
}

func TestDial(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	go func() {
		accepted, err := listener.Accept()
		if err != nil {
			return
		}
		defer accepted.Close()
		accepted.Write(encodeWords(binary.NativeEndian, 0x00000001))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if conn.RemoteAddr().String() != listener.Addr().String() {
		t.Errorf("RemoteAddr = %v, want %v", conn.RemoteAddr(), listener.Addr())
	}
	word := make([]byte, 4)
	if err := conn.Recv(word); err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if binary.NativeEndian.Uint32(word) != 1 {
		t.Errorf("received %x", word)
	}
}

func TestDialRefused(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	address := listener.Addr().String()
	listener.Close()

	if _, err := Dial(context.Background(), address); err == nil {
		t.Fatal("Dial to a closed port succeeded")
	}
}

func TestSocketReaderOverTCP(t *testing.T) {
	t.Parallel()

	client, peer := testutil.Loopback(t)
	conn, err := NewTCPConn(client)
	if err != nil {
		t.Fatalf("NewTCPConn: %v", err)
	}
	reader := newTestReader(t, conn, WithBufferWords(4096))
	if err := reader.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	order := oppositeOrder()
	want := [][]uint32{
		longRecord(0, 20),
		longRecord(0x00040000, 300),
		{0x84000007},
		longRecord(0x00080000, 9),
	}
	var stream []byte
	for _, record := range want {
		stream = append(stream, encodeWords(order, record...)...)
	}
	// Split mid-record so the producer sees a partial record.
	half := len(stream)/2 + 2
	if _, err := peer.Write(stream[:half]); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := peer.Write(stream[half:]); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	peer.Close()

	got := readRecords(t, reader)
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("record %d = %#x, want %#x", i, got[i], want[i])
		}
	}

	testutil.RequireClosed(t, reader.Done(), 5*time.Second, "producer exit")
	if reader.OK() {
		t.Error("reader OK after the peer closed")
	}
	if !errors.Is(reader.Err(), io.EOF) {
		t.Errorf("Err = %v, want io.EOF", reader.Err())
	}
}

func TestSocketReaderPeerClosesMidHeader(t *testing.T) {
	t.Parallel()

	client, peer := testutil.Loopback(t)
	conn, err := NewTCPConn(client)
	if err != nil {
		t.Fatalf("NewTCPConn: %v", err)
	}
	reader := newTestReader(t, conn, WithReadinessTimeout(20*time.Millisecond))
	if err := reader.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := peer.Write([]byte{1, 2}); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	peer.Close()

	testutil.RequireClosed(t, reader.Done(), 5*time.Second, "producer exit after a mid-header hangup")
	if reader.OK() {
		t.Error("reader OK after the peer closed mid-header")
	}
	if !errors.Is(reader.Err(), io.ErrUnexpectedEOF) {
		t.Errorf("Err = %v, want io.ErrUnexpectedEOF", reader.Err())
	}
}

func TestSocketReaderStopsWithPartialHeaderPending(t *testing.T) {
	t.Parallel()

	client, peer := testutil.Loopback(t)
	conn, err := NewTCPConn(client)
	if err != nil {
		t.Fatalf("NewTCPConn: %v", err)
	}
	reader := newTestReader(t, conn, WithReadinessTimeout(20*time.Millisecond))
	if err := reader.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := peer.Write([]byte{1, 2}); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	// Let the producer reach the partial header.
	time.Sleep(50 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		reader.Stop()
		close(stopped)
	}()
	testutil.RequireClosed(t, stopped, 5*time.Second, "Stop with half a header pending")
	if !reader.OK() {
		t.Errorf("reader not OK after a requested stop: %v", reader.Err())
	}
}
