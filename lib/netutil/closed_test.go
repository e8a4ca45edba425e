// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
)

func TestClassifyClose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want CloseKind
	}{
		{"nil", nil, NotClosed},
		{"eof", io.EOF, PeerClosed},
		{"wrapped eof", fmt.Errorf("peeking record header: %w", io.EOF), PeerClosed},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, PeerClosed},
		{"broken pipe", fmt.Errorf("recv: %w", syscall.EPIPE), PeerClosed},
		{"closed", net.ErrClosed, LocallyClosed},
		{"wrapped closed", fmt.Errorf("waiting for data: %w", net.ErrClosed), LocallyClosed},
		{"unexpected eof", io.ErrUnexpectedEOF, NotClosed},
		{"refused", syscall.ECONNREFUSED, NotClosed},
		{"other", errors.New("framing: zero-length record"), NotClosed},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got := ClassifyClose(test.err)
			if got != test.want {
				t.Errorf("ClassifyClose(%v) = %v, want %v", test.err, got, test.want)
			}
			if expected := IsExpectedCloseError(test.err); expected != (test.want != NotClosed) {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, expected, test.want != NotClosed)
			}
		})
	}
}

func TestCloseKindString(t *testing.T) {
	t.Parallel()

	for kind, want := range map[CloseKind]string{NotClosed: "none", PeerClosed: "peer", LocallyClosed: "local"} {
		if got := kind.String(); got != want {
			t.Errorf("CloseKind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}
