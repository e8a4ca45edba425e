// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies connection errors.
package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// CloseKind says how a data connection ended.
type CloseKind int

const (
	// NotClosed means the error is not a connection end: a protocol
	// error, a refused dial, a truncated record.
	NotClosed CloseKind = iota

	// PeerClosed means the remote side went away: EOF, a reset, or a
	// broken pipe. An ORCA run that stops, or a DAQ machine that drops
	// the socket between runs, produces one of these.
	PeerClosed

	// LocallyClosed means this process closed the connection.
	LocallyClosed
)

// String returns the kind name used in logs.
func (k CloseKind) String() string {
	switch k {
	case PeerClosed:
		return "peer"
	case LocallyClosed:
		return "local"
	default:
		return "none"
	}
}

// ClassifyClose reports how err ended a connection. Wrapped errors
// are unwrapped.
func ClassifyClose(err error) CloseKind {
	switch {
	case err == nil:
		return NotClosed
	case errors.Is(err, net.ErrClosed):
		return LocallyClosed
	case errors.Is(err, io.EOF):
		return PeerClosed
	}
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EPIPE || errno == syscall.ECONNRESET) {
		return PeerClosed
	}
	return NotClosed
}

// IsExpectedCloseError reports whether err is an ordinary end of a
// data connection from either side. It only decides how loudly the end
// of a stream is logged; a reader that stops on one is still not OK.
func IsExpectedCloseError(err error) bool {
	return ClassifyClose(err) != NotClosed
}
