// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Conn is the byte stream a producer reads records from.
type Conn interface {
	// WaitReadable waits up to timeout for data (or a close) to be
	// pending. It returns false, with a nil error, on timeout.
	WaitReadable(timeout time.Duration) (bool, error)

	// Peek fills p with the next len(p) bytes without consuming them,
	// waiting up to timeout for all of them to arrive. It returns false,
	// with a nil error, on timeout. It returns io.EOF if the peer closed
	// the stream before any byte arrived, and io.ErrUnexpectedEOF if it
	// closed part way through p.
	Peek(p []byte, timeout time.Duration) (bool, error)

	// Recv consumes exactly len(p) bytes into p. Anything short of
	// that is an error.
	Recv(p []byte) error

	// Valid reports whether the connection is still open.
	Valid() bool

	// Close closes the connection, unblocking any Peek or Recv.
	Close() error
}

// TCPConn is a [Conn] over a TCP socket. Readiness and peeking use the
// socket descriptor directly; Recv goes through the runtime poller.
type TCPConn struct {
	conn   *net.TCPConn
	raw    syscall.RawConn
	closed atomic.Bool
}

// NewTCPConn wraps an established TCP connection.
func NewTCPConn(conn *net.TCPConn) (*TCPConn, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("getting raw connection: %w", err)
	}
	return &TCPConn{conn: conn, raw: raw}, nil
}

// Dial connects to an ORCA data socket at address ("host:port").
func Dial(ctx context.Context, address string) (*TCPConn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("connecting to %s: got %T, want *net.TCPConn", address, conn)
	}
	wrapped, err := NewTCPConn(tcp)
	if err != nil {
		tcp.Close()
		return nil, err
	}
	return wrapped, nil
}

// RemoteAddr returns the peer address.
func (c *TCPConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// WaitReadable implements Conn with poll(2). Hangups and socket errors
// count as readable so the following Peek reports them.
func (c *TCPConn) WaitReadable(timeout time.Duration) (bool, error) {
	var (
		ready   bool
		pollErr error
	)
	err := c.raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(timeout.Milliseconds()))
		switch {
		case errors.Is(err, unix.EINTR):
		case err != nil:
			pollErr = err
		default:
			ready = n > 0
		}
	})
	if err != nil {
		return false, err
	}
	if pollErr != nil {
		return false, fmt.Errorf("poll: %w", pollErr)
	}
	return ready, nil
}

// Peek implements Conn with recvfrom(2) and MSG_PEEK. A partial peek
// goes back to the poller until the rest of p arrives, the timeout
// passes, or the peer hangs up; a hangup with part of p pending is
// io.ErrUnexpectedEOF.
func (c *TCPConn) Peek(p []byte, timeout time.Duration) (bool, error) {
	if len(p) == 0 {
		return true, nil
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}
	defer c.conn.SetReadDeadline(time.Time{})

	var (
		peekErr  error
		peerGone bool
	)
	err := c.raw.Read(func(fd uintptr) bool {
		for {
			n, _, err := unix.Recvfrom(int(fd), p, unix.MSG_PEEK)
			switch {
			case errors.Is(err, unix.EINTR):
				continue
			case errors.Is(err, unix.EAGAIN):
				return false
			case err != nil:
				peekErr = err
				return true
			case n == 0:
				peekErr = io.EOF
				return true
			case n < len(p):
				if peerGone {
					peekErr = io.ErrUnexpectedEOF
					return true
				}
				// Bytes that arrived before the hangup are all queued
				// by now; peek once more before giving up.
				if peerGone = hungUp(fd); peerGone {
					continue
				}
				return false
			default:
				return true
			}
		}
	})
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if peekErr != nil {
		return false, peekErr
	}
	return true, nil
}

// hungUp reports, without waiting, whether the peer has shut down its
// side of the connection.
func hungUp(fd uintptr) bool {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN | unix.POLLRDHUP}}
	n, err := unix.Poll(fds, 0)
	if err != nil || n == 0 {
		return false
	}
	return fds[0].Revents&(unix.POLLRDHUP|unix.POLLHUP|unix.POLLERR) != 0
}

// Recv implements Conn.
func (c *TCPConn) Recv(p []byte) error {
	if _, err := io.ReadFull(c.conn, p); err != nil {
		return err
	}
	return nil
}

// Valid implements Conn.
func (c *TCPConn) Valid() bool {
	return !c.closed.Load()
}

// Close implements Conn. Closing twice returns net.ErrClosed.
func (c *TCPConn) Close() error {
	if c.closed.Swap(true) {
		return net.ErrClosed
	}
	return c.conn.Close()
}
