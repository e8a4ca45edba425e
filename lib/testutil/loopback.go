// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net"
	"testing"
)

// Loopback listens on an ephemeral 127.0.0.1 port, dials it, and
// returns the dialing side as a *net.TCPConn together with the
// accepted peer. Both are closed when the test ends.
func Loopback(t testing.TB) (client *net.TCPConn, peer net.Conn) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen on loopback: %v", err)
	}
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	acceptErr := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			acceptErr <- err
			return
		}
		accepted <- conn
	}()

	dialed, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("dial loopback listener: %v", err)
	}
	t.Cleanup(func() { dialed.Close() })

	select {
	case peer = <-accepted:
	case err := <-acceptErr:
		t.Fatalf("accept on loopback: %v", err)
	}
	t.Cleanup(func() { peer.Close() })

	return dialed.(*net.TCPConn), peer
}
