// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests waiting on a producer goroutine or a blocked read
// fail with a message instead of hanging. They are the only place the
// test suite uses real wall-clock timeouts; everything else drives
// time through lib/clock.
//
// [Loopback] opens a TCP listener on 127.0.0.1 and hands the test both
// ends of one accepted connection, for exercising the socket intake
// path against a real kernel socket.
//
// All helpers call t.Fatalf on failure.
package testutil
