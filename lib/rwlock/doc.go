// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

// Package rwlock wraps sync.RWMutex with the small vocabulary the
// intake layer uses to guard its shared ring buffer state: shared
// locking for checks that may gate a block, exclusive locking to
// commit, and an explicit Upgrade for the check-then-commit handoff.
//
// Go's RWMutex cannot be upgraded atomically. Upgrade releases the
// shared lock before acquiring the exclusive one, so any state
// observed under the shared lock must be re-validated (or be owned by
// the upgrading goroutine) after Upgrade returns. The ring buffer
// relies on its single-producer/single-consumer discipline for that:
// only the producer advances the write side and only the consumer
// advances the read side.
package rwlock
