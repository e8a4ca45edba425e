// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package rwlock

import (
	"sync"
	"sync/atomic"
)

// Lock is a reader/writer lock. The zero value is unlocked and ready
// for use. A Lock must not be copied after first use.
type Lock struct {
	mutex sync.RWMutex

	writeAcquisitions atomic.Uint64
	upgrades          atomic.Uint64
}

// ReadLock acquires the lock in shared mode.
func (l *Lock) ReadLock() { l.mutex.RLock() }

// ReadUnlock releases a shared acquisition.
func (l *Lock) ReadUnlock() { l.mutex.RUnlock() }

// WriteLock acquires the lock in exclusive mode.
func (l *Lock) WriteLock() {
	l.mutex.Lock()
	l.writeAcquisitions.Add(1)
}

// WriteUnlock releases an exclusive acquisition.
func (l *Lock) WriteUnlock() { l.mutex.Unlock() }

// Upgrade converts a shared acquisition held by the caller into an
// exclusive one. The conversion is not atomic: other writers may run
// between the release and the acquisition.
func (l *Lock) Upgrade() {
	l.mutex.RUnlock()
	l.mutex.Lock()
	l.writeAcquisitions.Add(1)
	l.upgrades.Add(1)
}

// WithRead runs fn while holding the lock in shared mode.
func (l *Lock) WithRead(fn func()) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	fn()
}

// WithWrite runs fn while holding the lock in exclusive mode.
func (l *Lock) WithWrite(fn func()) {
	l.WriteLock()
	defer l.mutex.Unlock()
	fn()
}

// Counters reports how often the lock was taken exclusively and how
// many of those acquisitions were upgrades from shared mode.
type Counters struct {
	WriteAcquisitions uint64 `cbor:"write_acquisitions"`
	Upgrades          uint64 `cbor:"upgrades"`
}

// Counters returns a snapshot of the acquisition counters.
func (l *Lock) Counters() Counters {
	return Counters{
		WriteAcquisitions: l.writeAcquisitions.Load(),
		Upgrades:          l.upgrades.Load(),
	}
}
