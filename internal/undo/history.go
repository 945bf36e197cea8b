/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"sync"
	"time"
)

// Snapshot is one full document state. Blob content is opaque to the history;
// size is estimated as len(Blob). TS is when the snapshot was captured.
type Snapshot struct {
	Blob  []byte
	TS    time.Time
	Label string
}

// DefaultMaxEntries is the number of snapshots kept, the current state included.
const DefaultMaxEntries = 50

// Config controls depth and memory caps and coalescing behavior.
type Config struct {
	// MaxEntries caps the number of snapshots; the oldest are evicted first.
	MaxEntries int
	// MaxBytes is a soft cap; oldest entries are pruned when exceeded (0 means unlimited).
	MaxBytes int
	// MinInterval replaces the latest entry instead of pushing a new one when
	// two snapshots arrive closer than the interval. Zero disables coalescing.
	MinInterval time.Duration
}

// History is a linear list of snapshots with a cursor at the current state.
// Entries after the cursor are the redo tail and are discarded on Push.
// It is safe for concurrent use.
type History struct {
	cfg     Config
	mu      sync.Mutex
	entries []Snapshot
	cursor  int
	// accounting
	totalBytes int
}

func NewHistory(cfg Config) *History {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	return &History{cfg: cfg}
}

// Reset drops everything and makes s the only (current) entry.
func (h *History) Reset(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = []Snapshot{s}
	h.cursor = 0
	h.totalBytes = len(s.Blob)
}

// Push records s as the new current state, discarding any redo tail.
func (h *History) Push(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		h.entries = []Snapshot{s}
		h.cursor = 0
		h.totalBytes = len(s.Blob)
		return
	}
	for _, r := range h.entries[h.cursor+1:] {
		h.totalBytes -= len(r.Blob)
	}
	h.entries = h.entries[:h.cursor+1]

	// the base entry is never coalesced so the loaded state stays reachable
	if last := h.entries[h.cursor]; h.cfg.MinInterval > 0 && h.cursor > 0 && s.TS.Sub(last.TS) < h.cfg.MinInterval {
		h.totalBytes += len(s.Blob) - len(last.Blob)
		h.entries[h.cursor] = s
		h.enforceCapsLocked()
		return
	}
	h.entries = append(h.entries, s)
	h.cursor = len(h.entries) - 1
	h.totalBytes += len(s.Blob)
	h.enforceCapsLocked()
}

// Undo moves the cursor back and returns the snapshot now current.
// At the oldest entry it is a no-op and returns false.
func (h *History) Undo() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor <= 0 || len(h.entries) == 0 {
		return Snapshot{}, false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Redo moves the cursor forward. At the newest entry it is a no-op and returns false.
func (h *History) Redo() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor+1 >= len(h.entries) {
		return Snapshot{}, false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

// Current returns the snapshot at the cursor.
func (h *History) Current() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return Snapshot{}, false
	}
	return h.entries[h.cursor], true
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor+1 < len(h.entries)
}

// Entries returns a copy of all snapshots and the cursor, for persistence.
func (h *History) Entries() ([]Snapshot, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Snapshot(nil), h.entries...), h.cursor
}

// Restore replaces the history with entries and cursor; the cursor is clamped.
func (h *History) Restore(entries []Snapshot, cursor int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]Snapshot(nil), entries...)
	h.totalBytes = 0
	for _, s := range h.entries {
		h.totalBytes += len(s.Blob)
	}
	h.cursor = max(0, min(cursor, len(h.entries)-1))
	h.enforceCapsLocked()
}

// Stats returns current sizes for diagnostics.
func (h *History) Stats() (totalBytes int, entries int, cursor int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalBytes, len(h.entries), h.cursor
}

func (h *History) enforceCapsLocked() {
	for len(h.entries) > 1 && (len(h.entries) > h.cfg.MaxEntries || (h.cfg.MaxBytes > 0 && h.totalBytes > h.cfg.MaxBytes)) {
		if h.cursor == 0 {
			// never evict the current state; trim the redo tail instead
			last := len(h.entries) - 1
			h.totalBytes -= len(h.entries[last].Blob)
			h.entries = h.entries[:last]
			continue
		}
		h.totalBytes -= len(h.entries[0].Blob)
		h.entries = append([]Snapshot(nil), h.entries[1:]...)
		h.cursor--
	}
}
