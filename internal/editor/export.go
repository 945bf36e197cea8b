/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"sync/atomic"

	"encarte/internal/domain"
	"encarte/internal/vector"
)

var (
	ErrExportInFlight = errors.New("an export is already running")
	ErrStaleExport    = errors.New("document changed while assets were loading")
)

// ExportSnapshot is a frozen copy of the document handed to an exporter.
type ExportSnapshot struct {
	Orientation domain.Orientation
	Canvas      vector.Size
	Elements    []domain.Element
	Version     uint64
}

// ExportSnapshot deep-copies the document for rendering.
func (s *Store) ExportSnapshot() ExportSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ExportSnapshot{
		Orientation: s.doc.Orientation,
		Canvas:      s.canvasLocked(),
		Elements:    domain.CloneElements(s.doc.Elements),
		Version:     s.version,
	}
}

// ExportGate serialises exports of one store: at most one runs at a time and
// asset preparation must finish before the snapshot is rendered.
type ExportGate struct {
	store *Store
	busy  atomic.Bool
}

func NewExportGate(s *Store) *ExportGate { return &ExportGate{store: s} }

// Busy reports whether an export is running.
func (g *ExportGate) Busy() bool { return g.busy.Load() }

// Run calls prepare with the current elements, then render with a snapshot.
// If the document changed while prepare ran, render is skipped and
// ErrStaleExport is returned so the caller can retry with fresh assets.
// A second Run while one is active fails with ErrExportInFlight.
func (g *ExportGate) Run(ctx context.Context,
	prepare func(ctx context.Context, elements []domain.Element) error,
	render func(ctx context.Context, snap ExportSnapshot) error,
) error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrExportInFlight
	}
	defer g.busy.Store(false)

	before := g.store.ExportSnapshot()
	if prepare != nil {
		if err := prepare(ctx, before.Elements); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := g.store.ExportSnapshot()
	if snap.Version != before.Version {
		return ErrStaleExport
	}
	return render(ctx, snap)
}
