/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"fmt"

	"encarte/internal/domain"
	"encarte/internal/vector"
)

type dragSession struct {
	id     string
	guides []vector.GuideLine
}

// BeginDrag starts a drag of element id and selects it. Locked and
// non-draggable elements refuse.
func (s *Store) BeginDrag(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, _, err := s.findLocked(id)
	if err != nil {
		return err
	}
	if el.Locked || !el.Draggable {
		return fmt.Errorf("%w: %s", ErrLocked, id)
	}
	s.drag = &dragSession{id: id}
	s.doc.SelectedID = id
	return nil
}

// DragMove places the dragged element at (x, y), snaps it against the canvas
// and its siblings, and returns the guides to draw. The move is ephemeral.
func (s *Store) DragMove(x, y float64) ([]vector.GuideLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return nil, ErrNoDrag
	}
	el, _, err := s.findLocked(s.drag.id)
	if err != nil {
		s.drag = nil
		return nil, err
	}
	moved := *el
	moved.X, moved.Y = x, y

	anchors := make([]vector.Anchor, 0, len(s.doc.Elements)-1)
	for _, other := range s.doc.Elements {
		if other.ID == el.ID {
			continue
		}
		anchors = append(anchors, vector.Anchor{Rect: domain.Bounds(other, s.opts.Measurer), Hidden: !other.Visible})
	}
	res, guides := vector.ComputeSmartGuides(
		vector.Moving{Pos: vector.Pt{X: x, Y: y}, Box: domain.Bounds(moved, s.opts.Measurer)},
		s.canvasLocked(),
		anchors,
		vector.SnapOptions{Threshold: s.opts.SnapThreshold, GridSnap: s.doc.GridSnap, GridSize: s.opts.GridSize},
	)
	el.X, el.Y = res.Pos.X, res.Pos.Y
	s.drag.guides = guides
	s.touchLocked()
	return append([]vector.GuideLine(nil), guides...), nil
}

// Guides returns the guides of the last drag move.
func (s *Store) Guides() []vector.GuideLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return nil
	}
	return append([]vector.GuideLine(nil), s.drag.guides...)
}

// Dragging reports the id of the element being dragged.
func (s *Store) Dragging() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return "", false
	}
	return s.drag.id, true
}

// EndDrag clears the guides and commits the final position once.
func (s *Store) EndDrag() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return ErrNoDrag
	}
	s.drag = nil
	s.commitLocked("drag")
	return nil
}
