/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"errors"
	"testing"

	"encarte/internal/domain"
)

func dragFixture(t *testing.T) (*Store, string, string) {
	t.Helper()
	s := newTestStore()
	anchor, _ := s.AddElement(domain.KindRect, domain.Patch{X: domain.Ptr(300.0), Y: domain.Ptr(300.0)})
	moving, _ := s.AddElement(domain.KindRect, domain.Patch{X: domain.Ptr(50.0), Y: domain.Ptr(150.0)})
	return s, anchor, moving
}

func TestDragSnapsWithinThreshold(t *testing.T) {
	for _, tc := range []struct {
		x, want float64
		guides  bool
	}{
		{304, 300, true},
		{296, 300, true},
		{305, 305, false},
		{306, 306, false},
	} {
		s, _, id := dragFixture(t)
		if err := s.BeginDrag(id); err != nil {
			t.Fatal(err)
		}
		guides, err := s.DragMove(tc.x, 150)
		if err != nil {
			t.Fatal(err)
		}
		el, _ := s.Element(id)
		if el.X != tc.want || el.Y != 150 {
			t.Fatalf("x=%v: got %v,%v want %v,150", tc.x, el.X, el.Y, tc.want)
		}
		if (len(guides) > 0) != tc.guides {
			t.Fatalf("x=%v: guides %v", tc.x, guides)
		}
	}
}

func TestDragIgnoresHiddenSibling(t *testing.T) {
	s, anchor, id := dragFixture(t)
	_ = s.ToggleVisible(anchor)
	_ = s.BeginDrag(id)
	guides, _ := s.DragMove(304, 150)
	el, _ := s.Element(id)
	if el.X != 304 || len(guides) != 0 {
		t.Fatalf("hidden sibling snapped: x=%v guides=%v", el.X, guides)
	}
}

func TestDragGridFirst(t *testing.T) {
	s := newTestStore()
	id, _ := s.AddElement(domain.KindRect, domain.Patch{})
	s.SetGridSnap(true)
	_ = s.BeginDrag(id)
	_, _ = s.DragMove(33, 47)
	el, _ := s.Element(id)
	if el.X != 40 || el.Y != 40 {
		t.Fatalf("grid snap = %v,%v", el.X, el.Y)
	}
}

func TestDragCommitsOnceOnEnd(t *testing.T) {
	s, _, id := dragFixture(t)
	_, before, _ := s.hist.Stats()
	_ = s.BeginDrag(id)
	for x := 60.0; x < 120; x += 10 {
		if _, err := s.DragMove(x, 150); err != nil {
			t.Fatal(err)
		}
	}
	if _, mid, _ := s.hist.Stats(); mid != before {
		t.Fatalf("drag moves must not commit")
	}
	// nothing is within reach of (110,150)
	if len(s.Guides()) != 0 {
		t.Fatalf("unexpected guides %v", s.Guides())
	}
	if err := s.EndDrag(); err != nil {
		t.Fatal(err)
	}
	if _, after, _ := s.hist.Stats(); after != before+1 {
		t.Fatalf("entries %d -> %d", before, after)
	}
	if _, ok := s.Dragging(); ok {
		t.Fatalf("drag should be over")
	}
	if err := s.EndDrag(); !errors.Is(err, ErrNoDrag) {
		t.Fatalf("second end: %v", err)
	}
	s.Undo()
	el, _ := s.Element(id)
	if el.X != 50 {
		t.Fatalf("undo drag x = %v", el.X)
	}
}

func TestDragGuidesClearedOnEnd(t *testing.T) {
	s, _, id := dragFixture(t)
	_ = s.BeginDrag(id)
	_, _ = s.DragMove(304, 150)
	if len(s.Guides()) == 0 {
		t.Fatalf("expected guides while dragging")
	}
	_ = s.EndDrag()
	if len(s.Guides()) != 0 {
		t.Fatalf("guides should clear after drag")
	}
}

func TestLockedElementCannotDrag(t *testing.T) {
	s, _, id := dragFixture(t)
	_ = s.ToggleLocked(id)
	if err := s.BeginDrag(id); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if _, err := s.DragMove(1, 1); !errors.Is(err, ErrNoDrag) {
		t.Fatalf("expected ErrNoDrag, got %v", err)
	}
}
