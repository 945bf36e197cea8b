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
	"fmt"
	"reflect"
	"testing"
	"time"

	"encarte/internal/domain"
	"encarte/internal/vector"
)

func newTestStore() *Store {
	n := 0
	return NewStore(domain.Landscape, Options{NewID: func() string {
		n++
		return fmt.Sprintf("el-%d", n)
	}})
}

func ids(els []domain.Element) []string {
	out := make([]string, len(els))
	for i, el := range els {
		out[i] = el.ID
	}
	return out
}

func TestAddElementSelectsAndCommits(t *testing.T) {
	s := newTestStore()
	if s.CanUndo() {
		t.Fatalf("fresh store should have nothing to undo")
	}
	id, err := s.AddElement(domain.KindRect, domain.Patch{X: domain.Ptr(10.0)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	el, ok := s.Selected()
	if !ok || el.ID != id {
		t.Fatalf("new element not selected: %v %q", ok, el.ID)
	}
	if el.X != 10 || el.Y != 100 {
		t.Fatalf("position = %v,%v", el.X, el.Y)
	}
	if !s.CanUndo() {
		t.Fatalf("add must create a history entry")
	}
}

func TestAddElementRejectsFieldKeepsDefault(t *testing.T) {
	s := newTestStore()
	id, err := s.AddElement(domain.KindRect, domain.Patch{Width: domain.Ptr(-4.0), Fill: domain.Ptr("#ff0000")})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) != 1 || ve.Fields[0].Field != "width" {
		t.Fatalf("expected width rejection, got %v", err)
	}
	el, ok := s.Element(id)
	if !ok {
		t.Fatalf("element should still be added")
	}
	r := el.Shape.(*domain.RectShape)
	if r.Width != 100 || r.Fill != "#ff0000" {
		t.Fatalf("rect = %+v", r)
	}
}

func TestAddUnknownKind(t *testing.T) {
	s := newTestStore()
	if _, err := s.AddElement("hexagon", domain.Patch{}); err == nil {
		t.Fatalf("unknown kind must fail")
	}
	if len(s.Elements()) != 0 || s.CanUndo() {
		t.Fatalf("nothing should change")
	}
}

func TestUpdateEphemeralVsCommitted(t *testing.T) {
	s := newTestStore()
	id, _ := s.AddElement(domain.KindCircle, domain.Patch{})
	if err := s.UpdateElement(id, domain.Patch{X: domain.Ptr(300.0)}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateElementWithHistory(id, domain.Patch{Y: domain.Ptr(200.0)}); err != nil {
		t.Fatal(err)
	}
	if !s.Undo() {
		t.Fatalf("undo failed")
	}
	el, _ := s.Element(id)
	// the ephemeral x never reached history
	if el.X != 100 || el.Y != 100 {
		t.Fatalf("after undo = %v,%v", el.X, el.Y)
	}
	if err := s.UpdateElement("missing", domain.Patch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	s := newTestStore()
	var states [][]domain.Element
	states = append(states, s.Elements())

	a, _ := s.AddElement(domain.KindRect, domain.Patch{})
	states = append(states, s.Elements())
	b, _ := s.AddElement(domain.KindText, domain.Patch{Text: domain.Ptr("Oferta")})
	states = append(states, s.Elements())
	_ = s.UpdateElementWithHistory(a, domain.Patch{Fill: domain.Ptr("#00ff00"), Rotation: domain.Ptr(30.0)})
	states = append(states, s.Elements())
	_, _ = s.DuplicateElement(b)
	states = append(states, s.Elements())
	_ = s.MoveElement(a, Top)
	states = append(states, s.Elements())
	_ = s.DeleteElement(b)
	states = append(states, s.Elements())

	n := len(states) - 1
	for i := n - 1; i >= 0; i-- {
		if !s.Undo() {
			t.Fatalf("undo %d failed", i)
		}
		if got := s.Elements(); !reflect.DeepEqual(got, states[i]) {
			t.Fatalf("undo to %d: got %v want %v", i, ids(got), ids(states[i]))
		}
	}
	if s.Undo() {
		t.Fatalf("undo past the first entry must report false")
	}
	for i := 1; i <= n; i++ {
		if !s.Redo() {
			t.Fatalf("redo %d failed", i)
		}
		if got := s.Elements(); !reflect.DeepEqual(got, states[i]) {
			t.Fatalf("redo to %d mismatch", i)
		}
	}
	if s.Redo() {
		t.Fatalf("redo past the end must report false")
	}
}

func TestCommitAfterUndoDropsRedo(t *testing.T) {
	s := newTestStore()
	id, _ := s.AddElement(domain.KindRect, domain.Patch{})
	_ = s.UpdateElementWithHistory(id, domain.Patch{X: domain.Ptr(1.0)})
	s.Undo()
	_ = s.UpdateElementWithHistory(id, domain.Patch{X: domain.Ptr(2.0)})
	if s.CanRedo() {
		t.Fatalf("redo tail should be truncated")
	}
}

func TestHistoryCap(t *testing.T) {
	s := newTestStore()
	id, _ := s.AddElement(domain.KindRect, domain.Patch{})
	for i := 0; i < 60; i++ {
		_ = s.UpdateElementWithHistory(id, domain.Patch{X: domain.Ptr(float64(i))})
	}
	steps := 0
	for s.Undo() {
		steps++
	}
	if steps != 49 {
		t.Fatalf("undo steps = %d, want 49", steps)
	}
	el, _ := s.Element(id)
	if el.X != 10 {
		t.Fatalf("oldest retained x = %v, want 10", el.X)
	}
}

func TestHistoryByteBudget(t *testing.T) {
	ref := newTestStore()
	id, _ := ref.AddElement(domain.KindRect, domain.Patch{})
	_ = ref.UpdateElementWithHistory(id, domain.Patch{X: domain.Ptr(1.0)})
	entries, cur := ref.History()
	blob := len(entries[cur].Blob)

	s := NewStore(domain.Landscape, Options{HistoryBytes: 3 * blob, NewID: func() string { return "el-1" }})
	id, _ = s.AddElement(domain.KindRect, domain.Patch{})
	for i := 0; i < 10; i++ {
		_ = s.UpdateElementWithHistory(id, domain.Patch{X: domain.Ptr(float64(i))})
	}
	size, n, cursor := s.HistoryStats()
	if size > 3*blob || n > 3 || cursor != n-1 {
		t.Fatalf("stats = %d bytes, %d entries, cursor %d (budget %d)", size, n, cursor, 3*blob)
	}
	steps := 0
	for s.Undo() {
		steps++
	}
	if steps != n-1 {
		t.Fatalf("undo steps = %d, want %d", steps, n-1)
	}
}

func TestHistoryCoalesce(t *testing.T) {
	s := NewStore(domain.Landscape, Options{HistoryCoalesce: time.Hour})
	id, _ := s.AddElement(domain.KindRect, domain.Patch{})
	for i := 0; i < 5; i++ {
		_ = s.UpdateElementWithHistory(id, domain.Patch{X: domain.Ptr(float64(i))})
	}
	if _, n, _ := s.HistoryStats(); n != 2 {
		t.Fatalf("entries = %d, want base plus one coalesced step", n)
	}
	if !s.Undo() || len(s.Elements()) != 0 {
		t.Fatalf("undo should return to the empty document")
	}
}

func TestUndoRestoresIsolatedCopy(t *testing.T) {
	s := newTestStore()
	id, _ := s.AddElement(domain.KindLine, domain.Patch{})
	_ = s.UpdateElementWithHistory(id, domain.Patch{Points: []float64{0, 0, 50, 50}})
	s.Undo()
	got := s.Elements()
	got[0].Shape.(*domain.LineShape).Points[2] = 999
	s.Redo()
	s.Undo()
	el, _ := s.Element(id)
	if p := el.Shape.(*domain.LineShape).Points; p[2] != 100 {
		t.Fatalf("history was mutated through a returned copy: %v", p)
	}
}

func TestDeleteClearsSelection(t *testing.T) {
	s := newTestStore()
	id, _ := s.AddElement(domain.KindStar, domain.Patch{})
	if err := s.DeleteElement(id); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Selected(); ok {
		t.Fatalf("selection should be cleared")
	}
	if err := s.DeleteElement(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestDuplicateOffsetsAndSelects(t *testing.T) {
	s := newTestStore()
	id, _ := s.AddElement(domain.KindTriangle, domain.Patch{})
	dup, err := s.DuplicateElement(id)
	if err != nil {
		t.Fatal(err)
	}
	if dup == id {
		t.Fatalf("duplicate must get a new id")
	}
	el, _ := s.Element(dup)
	if el.X != 120 || el.Y != 120 {
		t.Fatalf("duplicate at %v,%v", el.X, el.Y)
	}
	if sel, _ := s.Selected(); sel.ID != dup {
		t.Fatalf("duplicate should be selected")
	}
	if got := ids(s.Elements()); got[len(got)-1] != dup {
		t.Fatalf("duplicate should be on top: %v", got)
	}
}

func TestMoveElement(t *testing.T) {
	s := newTestStore()
	a, _ := s.AddElement(domain.KindRect, domain.Patch{})
	b, _ := s.AddElement(domain.KindRect, domain.Patch{})
	c, _ := s.AddElement(domain.KindRect, domain.Patch{})

	cases := []struct {
		id   string
		dir  Direction
		want []string
	}{
		{a, Up, []string{b, a, c}},
		{a, Top, []string{b, c, a}},
		{a, Top, []string{b, c, a}},
		{a, Bottom, []string{a, b, c}},
		{a, Down, []string{a, b, c}},
		{c, Down, []string{a, c, b}},
	}
	for i, tc := range cases {
		if err := s.MoveElement(tc.id, tc.dir); err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if got := ids(s.Elements()); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("case %d: got %v want %v", i, got, tc.want)
		}
	}
	if err := s.MoveElement(a, "sideways"); err == nil {
		t.Fatalf("unknown direction must fail")
	}
}

func TestNoOpDoesNotAddHistory(t *testing.T) {
	s := newTestStore()
	a, _ := s.AddElement(domain.KindRect, domain.Patch{})
	_, before, _ := s.hist.Stats()
	_ = s.MoveElement(a, Up)
	_ = s.UpdateElementWithHistory(a, domain.Patch{X: domain.Ptr(100.0)})
	if _, after, _ := s.hist.Stats(); after != before {
		t.Fatalf("entries %d -> %d", before, after)
	}
}

func TestOrientationIsUndoable(t *testing.T) {
	s := newTestStore()
	if err := s.SetOrientation(domain.Portrait); err != nil {
		t.Fatal(err)
	}
	if s.CanvasSize() != domain.A4Portrait {
		t.Fatalf("size = %+v", s.CanvasSize())
	}
	s.Undo()
	if s.Document().Orientation != domain.Landscape {
		t.Fatalf("orientation not restored")
	}
	if err := s.SetOrientation("square"); err == nil {
		t.Fatalf("invalid orientation must fail")
	}
}

func TestCanvasSizeFollowsConfiguredCanvas(t *testing.T) {
	screen := func(o domain.Orientation) vector.Size {
		if o == domain.Portrait {
			return vector.Size{W: 1080, H: 1920}
		}
		return vector.Size{W: 1920, H: 1080}
	}
	s := NewStore(domain.Landscape, Options{Canvas: screen})
	if got := s.CanvasSize(); got != (vector.Size{W: 1920, H: 1080}) {
		t.Fatalf("landscape canvas = %+v", got)
	}
	if err := s.SetOrientation(domain.Portrait); err != nil {
		t.Fatal(err)
	}
	if got := s.CanvasSize(); got != (vector.Size{W: 1080, H: 1920}) {
		t.Fatalf("portrait canvas = %+v", got)
	}
}

func TestViewSettingsSkipHistory(t *testing.T) {
	s := newTestStore()
	s.SetGridSnap(true)
	s.SetShowGrid(true)
	if err := s.SetZoom(2); err != nil {
		t.Fatal(err)
	}
	if err := s.SetZoom(0); !errors.Is(err, ErrInvalidZoom) {
		t.Fatalf("zoom 0: %v", err)
	}
	if s.CanUndo() {
		t.Fatalf("view settings must not create history")
	}
	d := s.Document()
	if !d.GridSnap || !d.ShowGrid || d.Zoom != 2 {
		t.Fatalf("doc = %+v", d)
	}
}

func TestLoadTemplateResetsHistory(t *testing.T) {
	s := newTestStore()
	_, _ = s.AddElement(domain.KindRect, domain.Patch{})
	el, _ := domain.NewElement(domain.KindCircle)
	el.ID = "c1"
	if err := s.Load(domain.Template{CanvasSize: domain.Portrait, Elements: []domain.Element{el}}); err != nil {
		t.Fatal(err)
	}
	if s.CanUndo() || s.CanRedo() {
		t.Fatalf("history should restart")
	}
	tpl := s.Template("promo")
	if tpl.Name != "promo" || tpl.CanvasSize != domain.Portrait || len(tpl.Elements) != 1 || tpl.Elements[0].ID != "c1" {
		t.Fatalf("template = %+v", tpl)
	}
	dup := domain.Template{CanvasSize: domain.Landscape, Elements: []domain.Element{el, el}}
	if err := s.Load(dup); err == nil {
		t.Fatalf("duplicate ids must be rejected")
	}
}

func TestRestoreHistory(t *testing.T) {
	s := newTestStore()
	id, _ := s.AddElement(domain.KindRect, domain.Patch{})
	_ = s.UpdateElementWithHistory(id, domain.Patch{X: domain.Ptr(5.0)})
	entries, cursor := s.History()

	other := newTestStore()
	if err := other.RestoreHistory(entries, cursor); err != nil {
		t.Fatal(err)
	}
	el, ok := other.Element(id)
	if !ok || el.X != 5 {
		t.Fatalf("restored element = %+v", el)
	}
	if !other.Undo() {
		t.Fatalf("restored history should allow undo")
	}
	if err := other.RestoreHistory(nil, 0); err == nil {
		t.Fatalf("empty history must fail")
	}
}

func TestToggles(t *testing.T) {
	s := newTestStore()
	id, _ := s.AddElement(domain.KindRect, domain.Patch{})
	_ = s.ToggleLocked(id)
	_ = s.ToggleVisible(id)
	el, _ := s.Element(id)
	if !el.Locked || el.Visible {
		t.Fatalf("flags = locked %v visible %v", el.Locked, el.Visible)
	}
	s.Undo()
	el, _ = s.Element(id)
	if !el.Visible {
		t.Fatalf("visibility toggle should be undoable")
	}
}

func TestElementAt(t *testing.T) {
	s := newTestStore()
	a, _ := s.AddElement(domain.KindRect, domain.Patch{X: domain.Ptr(0.0), Y: domain.Ptr(0.0)})
	b, _ := s.AddElement(domain.KindRect, domain.Patch{X: domain.Ptr(50.0), Y: domain.Ptr(50.0)})
	if id, _ := s.ElementAt(vector.Pt{X: 60, Y: 60}); id != b {
		t.Fatalf("top-most hit = %q, want %q", id, b)
	}
	if id, _ := s.ElementAt(vector.Pt{X: 10, Y: 10}); id != a {
		t.Fatalf("hit = %q, want %q", id, a)
	}
	_ = s.ToggleVisible(b)
	if id, _ := s.ElementAt(vector.Pt{X: 60, Y: 60}); id != a {
		t.Fatalf("hidden element should not be hit")
	}
	if _, ok := s.ElementAt(vector.Pt{X: 500, Y: 500}); ok {
		t.Fatalf("empty area should not hit")
	}
}
