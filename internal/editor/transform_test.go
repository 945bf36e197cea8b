/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"reflect"
	"testing"

	"encarte/internal/domain"
)

func mustElement(t *testing.T, k domain.Kind) domain.Element {
	t.Helper()
	el, err := domain.NewElement(k)
	if err != nil {
		t.Fatal(err)
	}
	el.ID = string(k)
	return el
}

func TestResolveTransformPerKind(t *testing.T) {
	g := Gesture{X: 10, Y: 20, Rotation: 45, ScaleX: 2, ScaleY: 3}

	r := ResolveTransform(mustElement(t, domain.KindRect), g, 5)
	if s := r.Shape.(*domain.RectShape); s.Width != 200 || s.Height != 300 {
		t.Fatalf("rect = %+v", s)
	}
	if r.X != 10 || r.Y != 20 || r.Rotation != 45 || r.ScaleX != 1 || r.ScaleY != 1 {
		t.Fatalf("transform fields = %+v", r)
	}

	c := ResolveTransform(mustElement(t, domain.KindCircle), g, 5)
	if s := c.Shape.(*domain.CircleShape); s.Radius != 150 {
		t.Fatalf("circle radius = %v", s.Radius)
	}

	st := ResolveTransform(mustElement(t, domain.KindStar), g, 5)
	if s := st.Shape.(*domain.StarShape); s.InnerRadius != 60 || s.OuterRadius != 120 {
		t.Fatalf("star = %+v", s)
	}

	l := ResolveTransform(mustElement(t, domain.KindLine), g, 5)
	if s := l.Shape.(*domain.LineShape); !reflect.DeepEqual(s.Points, []float64{0, 0, 200, 0}) {
		t.Fatalf("line = %v", s.Points)
	}

	img := ResolveTransform(mustElement(t, domain.KindImage), Gesture{ScaleX: 0.5, ScaleY: 0.25}, 5)
	if s := img.Shape.(*domain.ImageShape); s.Width != 100 || s.Height != 50 {
		t.Fatalf("image = %+v", s)
	}
}

func TestResolveTransformMinimumSize(t *testing.T) {
	el := mustElement(t, domain.KindRect)
	out := ResolveTransform(el, Gesture{X: el.X, Y: el.Y, ScaleX: 0.01, ScaleY: 0.01}, 5)
	if s := out.Shape.(*domain.RectShape); s.Width != 5 || s.Height != 5 {
		t.Fatalf("rect = %+v", s)
	}
}

func TestResolveTransformScaleRoundTrip(t *testing.T) {
	for _, k := range domain.Kinds {
		el := mustElement(t, k)
		if ts, ok := el.Shape.(*domain.TextShape); ok {
			ts.Width = 200
		}
		g := Gesture{X: el.X, Y: el.Y, ScaleX: 2, ScaleY: 2}
		up := ResolveTransform(el, g, 5)
		g.ScaleX, g.ScaleY = 0.5, 0.5
		back := ResolveTransform(up, g, 5)
		if !reflect.DeepEqual(back, el) {
			t.Fatalf("%s: %+v != %+v", k, back.Shape, el.Shape)
		}
	}
}

func TestResolveTransformLeavesInputUntouched(t *testing.T) {
	el := mustElement(t, domain.KindLine)
	_ = ResolveTransform(el, Gesture{ScaleX: 3, ScaleY: 3}, 5)
	if p := el.Shape.(*domain.LineShape).Points; p[2] != 100 {
		t.Fatalf("input mutated: %v", p)
	}
}

func TestCommitTransform(t *testing.T) {
	s := newTestStore()
	id, _ := s.AddElement(domain.KindRect, domain.Patch{})
	_ = s.UpdateElement(id, domain.Patch{ScaleX: domain.Ptr(1.5)})
	if err := s.CommitTransform(id, Gesture{X: 40, Y: 40, ScaleX: 1.5, ScaleY: 1}); err != nil {
		t.Fatal(err)
	}
	el, _ := s.Element(id)
	if w := el.Shape.(*domain.RectShape).Width; w != 150 || el.ScaleX != 1 {
		t.Fatalf("width %v scale %v", w, el.ScaleX)
	}
	s.Undo()
	el, _ = s.Element(id)
	if w := el.Shape.(*domain.RectShape).Width; w != 100 {
		t.Fatalf("undo width = %v", w)
	}
}

func TestResolveTransformUnitScaleKeepsSmallGeometry(t *testing.T) {
	el := mustElement(t, domain.KindRect)
	if err := (domain.Patch{Width: domain.Ptr(1.0), Height: domain.Ptr(2.0)}).Apply(&el); err != nil {
		t.Fatal(err)
	}
	r := ResolveTransform(el, Gesture{X: 3, Y: 4, ScaleX: 1, ScaleY: 1}, 5)
	if s := r.Shape.(*domain.RectShape); s.Width != 1 || s.Height != 2 {
		t.Fatalf("unit scale changed rect to %vx%v", s.Width, s.Height)
	}

	// only the scaled axis is clamped
	r = ResolveTransform(el, Gesture{ScaleX: 2, ScaleY: 1}, 5)
	if s := r.Shape.(*domain.RectShape); s.Width != 5 || s.Height != 2 {
		t.Fatalf("rect = %vx%v, want 5x2", s.Width, s.Height)
	}
}
