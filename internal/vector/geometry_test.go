/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"math"
	"testing"
)

func TestRectContainsAndInset(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	in := r.Inset(5, 5)
	if in.X != 15 || in.Y != 25 || in.W != 90 || in.H != 40 {
		t.Fatalf("unexpected inset: %+v", in)
	}
	if r.Right() != 110 || r.Bottom() != 70 || r.CenterX() != 60 || r.CenterY() != 45 {
		t.Fatalf("unexpected derived coordinates for %+v", r)
	}
}

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	p := m.Apply(Pt{1, 1})
	if p.X != 12 || p.Y != 8 { // (1*2+10, 1*3+5)
		t.Fatalf("unexpected transform result: %+v", p)
	}
	back := m.Invert().Apply(p)
	if math.Abs(back.X-1) > 1e-9 || math.Abs(back.Y-1) > 1e-9 {
		t.Fatalf("inverse did not round-trip: %+v", back)
	}
}

func TestRotateAbout_QuarterTurnBounds(t *testing.T) {
	m := RotateAbout(90, Pt{0, 0})
	b := m.ApplyRect(R(0, 0, 100, 50))
	if FloatRound(b.X, 6) != -50 || FloatRound(b.Y, 6) != 0 || FloatRound(b.W, 6) != 50 || FloatRound(b.H, 6) != 100 {
		t.Fatalf("unexpected rotated bounds: %+v", b)
	}
	if RotateAbout(0, Pt{3, 4}) != Identity {
		t.Fatalf("zero rotation should be identity")
	}
}

func TestBoundsOf_Empty(t *testing.T) {
	if BoundsOf(nil) != (Rect{}) {
		t.Fatalf("empty bounds should be zero rect")
	}
}
