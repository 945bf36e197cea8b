/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "math"

// Outline builders for the editor's element kinds. All of them are expressed
// around a center point, which is the element origin for radius-based kinds.

// kappa approximates a quarter circle with a cubic bezier.
const kappa = 0.5522847498

// RegularPolygonPoints returns the vertices of a regular polygon with the
// first vertex pointing up.
func RegularPolygonPoints(c Pt, sides int, radius float64) []Pt {
	if sides < 3 {
		return nil
	}
	pts := make([]Pt, sides)
	for i := 0; i < sides; i++ {
		a := float64(i) * 2 * math.Pi / float64(sides)
		pts[i] = Pt{X: c.X + radius*math.Sin(a), Y: c.Y - radius*math.Cos(a)}
	}
	return pts
}

// TrianglePoints returns apex and the two base corners of the triangle inscribed in radius.
func TrianglePoints(c Pt, radius float64) []Pt { return RegularPolygonPoints(c, 3, radius) }

// StarPoints returns 2*n vertices alternating outer and inner radius, starting
// with an outer point straight up.
func StarPoints(c Pt, n int, inner, outer float64) []Pt {
	if n < 2 {
		return nil
	}
	pts := make([]Pt, 2*n)
	for i := 0; i < 2*n; i++ {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		a := float64(i) * math.Pi / float64(n)
		pts[i] = Pt{X: c.X + r*math.Sin(a), Y: c.Y - r*math.Cos(a)}
	}
	return pts
}

// RoundedRectPath returns a closed path for r with corner radius clamped to half the short side.
func RoundedRectPath(r Rect, radius float64) Path {
	radius = math.Max(0, math.Min(radius, math.Min(r.W, r.H)/2))
	if radius == 0 {
		return Polygon([]Pt{{r.X, r.Y}, {r.X + r.W, r.Y}, {r.X + r.W, r.Y + r.H}, {r.X, r.Y + r.H}})
	}
	k := radius * kappa
	x0, y0, x1, y1 := r.X, r.Y, r.X+r.W, r.Y+r.H
	var p Path
	p.MoveTo(x0+radius, y0)
	p.LineTo(x1-radius, y0)
	p.CubicTo(x1-radius+k, y0, x1, y0+radius-k, x1, y0+radius)
	p.LineTo(x1, y1-radius)
	p.CubicTo(x1, y1-radius+k, x1-radius+k, y1, x1-radius, y1)
	p.LineTo(x0+radius, y1)
	p.CubicTo(x0+radius-k, y1, x0, y1-radius+k, x0, y1-radius)
	p.LineTo(x0, y0+radius)
	p.CubicTo(x0, y0+radius-k, x0+radius-k, y0, x0+radius, y0)
	p.Close()
	return p
}
