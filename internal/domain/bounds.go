/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"strings"

	"encarte/internal/vector"
)

// LineHeightFactor is the text line height as a multiple of the font size.
const LineHeightFactor = 1.2

// TextMeasurer lays out a text element and reports its box width and line count.
type TextMeasurer interface {
	MeasureText(t *TextShape) (width float64, lines int)
}

// approxCharWidth is used when no measurer is available.
const approxCharWidth = 0.6

// LocalBounds returns the unrotated box of el in page coordinates.
// Radius-based kinds are centered on the element position.
func LocalBounds(el Element, m TextMeasurer) vector.Rect {
	switch s := el.Shape.(type) {
	case *RectShape:
		return vector.R(el.X, el.Y, s.Width, s.Height)
	case *ImageShape:
		return vector.R(el.X, el.Y, s.Width, s.Height)
	case *CircleShape:
		return vector.R(el.X-s.Radius, el.Y-s.Radius, 2*s.Radius, 2*s.Radius)
	case *TriangleShape:
		return vector.R(el.X-s.Radius, el.Y-s.Radius, 2*s.Radius, 2*s.Radius)
	case *StarShape:
		return vector.R(el.X-s.OuterRadius, el.Y-s.OuterRadius, 2*s.OuterRadius, 2*s.OuterRadius)
	case *LineShape:
		pts := make([]vector.Pt, 0, len(s.Points)/2)
		for i := 0; i+1 < len(s.Points); i += 2 {
			pts = append(pts, vector.Pt{X: el.X + s.Points[i], Y: el.Y + s.Points[i+1]})
		}
		return vector.BoundsOf(pts)
	case *TextShape:
		var w float64
		var lines int
		if m != nil {
			w, lines = m.MeasureText(s)
		} else {
			w, lines = approxText(s)
		}
		return vector.R(el.X, el.Y, w, float64(lines)*s.FontSize*LineHeightFactor)
	}
	return vector.R(el.X, el.Y, 0, 0)
}

// Bounds returns the axis-aligned box of el including its rotation about the element origin.
func Bounds(el Element, m TextMeasurer) vector.Rect {
	b := LocalBounds(el, m)
	if el.Rotation == 0 {
		return b
	}
	return vector.RotateAbout(el.Rotation, vector.Pt{X: el.X, Y: el.Y}).ApplyRect(b)
}

func approxText(s *TextShape) (float64, int) {
	paras := strings.Split(s.Text, "\n")
	if s.Width > 0 {
		return s.Width, len(paras)
	}
	widest := 0
	for _, p := range paras {
		widest = max(widest, len([]rune(p)))
	}
	return float64(widest) * s.FontSize * approxCharWidth, len(paras)
}
