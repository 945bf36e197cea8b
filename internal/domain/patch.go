/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"math"
	"strings"

	"encarte/internal/vector"
)

// FieldError names one rejected field.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError lists the fields of a mutation that were rejected.
// Fields not listed were applied.
type ValidationError struct {
	ElementID string
	Fields    []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	if e.ElementID != "" {
		return fmt.Sprintf("invalid element %s: %s", e.ElementID, strings.Join(parts, "; "))
	}
	return "invalid element: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// Ptr is a small helper to build patches: domain.Patch{Width: domain.Ptr(120.0)}.
func Ptr[T any](v T) *T { return &v }

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	X, Y      *float64
	Rotation  *float64
	Opacity   *float64
	Visible   *bool
	Locked    *bool
	Draggable *bool
	ScaleX    *float64
	ScaleY    *float64

	Fill        *string
	Stroke      *string
	StrokeWidth *float64

	Width        *float64
	Height       *float64
	CornerRadius *float64
	Radius       *float64
	InnerRadius  *float64
	OuterRadius  *float64
	NumPoints    *int
	Points       []float64

	Text       *string
	FontFamily *string
	FontSize   *float64
	FontStyle  *string
	Underline  *bool
	Align      *string

	Src *string
}

// Apply merges p into el. Fields that are invalid or irrelevant for the element's
// kind are skipped and reported in the returned *ValidationError; every other
// field is applied.
func (p Patch) Apply(el *Element) error {
	ve := &ValidationError{ElementID: el.ID}

	setFinite(ve, "x", p.X, &el.X)
	setFinite(ve, "y", p.Y, &el.Y)
	setFinite(ve, "rotation", p.Rotation, &el.Rotation)
	if p.Opacity != nil {
		if v := *p.Opacity; finite(v) && v >= 0 && v <= 1 {
			el.Opacity = v
		} else {
			ve.add("opacity", "must be within 0..1")
		}
	}
	if p.Visible != nil {
		el.Visible = *p.Visible
	}
	if p.Locked != nil {
		el.Locked = *p.Locked
	}
	if p.Draggable != nil {
		el.Draggable = *p.Draggable
	}
	setPositive(ve, "scaleX", p.ScaleX, &el.ScaleX)
	setPositive(ve, "scaleY", p.ScaleY, &el.ScaleY)

	p.applyPaint(ve, el.Shape)

	switch s := el.Shape.(type) {
	case *TextShape:
		if p.Text != nil {
			s.Text = *p.Text
		}
		if p.FontFamily != nil {
			if f := strings.TrimSpace(*p.FontFamily); f != "" {
				s.FontFamily = f
			} else {
				ve.add("fontFamily", "must not be empty")
			}
		}
		setPositive(ve, "fontSize", p.FontSize, &s.FontSize)
		if p.FontStyle != nil {
			if fs, ok := ParseFontStyle(*p.FontStyle); ok {
				s.FontStyle = fs
			} else {
				ve.add("fontStyle", "unknown style "+*p.FontStyle)
			}
		}
		if p.Underline != nil {
			s.Underline = *p.Underline
		}
		if p.Align != nil {
			if a := Align(*p.Align); a.Valid() {
				s.Align = a
			} else {
				ve.add("align", "unknown alignment "+*p.Align)
			}
		}
		// a zero width means unbounded text
		setNonNegative(ve, "width", p.Width, &s.Width)
		p.rejectExcept(ve, "text", "width")
	case *RectShape:
		setPositive(ve, "width", p.Width, &s.Width)
		setPositive(ve, "height", p.Height, &s.Height)
		setNonNegative(ve, "cornerRadius", p.CornerRadius, &s.CornerRadius)
		p.rejectExcept(ve, "rect", "width", "height", "cornerRadius")
	case *ImageShape:
		setPositive(ve, "width", p.Width, &s.Width)
		setPositive(ve, "height", p.Height, &s.Height)
		setNonNegative(ve, "cornerRadius", p.CornerRadius, &s.CornerRadius)
		if p.Src != nil {
			s.Src = strings.TrimSpace(*p.Src)
		}
		p.rejectExcept(ve, "image", "width", "height", "cornerRadius", "src")
	case *CircleShape:
		setPositive(ve, "radius", p.Radius, &s.Radius)
		p.rejectExcept(ve, "circle", "radius")
	case *TriangleShape:
		setPositive(ve, "radius", p.Radius, &s.Radius)
		p.rejectExcept(ve, "triangle", "radius")
	case *StarShape:
		setPositive(ve, "innerRadius", p.InnerRadius, &s.InnerRadius)
		setPositive(ve, "outerRadius", p.OuterRadius, &s.OuterRadius)
		if p.NumPoints != nil {
			if *p.NumPoints >= 2 {
				s.NumPoints = *p.NumPoints
			} else {
				ve.add("numPoints", "must be at least 2")
			}
		}
		p.rejectExcept(ve, "star", "innerRadius", "outerRadius", "numPoints")
	case *LineShape:
		if p.Points != nil {
			if validPoints(p.Points) {
				s.Points = append([]float64(nil), p.Points...)
			} else {
				ve.add("points", "need an even number of finite values, at least two points")
			}
		}
		p.rejectExcept(ve, "line", "points")
	default:
		ve.add("kind", "element has no shape")
	}

	if len(ve.Fields) == 0 {
		return nil
	}
	return ve
}

func (p Patch) applyPaint(ve *ValidationError, shape Shape) {
	if ls, ok := shape.(*LineShape); ok {
		if p.Fill != nil {
			ve.add("fill", "not supported by line")
		}
		setColor(ve, "stroke", p.Stroke, &ls.Stroke)
		setNonNegative(ve, "strokeWidth", p.StrokeWidth, &ls.StrokeWidth)
		return
	}
	paint := PaintOf(shape)
	if paint == nil {
		for _, f := range []struct {
			name string
			set  bool
		}{{"fill", p.Fill != nil}, {"stroke", p.Stroke != nil}, {"strokeWidth", p.StrokeWidth != nil}} {
			if f.set {
				ve.add(f.name, "not supported by "+string(shape.Kind()))
			}
		}
		return
	}
	setColor(ve, "fill", p.Fill, &paint.Fill)
	setColor(ve, "stroke", p.Stroke, &paint.Stroke)
	setNonNegative(ve, "strokeWidth", p.StrokeWidth, &paint.StrokeWidth)
}

// rejectExcept reports geometry/text fields that the kind does not carry.
func (p Patch) rejectExcept(ve *ValidationError, kind string, allowed ...string) {
	present := map[string]bool{
		"width":        p.Width != nil,
		"height":       p.Height != nil,
		"cornerRadius": p.CornerRadius != nil,
		"radius":       p.Radius != nil,
		"innerRadius":  p.InnerRadius != nil,
		"outerRadius":  p.OuterRadius != nil,
		"numPoints":    p.NumPoints != nil,
		"points":       p.Points != nil,
		"text":         p.Text != nil || p.FontFamily != nil || p.FontSize != nil || p.FontStyle != nil || p.Underline != nil || p.Align != nil,
		"src":          p.Src != nil,
	}
	ok := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		ok[a] = true
	}
	for _, name := range []string{"width", "height", "cornerRadius", "radius", "innerRadius", "outerRadius", "numPoints", "points", "text", "src"} {
		if present[name] && !ok[name] {
			ve.add(name, "not supported by "+kind)
		}
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func setFinite(ve *ValidationError, name string, src *float64, dst *float64) {
	if src == nil {
		return
	}
	if !finite(*src) {
		ve.add(name, "must be a finite number")
		return
	}
	*dst = *src
}

func setPositive(ve *ValidationError, name string, src *float64, dst *float64) {
	if src == nil {
		return
	}
	if !finite(*src) || *src <= 0 {
		ve.add(name, "must be positive")
		return
	}
	*dst = *src
}

func setNonNegative(ve *ValidationError, name string, src *float64, dst *float64) {
	if src == nil {
		return
	}
	if !finite(*src) || *src < 0 {
		ve.add(name, "must not be negative")
		return
	}
	*dst = *src
}

func setColor(ve *ValidationError, name string, src *string, dst *string) {
	if src == nil {
		return
	}
	v := strings.TrimSpace(*src)
	if v == "" {
		*dst = ""
		return
	}
	if _, err := vector.ParseHex(v); err != nil {
		ve.add(name, err.Error())
		return
	}
	*dst = v
}

func validPoints(pts []float64) bool {
	if len(pts) < 4 || len(pts)%2 != 0 {
		return false
	}
	for _, v := range pts {
		if !finite(v) {
			return false
		}
	}
	return true
}
