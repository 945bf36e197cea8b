/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the element model of the label/flyer editor.
// An Element carries the fields every kind shares; the kind-specific data lives
// in exactly one Shape variant, so a circle can never carry a width and a line
// can never carry a fill.

// Kind discriminates the Shape variant of an Element.
type Kind string

const (
	KindText     Kind = "text"
	KindRect     Kind = "rect"
	KindCircle   Kind = "circle"
	KindTriangle Kind = "triangle"
	KindStar     Kind = "star"
	KindLine     Kind = "line"
	KindImage    Kind = "image"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{KindText, KindRect, KindCircle, KindTriangle, KindStar, KindLine, KindImage}

func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// FontStyle is one of normal, bold, italic or "bold italic".
type FontStyle string

const (
	FontNormal     FontStyle = "normal"
	FontBold       FontStyle = "bold"
	FontItalic     FontStyle = "italic"
	FontBoldItalic FontStyle = "bold italic"
)

// ParseFontStyle accepts both word orders of the combined style.
func ParseFontStyle(s string) (FontStyle, bool) {
	switch s {
	case "", "normal":
		return FontNormal, true
	case "bold":
		return FontBold, true
	case "italic":
		return FontItalic, true
	case "bold italic", "italic bold":
		return FontBoldItalic, true
	}
	return "", false
}

func (f FontStyle) Bold() bool   { return f == FontBold || f == FontBoldItalic }
func (f FontStyle) Italic() bool { return f == FontItalic || f == FontBoldItalic }

type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

func (a Align) Valid() bool { return a == AlignLeft || a == AlignCenter || a == AlignRight }

// Paint holds the optional fill and stroke of closed shapes. Empty colors are unset.
type Paint struct {
	Fill        string
	Stroke      string
	StrokeWidth float64
}

func (p *Paint) paint() *Paint { return p }

// Shape is the kind-specific part of an Element.
type Shape interface {
	Kind() Kind
	clone() Shape
}

type TextShape struct {
	Paint
	Text       string
	FontFamily string
	FontSize   float64
	FontStyle  FontStyle
	Underline  bool
	Align      Align
	// Width bounds the text box; 0 disables wrapping.
	Width float64
}

type RectShape struct {
	Paint
	Width, Height float64
	CornerRadius  float64
}

type CircleShape struct {
	Paint
	Radius float64
}

type TriangleShape struct {
	Paint
	Radius float64
}

type StarShape struct {
	Paint
	NumPoints   int
	InnerRadius float64
	OuterRadius float64
}

// LineShape is stroke-only. Points are flattened x,y pairs relative to the element position.
type LineShape struct {
	Stroke      string
	StrokeWidth float64
	Points      []float64
}

// ImageShape has no paint. Src is a file path, an http(s) URL or a data: URI.
type ImageShape struct {
	Src           string
	Width, Height float64
	CornerRadius  float64
}

func (*TextShape) Kind() Kind     { return KindText }
func (*RectShape) Kind() Kind     { return KindRect }
func (*CircleShape) Kind() Kind   { return KindCircle }
func (*TriangleShape) Kind() Kind { return KindTriangle }
func (*StarShape) Kind() Kind     { return KindStar }
func (*LineShape) Kind() Kind     { return KindLine }
func (*ImageShape) Kind() Kind    { return KindImage }

func (s *TextShape) clone() Shape     { c := *s; return &c }
func (s *RectShape) clone() Shape     { c := *s; return &c }
func (s *CircleShape) clone() Shape   { c := *s; return &c }
func (s *TriangleShape) clone() Shape { c := *s; return &c }
func (s *StarShape) clone() Shape     { c := *s; return &c }
func (s *ImageShape) clone() Shape    { c := *s; return &c }
func (s *LineShape) clone() Shape {
	c := *s
	c.Points = append([]float64(nil), s.Points...)
	return &c
}

// PaintOf returns the Paint of closed shapes, or nil for line and image.
func PaintOf(s Shape) *Paint {
	if p, ok := s.(interface{ paint() *Paint }); ok {
		return p.paint()
	}
	return nil
}

// Element is one visual primitive. Array position in the document is its z-order.
type Element struct {
	ID        string
	X, Y      float64
	Rotation  float64 // degrees, clockwise
	Opacity   float64
	Visible   bool
	Locked    bool
	Draggable bool
	// ScaleX/ScaleY hold a gesture scale pending commit; 1 when committed.
	ScaleX, ScaleY float64
	Shape          Shape
}

func (e *Element) Kind() Kind {
	if e.Shape == nil {
		return ""
	}
	return e.Shape.Kind()
}

// Clone returns a deep copy.
func (e Element) Clone() Element {
	if e.Shape != nil {
		e.Shape = e.Shape.clone()
	}
	return e
}

// CloneElements deep-copies a list.
func CloneElements(in []Element) []Element {
	if in == nil {
		return nil
	}
	out := make([]Element, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// NewElement returns an element of kind with editor defaults and no id.
func NewElement(kind Kind) (Element, error) {
	el := Element{X: 100, Y: 100, Opacity: 1, Visible: true, Draggable: true, ScaleX: 1, ScaleY: 1}
	switch kind {
	case KindText:
		el.Shape = &TextShape{Paint: Paint{Fill: "#000000"}, Text: "Texto", FontFamily: "Arial", FontSize: 24, FontStyle: FontNormal, Align: AlignLeft}
	case KindRect:
		el.Shape = &RectShape{Paint: Paint{Fill: "#3b82f6"}, Width: 100, Height: 100}
	case KindCircle:
		el.Shape = &CircleShape{Paint: Paint{Fill: "#ef4444"}, Radius: 50}
	case KindTriangle:
		el.Shape = &TriangleShape{Paint: Paint{Fill: "#f59e0b"}, Radius: 60}
	case KindStar:
		el.Shape = &StarShape{Paint: Paint{Fill: "#eab308"}, NumPoints: 5, InnerRadius: 20, OuterRadius: 40}
	case KindLine:
		el.Shape = &LineShape{Stroke: "#000000", StrokeWidth: 2, Points: []float64{0, 0, 100, 0}}
	case KindImage:
		el.Shape = &ImageShape{Width: 200, Height: 200}
	default:
		return Element{}, &ValidationError{Fields: []FieldError{{Field: "kind", Reason: "unknown kind " + string(kind)}}}
	}
	return el, nil
}
