/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Template is the persisted form of a document: orientation plus the ordered element array.
type Template struct {
	Name       string      `json:"name,omitempty"`
	CanvasSize Orientation `json:"canvasSize"`
	Elements   []Element   `json:"elements"`
}

// Validate checks the document-level invariants the element decoder cannot see.
func (t Template) Validate() error {
	if !t.CanvasSize.Valid() {
		return &ValidationError{Fields: []FieldError{{Field: "canvasSize", Reason: fmt.Sprintf("unknown orientation %q", t.CanvasSize)}}}
	}
	seen := make(map[string]struct{}, len(t.Elements))
	for _, el := range t.Elements {
		if _, dup := seen[el.ID]; dup {
			return &ValidationError{ElementID: el.ID, Fields: []FieldError{{Field: "id", Reason: "duplicate id"}}}
		}
		seen[el.ID] = struct{}{}
	}
	return nil
}

// DecodeTemplate parses and validates a template.
func DecodeTemplate(data []byte) (Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return Template{}, err
	}
	if t.Elements == nil {
		t.Elements = []Element{}
	}
	if err := t.Validate(); err != nil {
		return Template{}, err
	}
	return t, nil
}

// EncodeTemplate renders t as indented JSON.
func EncodeTemplate(t Template) ([]byte, error) {
	if t.Elements == nil {
		t.Elements = []Element{}
	}
	return json.MarshalIndent(t, "", "  ")
}

// wireElement is the flat JSON shape of an element; which optional fields are
// present depends on kind.
type wireElement struct {
	ID        string   `json:"id"`
	Kind      Kind     `json:"kind"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Width     *float64 `json:"width,omitempty"`
	Height    *float64 `json:"height,omitempty"`
	Radius    *float64 `json:"radius,omitempty"`
	Corner    *float64 `json:"cornerRadius,omitempty"`
	Rotation  float64  `json:"rotation"`
	Opacity   *float64 `json:"opacity,omitempty"`
	Fill      *string  `json:"fill,omitempty"`
	Stroke    *string  `json:"stroke,omitempty"`
	StrokeW   *float64 `json:"strokeWidth,omitempty"`
	Visible   *bool    `json:"visible,omitempty"`
	Locked    *bool    `json:"locked,omitempty"`
	Draggable *bool    `json:"draggable,omitempty"`

	Text           *string  `json:"text,omitempty"`
	FontSize       *float64 `json:"fontSize,omitempty"`
	FontFamily     *string  `json:"fontFamily,omitempty"`
	FontStyle      *string  `json:"fontStyle,omitempty"`
	TextDecoration *string  `json:"textDecoration,omitempty"`
	Align          *string  `json:"align,omitempty"`

	Src *string `json:"src,omitempty"`

	Points []float64 `json:"points,omitempty"`

	NumPoints   *int     `json:"numPoints,omitempty"`
	InnerRadius *float64 `json:"innerRadius,omitempty"`
	OuterRadius *float64 `json:"outerRadius,omitempty"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MarshalJSON writes the flat template form. A pending scale is not persisted.
func (e Element) MarshalJSON() ([]byte, error) {
	w := wireElement{
		ID: e.ID, Kind: e.Kind(), X: e.X, Y: e.Y, Rotation: e.Rotation,
		Opacity: Ptr(e.Opacity), Visible: Ptr(e.Visible), Locked: Ptr(e.Locked), Draggable: Ptr(e.Draggable),
	}
	if p := PaintOf(e.Shape); p != nil {
		w.Fill = optString(p.Fill)
		w.Stroke = optString(p.Stroke)
		if p.Stroke != "" || p.StrokeWidth > 0 {
			w.StrokeW = Ptr(p.StrokeWidth)
		}
	}
	switch s := e.Shape.(type) {
	case *TextShape:
		w.Text = Ptr(s.Text)
		w.FontSize = Ptr(s.FontSize)
		w.FontFamily = Ptr(s.FontFamily)
		w.FontStyle = Ptr(string(s.FontStyle))
		w.Align = Ptr(string(s.Align))
		if s.Underline {
			w.TextDecoration = Ptr("underline")
		}
		if s.Width > 0 {
			w.Width = Ptr(s.Width)
		}
	case *RectShape:
		w.Width, w.Height = Ptr(s.Width), Ptr(s.Height)
		if s.CornerRadius > 0 {
			w.Corner = Ptr(s.CornerRadius)
		}
	case *ImageShape:
		w.Width, w.Height = Ptr(s.Width), Ptr(s.Height)
		w.Src = Ptr(s.Src)
		if s.CornerRadius > 0 {
			w.Corner = Ptr(s.CornerRadius)
		}
	case *CircleShape:
		w.Radius = Ptr(s.Radius)
	case *TriangleShape:
		w.Radius = Ptr(s.Radius)
	case *StarShape:
		w.NumPoints = Ptr(s.NumPoints)
		w.InnerRadius, w.OuterRadius = Ptr(s.InnerRadius), Ptr(s.OuterRadius)
	case *LineShape:
		w.Stroke = optString(s.Stroke)
		w.StrokeW = Ptr(s.StrokeWidth)
		w.Points = s.Points
	default:
		return nil, fmt.Errorf("element %s has no shape", e.ID)
	}
	return json.Marshal(w)
}

// UnmarshalJSON builds the kind's variant and applies the stored fields through
// Patch, so persisted data passes the same validation as interactive edits.
// Paint absent from the JSON stays unset.
func (e *Element) UnmarshalJSON(data []byte) error {
	var w wireElement
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if strings.TrimSpace(w.ID) == "" {
		return &ValidationError{Fields: []FieldError{{Field: "id", Reason: "missing id"}}}
	}
	el, err := NewElement(w.Kind)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.ElementID = w.ID
		}
		return err
	}
	el.ID = w.ID
	if ls, ok := el.Shape.(*LineShape); ok {
		ls.Stroke = ""
	} else if paint := PaintOf(el.Shape); paint != nil {
		*paint = Paint{}
	}
	// a stroke without width falls back to a hairline for closed shapes
	if w.Stroke != nil && w.StrokeW == nil && w.Kind != KindLine {
		w.StrokeW = Ptr(1.0)
	}

	p := Patch{
		X: &w.X, Y: &w.Y, Rotation: &w.Rotation, Opacity: w.Opacity,
		Visible: w.Visible, Locked: w.Locked, Draggable: w.Draggable,
		Fill: w.Fill, Stroke: w.Stroke, StrokeWidth: w.StrokeW,
		Width: w.Width, Height: w.Height, CornerRadius: w.Corner, Radius: w.Radius,
		InnerRadius: w.InnerRadius, OuterRadius: w.OuterRadius, NumPoints: w.NumPoints,
		Points: w.Points,
		Text: w.Text, FontFamily: w.FontFamily, FontSize: w.FontSize, FontStyle: w.FontStyle, Align: w.Align,
		Src: w.Src,
	}
	if w.TextDecoration != nil {
		p.Underline = Ptr(strings.Contains(*w.TextDecoration, "underline"))
	}
	if err := p.Apply(&el); err != nil {
		return err
	}
	*e = el
	return nil
}
