/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"fmt"
	"strconv"
	"strings"
)

// Styles and paint definitions.

type Color struct{ R, G, B, A uint8 }

var (
	Black       = Color{0, 0, 0, 255}
	White       = Color{255, 255, 255, 255}
	Transparent = Color{0, 0, 0, 0}
)

// ParseHex parses #rgb, #rrggbb and #rrggbbaa (leading '#' optional).
func ParseHex(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]}) + "ff"
	case 6:
		h += "ff"
	case 8:
	default:
		return Color{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q", s)
	}
	return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// Hex renders c as #rrggbb, or #rrggbbaa when not fully opaque.
func (c Color) Hex() string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

type Fill struct {
	Color   Color
	Enabled bool
}

type LineCap uint8

const (
	CapButt LineCap = iota
	CapRound
	CapSquare
)

type LineJoin uint8

const (
	JoinMiter LineJoin = iota
	JoinRound
	JoinBevel
)

type Stroke struct {
	Color   Color
	Width   float64
	Cap     LineCap
	Join    LineJoin
	Enabled bool
}

// ResolvePaint turns optional hex fill/stroke strings into paint definitions.
// Empty strings disable the corresponding paint; a stroke needs a positive width.
func ResolvePaint(fill, stroke string, strokeWidth float64) (Fill, Stroke, error) {
	var f Fill
	var s Stroke
	if fill != "" {
		c, err := ParseHex(fill)
		if err != nil {
			return f, s, err
		}
		f = Fill{Color: c, Enabled: c.A > 0}
	}
	if stroke != "" && strokeWidth > 0 {
		c, err := ParseHex(stroke)
		if err != nil {
			return f, s, err
		}
		s = Stroke{Color: c, Width: strokeWidth, Enabled: c.A > 0}
	}
	return f, s, nil
}

// PaintOp returns the PDF paint operator for the enabled paints: "F", "D", "FD" or "".
func PaintOp(f Fill, s Stroke) string {
	switch {
	case f.Enabled && s.Enabled:
		return "FD"
	case f.Enabled:
		return "F"
	case s.Enabled:
		return "D"
	default:
		return ""
	}
}
