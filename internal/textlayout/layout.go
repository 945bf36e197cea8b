/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Text measurement and line breaking shared by the interactive layout and the
// PDF exporter. Both sides must call WrapText with the same Measurer so a text
// box breaks into the same lines on screen and on paper.

import (
	"strings"
	"sync"
	"unicode/utf8"

	"encarte/internal/domain"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

// Style describes a requested font. Size is in points.
type Style struct {
	Family string
	Size   float64
	Bold   bool
	Italic bool
}

// StyleOf returns the font style of a text element.
func StyleOf(t *domain.TextShape) Style {
	return Style{Family: t.FontFamily, Size: t.FontSize, Bold: t.FontStyle.Bold(), Italic: t.FontStyle.Italic()}
}

// Measurer returns the advance width of s in points.
type Measurer interface {
	Advance(s string, st Style) float64
}

// FaceMeasurer measures with OpenType faces at 72 DPI, so one pixel is one point.
// Families found in Lib use their own metrics; all others use the Go fonts.
// It is safe for concurrent use.
type FaceMeasurer struct {
	Lib *FontLibrary

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	fontKey
	size float64
}

func NewFaceMeasurer(lib *FontLibrary) *FaceMeasurer {
	return &FaceMeasurer{Lib: lib, faces: make(map[faceKey]font.Face)}
}

func (m *FaceMeasurer) Advance(s string, st Style) float64 {
	if s == "" {
		return 0
	}
	if st.Size <= 0 {
		st.Size = 12
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	face := m.faceLocked(st)
	if face == nil {
		// no face at all: fixed-pitch approximation
		return float64(utf8.RuneCountInString(s)) * st.Size * 0.6
	}
	return float64(font.MeasureString(face, s)) / 64
}

func (m *FaceMeasurer) faceLocked(st Style) font.Face {
	k := faceKey{fontKey: keyFor(st.Family, st.Bold, st.Italic), size: st.Size}
	if f, ok := m.faces[k]; ok {
		return f
	}
	otf := m.Lib.find(st)
	if otf == nil {
		var err error
		if otf, err = goFont(st.Bold, st.Italic); err != nil {
			return nil
		}
	}
	face, err := opentype.NewFace(otf, &opentype.FaceOptions{Size: st.Size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil
	}
	if m.faces == nil {
		m.faces = make(map[faceKey]font.Face)
	}
	m.faces[k] = face
	return face
}

// Forget drops cached faces, e.g. after new fonts were added to the library.
func (m *FaceMeasurer) Forget() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = make(map[faceKey]font.Face)
}

// Line is one laid out line.
type Line struct {
	Text  string
	Width float64
}

// WrapText splits text on explicit newlines, then greedily fills each paragraph
// up to maxWidth. A maxWidth <= 0 disables wrapping. A single word wider than
// maxWidth is broken between characters.
func WrapText(m Measurer, text string, maxWidth float64, st Style) []Line {
	var out []Line
	for _, para := range strings.Split(text, "\n") {
		if maxWidth <= 0 {
			out = append(out, Line{Text: para, Width: m.Advance(para, st)})
			continue
		}
		out = append(out, wrapParagraph(m, para, maxWidth, st)...)
	}
	return out
}

func wrapParagraph(m Measurer, para string, maxWidth float64, st Style) []Line {
	var lines []Line
	cur, curW, started := "", 0.0, false
	for _, w := range strings.Split(para, " ") {
		if started {
			candidate := cur + " " + w
			if cw := m.Advance(candidate, st); cw <= maxWidth {
				cur, curW = candidate, cw
				continue
			}
			lines = append(lines, Line{Text: cur, Width: curW})
		}
		if ww := m.Advance(w, st); ww <= maxWidth {
			cur, curW, started = w, ww, true
			continue
		}
		parts := breakWord(m, w, maxWidth, st)
		lines = append(lines, parts[:len(parts)-1]...)
		last := parts[len(parts)-1]
		cur, curW, started = last.Text, last.Width, true
	}
	return append(lines, Line{Text: cur, Width: curW})
}

// breakWord splits word into pieces that fit maxWidth, at least one rune each.
func breakWord(m Measurer, word string, maxWidth float64, st Style) []Line {
	var parts []Line
	runes := []rune(word)
	start := 0
	for start < len(runes) {
		end := start + 1
		for end < len(runes) && m.Advance(string(runes[start:end+1]), st) <= maxWidth {
			end++
		}
		piece := string(runes[start:end])
		parts = append(parts, Line{Text: piece, Width: m.Advance(piece, st)})
		start = end
	}
	if len(parts) == 0 {
		parts = append(parts, Line{})
	}
	return parts
}

// Block is a laid out text element.
type Block struct {
	Lines      []Line
	Width      float64 // bounding width if set, else the widest line
	LineHeight float64
	Height     float64
}

// Layout lays out a text element with m.
func Layout(m Measurer, t *domain.TextShape) Block {
	st := StyleOf(t)
	lines := WrapText(m, t.Text, t.Width, st)
	b := Block{Lines: lines, LineHeight: t.FontSize * domain.LineHeightFactor}
	b.Height = float64(len(lines)) * b.LineHeight
	if t.Width > 0 {
		b.Width = t.Width
	} else {
		for _, l := range lines {
			b.Width = max(b.Width, l.Width)
		}
	}
	return b
}

// AlignOffset returns the x offset of a line of lineWidth inside boxWidth.
func AlignOffset(a domain.Align, boxWidth, lineWidth float64) float64 {
	switch a {
	case domain.AlignCenter:
		return (boxWidth - lineWidth) / 2
	case domain.AlignRight:
		return boxWidth - lineWidth
	default:
		return 0
	}
}

// ElementMeasurer adapts a Measurer to domain.TextMeasurer.
type ElementMeasurer struct{ M Measurer }

func (e ElementMeasurer) MeasureText(t *domain.TextShape) (float64, int) {
	b := Layout(e.M, t)
	return b.Width, len(b.Lines)
}
