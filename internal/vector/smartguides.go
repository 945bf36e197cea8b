/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Smart guides and snapping for dragged elements. UI-agnostic and deterministic.
//
// Every candidate is tested independently in a fixed order and every match
// moves the element so the matched feature sits exactly on the target. When
// several candidates on the same axis match, the one tested last wins; there
// is no nearest-first priority.

import (
	"math"
	"strconv"
)

const (
	DefaultSnapThreshold = 5
	DefaultGridSize      = 20
)

// SnapOptions controls grid rounding and the alignment threshold.
type SnapOptions struct {
	// Threshold is the exclusive distance below which a candidate matches.
	Threshold float64
	// GridSnap rounds the position to GridSize before any alignment test.
	GridSnap bool
	GridSize float64
}

// Anchor is a sibling element box. Hidden anchors are ignored.
type Anchor struct {
	Rect   Rect
	Hidden bool
}

// Moving is the dragged element: its origin and its bounding box at that origin.
// For radius-based kinds the origin is the center, so Box.X != Pos.X.
type Moving struct {
	Pos Pt
	Box Rect
}

// GuideLine describes a visual guide generated during a snap alignment.
// Orientation is "vertical" or "horizontal".
// Kind indicates which features aligned: "edge" or "center".
// Source is "canvas" or the index of the matched anchor.
// Position is the x (vertical) or y (horizontal) coordinate of the guide.
type GuideLine struct {
	Orientation string
	Kind        string
	Source      string
	Position    float64
	From        Pt
	To          Pt
}

// ComputeSmartGuides snaps m against the canvas and the anchors and returns the
// corrected element plus the guides of every matching test.
func ComputeSmartGuides(m Moving, canvas Size, anchors []Anchor, opts SnapOptions) (Moving, []GuideLine) {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultSnapThreshold
	}
	if opts.GridSnap {
		grid := opts.GridSize
		if grid <= 0 {
			grid = DefaultGridSize
		}
		gx := math.Round(m.Pos.X/grid) * grid
		gy := math.Round(m.Pos.Y/grid) * grid
		m.Box = m.Box.Offset(gx-m.Pos.X, gy-m.Pos.Y)
		m.Pos = Pt{gx, gy}
	}

	// derived coordinates are taken once, before any correction
	b := m.Box
	left, right, cx := b.X, b.Right(), b.CenterX()
	top, bottom, cy := b.Y, b.Bottom(), b.CenterY()
	canvasRect := Rect{W: canvas.W, H: canvas.H}

	s := snapper{m: m, threshold: opts.Threshold}

	s.x(cx, canvas.W/2, b.W/2, "center", "canvas", canvasRect)
	s.y(cy, canvas.H/2, b.H/2, "center", "canvas", canvasRect)
	s.x(left, 0, 0, "edge", "canvas", canvasRect)
	s.x(right, canvas.W, b.W, "edge", "canvas", canvasRect)
	s.y(top, 0, 0, "edge", "canvas", canvasRect)
	s.y(bottom, canvas.H, b.H, "edge", "canvas", canvasRect)

	for i, a := range anchors {
		if a.Hidden {
			continue
		}
		src := strconv.Itoa(i)
		r := a.Rect
		s.x(left, r.X, 0, "edge", src, r)
		s.x(right, r.Right(), b.W, "edge", src, r)
		s.x(cx, r.CenterX(), b.W/2, "center", src, r)
		s.y(top, r.Y, 0, "edge", src, r)
		s.y(bottom, r.Bottom(), b.H, "edge", src, r)
		s.y(cy, r.CenterY(), b.H/2, "center", src, r)
	}
	return s.m, s.guides
}

type snapper struct {
	m         Moving
	threshold float64
	guides    []GuideLine
}

// x tests one vertical candidate; offset is the feature's distance from the box's left edge.
func (s *snapper) x(feature, target, offset float64, kind, src string, against Rect) {
	if math.Abs(feature-target) >= s.threshold {
		return
	}
	dx := (target - offset) - s.m.Box.X
	s.m.Box.X = FloatRound(target-offset, 3)
	s.m.Pos.X = FloatRound(s.m.Pos.X+dx, 3)
	s.guides = append(s.guides, guideForVertical(target, s.m.Box, against, kind, src))
}

// y tests one horizontal candidate; offset is the feature's distance from the box's top edge.
func (s *snapper) y(feature, target, offset float64, kind, src string, against Rect) {
	if math.Abs(feature-target) >= s.threshold {
		return
	}
	dy := (target - offset) - s.m.Box.Y
	s.m.Box.Y = FloatRound(target-offset, 3)
	s.m.Pos.Y = FloatRound(s.m.Pos.Y+dy, 3)
	s.guides = append(s.guides, guideForHorizontal(target, s.m.Box, against, kind, src))
}

func guideForVertical(x float64, a Rect, b Rect, kind, src string) GuideLine {
	minY := math.Min(a.Y, b.Y)
	maxY := math.Max(a.Y+a.H, b.Y+b.H)
	x = FloatRound(x, 3)
	return GuideLine{
		Orientation: "vertical",
		Kind:        kind,
		Source:      src,
		Position:    x,
		From:        Pt{x, minY},
		To:          Pt{x, maxY},
	}
}

func guideForHorizontal(y float64, a Rect, b Rect, kind, src string) GuideLine {
	minX := math.Min(a.X, b.X)
	maxX := math.Max(a.X+a.W, b.X+b.W)
	y = FloatRound(y, 3)
	return GuideLine{
		Orientation: "horizontal",
		Kind:        kind,
		Source:      src,
		Position:    y,
		From:        Pt{minX, y},
		To:          Pt{maxX, y},
	}
}
