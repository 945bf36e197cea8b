/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"math"

	"encarte/internal/domain"
)

// Gesture is the final state reported by an interactive transform: position,
// rotation and the scale applied on top of the stored geometry.
type Gesture struct {
	X, Y     float64
	Rotation float64
	ScaleX   float64
	ScaleY   float64
}

func gestureScale(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v == 0 {
		return 1
	}
	return math.Abs(v)
}

// ResolveTransform folds the gesture scale into el's intrinsic geometry and
// returns a copy with scale reset to 1. Every rescaled dimension is at least
// minSize; an axis with scale 1 is left exactly as stored. Radius kinds scale by the larger factor so they stay regular; lines
// scale their points per axis; text only rescales an explicit wrap width.
func ResolveTransform(el domain.Element, g Gesture, minSize float64) domain.Element {
	out := el.Clone()
	sx, sy := gestureScale(g.ScaleX), gestureScale(g.ScaleY)
	m := math.Max(sx, sy)
	scale := func(v, f float64) float64 {
		if f == 1 {
			return v
		}
		return math.Max(minSize, v*f)
	}

	switch s := out.Shape.(type) {
	case *domain.RectShape:
		s.Width = scale(s.Width, sx)
		s.Height = scale(s.Height, sy)
	case *domain.ImageShape:
		s.Width = scale(s.Width, sx)
		s.Height = scale(s.Height, sy)
	case *domain.CircleShape:
		s.Radius = scale(s.Radius, m)
	case *domain.TriangleShape:
		s.Radius = scale(s.Radius, m)
	case *domain.StarShape:
		s.InnerRadius = scale(s.InnerRadius, m)
		s.OuterRadius = scale(s.OuterRadius, m)
	case *domain.LineShape:
		for i := 0; i+1 < len(s.Points); i += 2 {
			s.Points[i] *= sx
			s.Points[i+1] *= sy
		}
	case *domain.TextShape:
		if s.Width > 0 {
			s.Width = scale(s.Width, sx)
		}
	}

	if finite(g.X) {
		out.X = g.X
	}
	if finite(g.Y) {
		out.Y = g.Y
	}
	if finite(g.Rotation) {
		out.Rotation = g.Rotation
	}
	out.ScaleX, out.ScaleY = 1, 1
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// CommitTransform resolves the gesture on element id and commits the result.
func (s *Store) CommitTransform(id string, g Gesture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, _, err := s.findLocked(id)
	if err != nil {
		return err
	}
	*el = ResolveTransform(*el, g, s.opts.MinSize)
	s.touchLocked()
	s.commitLocked("transform")
	return nil
}
