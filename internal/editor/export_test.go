/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"testing"

	"encarte/internal/domain"
)

func TestExportGateRunsPrepareThenRender(t *testing.T) {
	s := newTestStore()
	_, _ = s.AddElement(domain.KindText, domain.Patch{})
	g := NewExportGate(s)

	var order []string
	err := g.Run(context.Background(),
		func(ctx context.Context, els []domain.Element) error {
			order = append(order, "prepare")
			if len(els) != 1 {
				t.Fatalf("prepare saw %d elements", len(els))
			}
			return nil
		},
		func(ctx context.Context, snap ExportSnapshot) error {
			order = append(order, "render")
			if snap.Canvas != domain.A4Landscape {
				t.Fatalf("canvas = %+v", snap.Canvas)
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "prepare" {
		t.Fatalf("order = %v", order)
	}
	if g.Busy() {
		t.Fatalf("gate should be released")
	}
}

func TestExportGateRejectsConcurrentRun(t *testing.T) {
	s := newTestStore()
	g := NewExportGate(s)
	var inner error
	_ = g.Run(context.Background(), nil, func(ctx context.Context, snap ExportSnapshot) error {
		inner = g.Run(ctx, nil, func(context.Context, ExportSnapshot) error { return nil })
		return nil
	})
	if !errors.Is(inner, ErrExportInFlight) {
		t.Fatalf("expected ErrExportInFlight, got %v", inner)
	}
}

func TestExportGateStaleDocument(t *testing.T) {
	s := newTestStore()
	g := NewExportGate(s)
	rendered := false
	err := g.Run(context.Background(),
		func(ctx context.Context, els []domain.Element) error {
			_, _ = s.AddElement(domain.KindRect, domain.Patch{})
			return nil
		},
		func(context.Context, ExportSnapshot) error {
			rendered = true
			return nil
		})
	if !errors.Is(err, ErrStaleExport) || rendered {
		t.Fatalf("err=%v rendered=%v", err, rendered)
	}
}

func TestExportSnapshotIsDeepCopy(t *testing.T) {
	s := newTestStore()
	id, _ := s.AddElement(domain.KindRect, domain.Patch{})
	snap := s.ExportSnapshot()
	snap.Elements[0].Shape.(*domain.RectShape).Width = 1
	el, _ := s.Element(id)
	if el.Shape.(*domain.RectShape).Width != 100 {
		t.Fatalf("snapshot shares state with the store")
	}
}
