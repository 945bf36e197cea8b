/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "encarte/internal/vector"

// Orientation selects the fixed page size of a document.
type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
)

// A4 in points.
var (
	A4Landscape = vector.Size{W: 842, H: 595}
	A4Portrait  = vector.Size{W: 595, H: 842}
)

func (o Orientation) Valid() bool { return o == Landscape || o == Portrait }

// PageSize returns the A4 page size for o; unknown values fall back to landscape.
func (o Orientation) PageSize() vector.Size {
	if o == Portrait {
		return A4Portrait
	}
	return A4Landscape
}

// Document is the state of one editing session. Elements are ordered back to front.
type Document struct {
	Orientation Orientation
	Elements    []Element
	SelectedID  string
	GridSnap    bool
	ShowGrid    bool
	// Zoom only affects the view; stored geometry is always in page units.
	Zoom float64
}

// NewDocument returns an empty document of orientation o.
func NewDocument(o Orientation) Document {
	if !o.Valid() {
		o = Landscape
	}
	return Document{Orientation: o, Zoom: 1}
}

// Index returns the z-position of id, or -1.
func (d *Document) Index(id string) int {
	for i := range d.Elements {
		if d.Elements[i].ID == id {
			return i
		}
	}
	return -1
}
