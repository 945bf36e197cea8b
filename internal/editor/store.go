/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor owns the element list of an editing session. Every write goes
// through Store so that history stays consistent: ephemeral updates change the
// live document only, commits also push one full snapshot.
package editor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"encarte/internal/domain"
	applog "encarte/internal/log"
	"encarte/internal/undo"
	"encarte/internal/vector"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("element not found")
	ErrLocked      = errors.New("element is locked")
	ErrNoDrag      = errors.New("no drag in progress")
	ErrInvalidZoom = errors.New("zoom must be positive")
)

// Direction of a z-order move.
type Direction string

const (
	Up     Direction = "up"
	Down   Direction = "down"
	Top    Direction = "top"
	Bottom Direction = "bottom"
)

// Options tune a Store. Zero values take the editor defaults.
type Options struct {
	HistoryCap int
	// HistoryBytes bounds the summed snapshot size; 0 means no limit.
	HistoryBytes int
	// HistoryCoalesce merges commits closer together than this into one undo step.
	HistoryCoalesce time.Duration
	GridSize        float64
	SnapThreshold   float64
	DuplicateOffset float64
	MinSize         float64
	// Canvas returns the logical canvas size of an orientation.
	Canvas func(domain.Orientation) vector.Size
	// Measurer sizes text boxes for snapping and hit tests.
	Measurer domain.TextMeasurer
	Log      *slog.Logger
	NewID    func() string
}

func (o *Options) defaults() {
	if o.HistoryCap <= 0 {
		o.HistoryCap = undo.DefaultMaxEntries
	}
	if o.GridSize <= 0 {
		o.GridSize = vector.DefaultGridSize
	}
	if o.SnapThreshold <= 0 {
		o.SnapThreshold = vector.DefaultSnapThreshold
	}
	if o.DuplicateOffset == 0 {
		o.DuplicateOffset = 20
	}
	if o.MinSize <= 0 {
		o.MinSize = 5
	}
	if o.Canvas == nil {
		o.Canvas = domain.Orientation.PageSize
	}
	if o.Log == nil {
		o.Log = applog.WithComponent("editor")
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
}

// Store is the single writer of a Document. It is safe for concurrent use,
// though the editor assumes one active session driving it.
type Store struct {
	opts Options

	mu      sync.Mutex
	doc     domain.Document
	hist    *undo.History
	version uint64
	drag    *dragSession
}

// NewStore returns a store holding an empty document of orientation o.
func NewStore(o domain.Orientation, opts Options) *Store {
	opts.defaults()
	s := &Store{opts: opts, doc: domain.NewDocument(o), hist: undo.NewHistory(undo.Config{
		MaxEntries:  opts.HistoryCap,
		MaxBytes:    opts.HistoryBytes,
		MinInterval: opts.HistoryCoalesce,
	})}
	s.resetHistoryLocked("new")
	return s
}

// snapshot is the history blob: orientation plus the element list.
type snapshot struct {
	Orientation domain.Orientation `json:"orientation"`
	Elements    []snapshotElement  `json:"elements"`
}

// snapshotElement keeps the pending scale, which the template format drops.
type snapshotElement struct {
	E  domain.Element `json:"e"`
	SX float64        `json:"sx"`
	SY float64        `json:"sy"`
}

func (s *Store) encodeLocked() ([]byte, error) {
	snap := snapshot{Orientation: s.doc.Orientation, Elements: make([]snapshotElement, len(s.doc.Elements))}
	for i, el := range s.doc.Elements {
		snap.Elements[i] = snapshotElement{E: el, SX: el.ScaleX, SY: el.ScaleY}
	}
	return json.Marshal(snap)
}

func decodeSnapshot(blob []byte) (domain.Orientation, []domain.Element, error) {
	var snap snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return "", nil, err
	}
	if len(snap.Elements) == 0 {
		return snap.Orientation, nil, nil
	}
	els := make([]domain.Element, len(snap.Elements))
	for i, se := range snap.Elements {
		els[i] = se.E
		els[i].ScaleX, els[i].ScaleY = se.SX, se.SY
	}
	return snap.Orientation, els, nil
}

func (s *Store) resetHistoryLocked(label string) {
	blob, err := s.encodeLocked()
	if err != nil {
		s.opts.Log.Error("encode snapshot", slog.Any("err", err))
		return
	}
	s.hist.Reset(undo.Snapshot{Blob: blob, TS: time.Now(), Label: label})
}

// commitLocked pushes the live state unless it equals the current snapshot.
func (s *Store) commitLocked(label string) {
	blob, err := s.encodeLocked()
	if err != nil {
		s.opts.Log.Error("encode snapshot", slog.String("op", label), slog.Any("err", err))
		return
	}
	if cur, ok := s.hist.Current(); ok && bytes.Equal(cur.Blob, blob) {
		return
	}
	s.hist.Push(undo.Snapshot{Blob: blob, TS: time.Now(), Label: label})
	s.opts.Log.Debug("commit", slog.String("op", label), slog.Int("elements", len(s.doc.Elements)))
}

func (s *Store) touchLocked() { s.version++ }

func (s *Store) canvasLocked() vector.Size { return s.opts.Canvas(s.doc.Orientation) }

// CanvasSize returns the logical size of the current canvas.
func (s *Store) CanvasSize() vector.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvasLocked()
}

func (s *Store) findLocked(id string) (*domain.Element, int, error) {
	i := s.doc.Index(id)
	if i < 0 {
		return nil, -1, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &s.doc.Elements[i], i, nil
}

// AddElement appends a new element of kind on top, selects it and commits.
// Rejected patch fields keep their defaults and are reported in a
// *domain.ValidationError while the element is still added. Only an unknown
// kind adds nothing.
func (s *Store) AddElement(kind domain.Kind, p domain.Patch) (string, error) {
	el, err := domain.NewElement(kind)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	el.ID = s.newIDLocked()
	perr := p.Apply(&el)
	s.doc.Elements = append(s.doc.Elements, el)
	s.doc.SelectedID = el.ID
	s.touchLocked()
	s.commitLocked("add")
	return el.ID, perr
}

func (s *Store) newIDLocked() string {
	for {
		id := s.opts.NewID()
		if id != "" && s.doc.Index(id) < 0 {
			return id
		}
	}
}

// UpdateElement merges p into the element without touching history.
func (s *Store) UpdateElement(id string, p domain.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, _, err := s.findLocked(id)
	if err != nil {
		return err
	}
	err = p.Apply(el)
	s.touchLocked()
	return err
}

// UpdateElementWithHistory merges p and commits.
func (s *Store) UpdateElementWithHistory(id string, p domain.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, _, err := s.findLocked(id)
	if err != nil {
		return err
	}
	err = p.Apply(el)
	s.touchLocked()
	s.commitLocked("update")
	return err
}

// DeleteElement removes the element, clears a matching selection and commits.
func (s *Store) DeleteElement(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, i, err := s.findLocked(id)
	if err != nil {
		return err
	}
	s.doc.Elements = append(s.doc.Elements[:i], s.doc.Elements[i+1:]...)
	if s.doc.SelectedID == id {
		s.doc.SelectedID = ""
	}
	if s.drag != nil && s.drag.id == id {
		s.drag = nil
	}
	s.touchLocked()
	s.commitLocked("delete")
	return nil
}

// DuplicateElement clones the element with a fresh id, offset by the duplicate
// offset, appends it on top, selects it and commits.
func (s *Store) DuplicateElement(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, _, err := s.findLocked(id)
	if err != nil {
		return "", err
	}
	c := src.Clone()
	c.ID = s.newIDLocked()
	c.X += s.opts.DuplicateOffset
	c.Y += s.opts.DuplicateOffset
	s.doc.Elements = append(s.doc.Elements, c)
	s.doc.SelectedID = c.ID
	s.touchLocked()
	s.commitLocked("duplicate")
	return c.ID, nil
}

// MoveElement changes the z-position of the element and commits.
func (s *Store) MoveElement(id string, dir Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, i, err := s.findLocked(id)
	if err != nil {
		return err
	}
	els := s.doc.Elements
	switch dir {
	case Up:
		if i < len(els)-1 {
			els[i], els[i+1] = els[i+1], els[i]
		}
	case Down:
		if i > 0 {
			els[i], els[i-1] = els[i-1], els[i]
		}
	case Top:
		el := els[i]
		copy(els[i:], els[i+1:])
		els[len(els)-1] = el
	case Bottom:
		el := els[i]
		copy(els[1:i+1], els[:i])
		els[0] = el
	default:
		return &domain.ValidationError{ElementID: id, Fields: []domain.FieldError{{Field: "direction", Reason: "unknown direction " + string(dir)}}}
	}
	s.touchLocked()
	s.commitLocked("move")
	return nil
}

// Undo restores the previous snapshot. It returns false at the oldest entry.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.hist.Undo()
	if !ok {
		return false
	}
	s.restoreLocked(snap)
	return true
}

// Redo restores the next snapshot. It returns false at the newest entry.
func (s *Store) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.hist.Redo()
	if !ok {
		return false
	}
	s.restoreLocked(snap)
	return true
}

// restoreLocked replaces the live elements with a fresh decode of snap, so
// later edits can never reach back into history.
func (s *Store) restoreLocked(snap undo.Snapshot) {
	o, els, err := decodeSnapshot(snap.Blob)
	if err != nil {
		s.opts.Log.Error("decode snapshot", slog.Any("err", err))
		return
	}
	s.doc.Orientation = o
	s.doc.Elements = els
	if s.doc.SelectedID != "" && s.doc.Index(s.doc.SelectedID) < 0 {
		s.doc.SelectedID = ""
	}
	s.drag = nil
	s.touchLocked()
}

func (s *Store) CanUndo() bool { return s.hist.CanUndo() }
func (s *Store) CanRedo() bool { return s.hist.CanRedo() }

// Select marks id as selected; an empty id clears the selection.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.doc.SelectedID = ""
		return nil
	}
	if _, _, err := s.findLocked(id); err != nil {
		return err
	}
	s.doc.SelectedID = id
	return nil
}

func (s *Store) ClearSelection() { _ = s.Select("") }

// Selected returns a copy of the selected element.
func (s *Store) Selected() (domain.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.SelectedID == "" {
		return domain.Element{}, false
	}
	el, _, err := s.findLocked(s.doc.SelectedID)
	if err != nil {
		return domain.Element{}, false
	}
	return el.Clone(), true
}

// SetOrientation switches the page size and commits. Geometry is kept as is.
func (s *Store) SetOrientation(o domain.Orientation) error {
	if !o.Valid() {
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "canvasSize", Reason: "unknown orientation " + string(o)}}}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Orientation = o
	s.touchLocked()
	s.commitLocked("orientation")
	return nil
}

// View settings never enter history.

func (s *Store) SetGridSnap(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.GridSnap = on
}

func (s *Store) SetShowGrid(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.ShowGrid = on
}

func (s *Store) SetZoom(z float64) error {
	if !(z > 0) {
		return ErrInvalidZoom
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Zoom = z
	return nil
}

// ToggleVisible flips visibility and commits.
func (s *Store) ToggleVisible(id string) error {
	return s.toggle(id, "visible", func(el *domain.Element) { el.Visible = !el.Visible })
}

// ToggleLocked flips the lock flag and commits. Locked elements cannot be dragged.
func (s *Store) ToggleLocked(id string) error {
	return s.toggle(id, "lock", func(el *domain.Element) { el.Locked = !el.Locked })
}

func (s *Store) toggle(id, label string, f func(*domain.Element)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, _, err := s.findLocked(id)
	if err != nil {
		return err
	}
	f(el)
	s.touchLocked()
	s.commitLocked(label)
	return nil
}

// Elements returns a deep copy of the element list, back to front.
func (s *Store) Elements() []domain.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneElements(s.doc.Elements)
}

// Element returns a copy of one element.
func (s *Store) Element(id string) (domain.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, _, err := s.findLocked(id)
	if err != nil {
		return domain.Element{}, false
	}
	return el.Clone(), true
}

// Document returns a deep copy of the document.
func (s *Store) Document() domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc
	d.Elements = domain.CloneElements(s.doc.Elements)
	return d
}

// Version increases on every mutation of the element list or orientation.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Load replaces the document with t and starts a fresh history.
func (s *Store) Load(t domain.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = domain.NewDocument(t.CanvasSize)
	s.doc.Elements = domain.CloneElements(t.Elements)
	s.drag = nil
	s.touchLocked()
	s.resetHistoryLocked("load")
	return nil
}

// Template returns the persisted form of the current document.
func (s *Store) Template(name string) domain.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	els := domain.CloneElements(s.doc.Elements)
	if els == nil {
		els = []domain.Element{}
	}
	return domain.Template{Name: name, CanvasSize: s.doc.Orientation, Elements: els}
}

// HistoryStats reports the summed snapshot size, entry count and cursor.
func (s *Store) HistoryStats() (size, entries, cursor int) { return s.hist.Stats() }

// History returns the snapshots and cursor, for persisting a session.
func (s *Store) History() ([]undo.Snapshot, int) { return s.hist.Entries() }

// RestoreHistory replaces the history and makes the snapshot at the cursor live.
func (s *Store) RestoreHistory(entries []undo.Snapshot, cursor int) error {
	if len(entries) == 0 {
		return errors.New("empty history")
	}
	for i, e := range entries {
		if _, _, err := decodeSnapshot(e.Blob); err != nil {
			return fmt.Errorf("history entry %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.Restore(entries, cursor)
	if cur, ok := s.hist.Current(); ok {
		s.restoreLocked(cur)
	}
	return nil
}

// ElementAt returns the top-most visible element whose box contains p.
// Rotated elements are tested in their own frame.
func (s *Store) ElementAt(p vector.Pt) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.doc.Elements) - 1; i >= 0; i-- {
		el := s.doc.Elements[i]
		if !el.Visible {
			continue
		}
		local := vector.RotateAbout(el.Rotation, vector.Pt{X: el.X, Y: el.Y}).Invert().Apply(p)
		if domain.LocalBounds(el, s.opts.Measurer).Contains(local) {
			return el.ID, true
		}
	}
	return "", false
}
