/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"encarte/internal/assets"
	"encarte/internal/backend"
	"encarte/internal/config"
	"encarte/internal/crash"
	"encarte/internal/domain"
	"encarte/internal/editor"
	"encarte/internal/export"
	applog "encarte/internal/log"
	"encarte/internal/storage"
	"encarte/internal/textlayout"
	"encarte/internal/vector"
)

// app bundles the services the commands share.
type app struct {
	cfg      config.AppConfig
	secret   string
	out      io.Writer
	log      *slog.Logger
	fonts    *textlayout.FontLibrary
	measurer *textlayout.FaceMeasurer
	images   *assets.ImageCache
	preload  *assets.Preloader
	pdf      *export.PDFExporter
}

func newApp(cfg config.AppConfig, secret string, out io.Writer) (*app, error) {
	sources, err := assets.ScanFontDir(cfg.Export.FontDir)
	if err != nil {
		return nil, fmt.Errorf("scan font dir: %w", err)
	}
	lib := textlayout.NewFontLibrary()
	m := textlayout.NewFaceMeasurer(lib)
	images := assets.NewImageCache()
	a := &app{
		cfg: cfg, secret: secret, out: out,
		log:      applog.WithComponent("cli"),
		fonts:    lib,
		measurer: m,
		images:   images,
	}
	a.preload = &assets.Preloader{
		Loader:   assets.NewDefaultLoader(cfg.Assets.AssetTimeout(), cfg.Assets.MaxImageBytes),
		Fonts:    assets.NewFontCache(),
		Sources:  sources,
		Library:  lib,
		Measurer: m,
		Images:   images,
		Host:     assets.NopHost{},
	}
	a.pdf = &export.PDFExporter{Measurer: m, Images: images, Author: cfg.Export.Author}
	return a, nil
}

func (a *app) canvas(o domain.Orientation) vector.Size {
	w, h := a.cfg.Canvas.Size(o == domain.Portrait)
	return vector.Size{W: w, H: h}
}

func (a *app) storeOptions() editor.Options {
	e := a.cfg.Editor
	return editor.Options{
		HistoryCap:      e.HistoryCap,
		HistoryBytes:    e.HistoryBytes,
		HistoryCoalesce: e.HistoryCoalesce(),
		GridSize:        e.GridSize,
		SnapThreshold:   e.SnapThreshold,
		DuplicateOffset: e.DuplicateOffset,
		MinSize:         e.MinSize,
		Canvas:          a.canvas,
		Measurer:        textlayout.ElementMeasurer{M: a.measurer},
	}
}

// loadTemplate reads a template file, naming it after the file when unnamed.
func (a *app) loadTemplate(path string) (domain.Template, error) {
	t, err := storage.LoadTemplate(path)
	if err != nil {
		return domain.Template{}, err
	}
	if t.Name == "" {
		base := filepath.Base(path)
		t.Name = base[:len(base)-len(filepath.Ext(base))]
	}
	return t, nil
}

// loadForExport is loadTemplate with relative image paths made absolute
// against the template's own directory.
func (a *app) loadForExport(path string) (domain.Template, error) {
	t, err := a.loadTemplate(path)
	if err != nil {
		return domain.Template{}, err
	}
	if n := assets.ResolveImageRefs(t.Elements, filepath.Dir(path)); n > 0 {
		a.log.Debug("resolved image paths", slog.String("template", t.Name), slog.Int("images", n))
	}
	return t, nil
}

func (a *app) validate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	t, err := storage.DecodeTemplateJSON(data)
	if err != nil {
		return err
	}
	counts := map[domain.Kind]int{}
	for _, el := range t.Elements {
		counts[el.Kind()]++
	}
	_, _ = fmt.Fprintf(a.out, "%s: %s, %d elements\n", path, t.CanvasSize, len(t.Elements))
	for _, k := range domain.Kinds {
		if n := counts[k]; n > 0 {
			_, _ = fmt.Fprintf(a.out, "  %-9s %d\n", k, n)
		}
	}
	return nil
}

// exportOne loads a template into an editor store and exports it through the
// store's export gate, preloading assets first.
func (a *app) exportOne(ctx context.Context, in, out, preset string) error {
	p, err := export.ParsePreset(preset)
	if err != nil {
		return err
	}
	t, err := a.loadForExport(in)
	if err != nil {
		return err
	}
	ctx = applog.ContextWithDocument(ctx, t.Name)
	store := editor.NewStore(t.CanvasSize, a.storeOptions())
	if err := store.Load(t); err != nil {
		return err
	}
	crash.Watch(&crash.Session{Path: in, Current: func() (domain.Template, bool) { return store.Template(t.Name), true }})
	defer crash.Watch(nil)

	gate := editor.NewExportGate(store)
	var res export.Result
	err = gate.Run(ctx,
		func(ctx context.Context, els []domain.Element) error {
			rep, err := a.preload.Preload(ctx, els)
			for _, f := range rep.Failures {
				_, _ = fmt.Fprintf(a.out, "warning: %v\n", f)
			}
			return err
		},
		func(ctx context.Context, snap editor.ExportSnapshot) error {
			job := export.Job{
				Title:    t.Name,
				Canvas:   snap.Canvas,
				Page:     export.PageSize(p, snap.Orientation, snap.Canvas),
				Elements: snap.Elements,
			}
			var err error
			res, err = a.pdf.ExportFile(ctx, job, out)
			return err
		})
	if err != nil {
		return err
	}
	a.report(t.Name, res)
	_, _ = fmt.Fprintf(a.out, "Wrote %s\n", out)
	return nil
}

func (a *app) batch(ctx context.Context, out, preset string, files []string) error {
	p, err := export.ParsePreset(preset)
	if err != nil {
		return err
	}
	var templates []domain.Template
	var all []domain.Element
	for _, f := range files {
		t, err := a.loadForExport(f)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		templates = append(templates, t)
		all = append(all, t.Elements...)
	}
	rep, err := a.preload.Preload(applog.ContextWithDocument(ctx, filepath.Base(out)), all)
	if err != nil {
		return err
	}
	for _, f := range rep.Failures {
		_, _ = fmt.Fprintf(a.out, "warning: %v\n", f)
	}
	var buf bytes.Buffer
	results, err := export.BatchExport(ctx, a.pdf, templates, export.BatchOptions{Preset: p, Canvas: a.canvas}, &buf)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	for i, r := range results {
		a.report(templates[i].Name, r)
	}
	_, _ = fmt.Fprintf(a.out, "Wrote %d pages to %s\n", len(results), out)
	return nil
}

func (a *app) report(name string, r export.Result) {
	_, _ = fmt.Fprintf(a.out, "%s: %d drawn", name, r.Drawn)
	if len(r.Skipped) > 0 {
		_, _ = fmt.Fprintf(a.out, ", %d skipped", len(r.Skipped))
	}
	_, _ = fmt.Fprintln(a.out)
	for _, s := range r.Skipped {
		_, _ = fmt.Fprintf(a.out, "  skipped %s (%s): %s\n", s.ID, s.Kind, s.Reason)
	}
}

func (a *app) openLibrary(ctx context.Context) (*storage.Library, error) {
	path, err := storage.DefaultLibraryPath()
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("ENC_LIBRARY"); v != "" {
		path = v
	}
	return storage.OpenLibrary(ctx, path)
}

func (a *app) importTemplate(ctx context.Context, path string) error {
	t, err := a.loadTemplate(path)
	if err != nil {
		return err
	}
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()
	if err := lib.Put(ctx, t); err != nil {
		return err
	}
	// a fresh import starts a new editing history
	store := editor.NewStore(t.CanvasSize, a.storeOptions())
	if err := store.Load(t); err != nil {
		return err
	}
	entries, cursor := store.History()
	if err := lib.SaveHistory(ctx, t.Name, entries, cursor); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Imported %s (%d elements)\n", t.Name, len(t.Elements))
	return nil
}

// openSession loads a library template into a store, resuming its stored
// editing history when there is one.
func (a *app) openSession(ctx context.Context, lib *storage.Library, name string) (*editor.Store, error) {
	t, err := lib.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	store := editor.NewStore(t.CanvasSize, a.storeOptions())
	entries, cursor, err := lib.LoadHistory(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(entries) == 0 {
		return store, store.Load(t)
	}
	if err := store.RestoreHistory(entries, cursor); err != nil {
		a.log.WarnContext(ctx, "stored history unusable, starting over", slog.String("template", name), slog.Any("err", err))
		return store, store.Load(t)
	}
	return store, nil
}

// closeSession writes the store's document and history back to the library.
func (a *app) closeSession(ctx context.Context, lib *storage.Library, name string, store *editor.Store) error {
	if err := lib.Put(ctx, store.Template(name)); err != nil {
		return err
	}
	entries, cursor := store.History()
	return lib.SaveHistory(ctx, name, entries, cursor)
}

// edit applies a JSON patch such as {"fill":"#ff0000","x":40} to one element
// of a library template as a single undoable step.
func (a *app) edit(ctx context.Context, name, id, patchJSON string) error {
	var p domain.Patch
	if err := json.Unmarshal([]byte(patchJSON), &p); err != nil {
		return fmt.Errorf("patch: %w", err)
	}
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()
	store, err := a.openSession(ctx, lib, name)
	if err != nil {
		return err
	}
	editErr := store.UpdateElementWithHistory(id, p)
	var ve *domain.ValidationError
	if editErr != nil && !errors.As(editErr, &ve) {
		return editErr
	}
	if err := a.closeSession(ctx, lib, name, store); err != nil {
		return err
	}
	if ve != nil {
		_, _ = fmt.Fprintf(a.out, "warning: %v\n", ve)
	}
	_, _ = fmt.Fprintf(a.out, "Edited %s/%s\n", name, id)
	return nil
}

// step moves a library template one step back (undo) or forward in its history.
func (a *app) step(ctx context.Context, name string, undo bool) error {
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()
	store, err := a.openSession(ctx, lib, name)
	if err != nil {
		return err
	}
	moved, verb := false, "redo"
	if undo {
		moved, verb = store.Undo(), "undo"
	} else {
		moved = store.Redo()
	}
	if !moved {
		_, _ = fmt.Fprintf(a.out, "Nothing to %s for %s\n", verb, name)
		return nil
	}
	if err := a.closeSession(ctx, lib, name, store); err != nil {
		return err
	}
	_, cursor, _ := store.HistoryStats()
	_, _ = fmt.Fprintf(a.out, "%s %s: now at step %d\n", verb, name, cursor)
	return nil
}

func (a *app) history(ctx context.Context, name string) error {
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()
	store, err := a.openSession(ctx, lib, name)
	if err != nil {
		return err
	}
	entries, cursor := store.History()
	for i, e := range entries {
		mark := " "
		if i == cursor {
			mark = "*"
		}
		_, _ = fmt.Fprintf(a.out, "%s %3d  %-10s %s\n", mark, i, e.Label, e.TS.Local().Format("2006-01-02 15:04:05"))
	}
	size, n, _ := store.HistoryStats()
	_, _ = fmt.Fprintf(a.out, "%d steps, %d bytes\n", n, size)
	return nil
}

func (a *app) remove(ctx context.Context, name string) error {
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()
	if err := lib.Delete(ctx, name); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Removed %s\n", name)
	return nil
}

// reindex checks the library database and rebuilds its search index.
func (a *app) reindex(ctx context.Context) error {
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()
	if err := lib.Check(ctx); err != nil {
		return err
	}
	if err := lib.Reindex(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Reindexed %s\n", lib.Path())
	return nil
}

func (a *app) list(ctx context.Context) error {
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()
	items, err := lib.List(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		_, _ = fmt.Fprintf(a.out, "%-24s %-9s %3d elements  %s\n", it.Name, it.Orientation, it.Elements, it.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func (a *app) search(ctx context.Context, text string) error {
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()
	hits, err := lib.Search(ctx, storage.SearchQuery{Text: text})
	if err != nil {
		return err
	}
	for _, h := range hits {
		_, _ = fmt.Fprintf(a.out, "%s/%s: %s\n", h.Template, h.ElementID, h.Text)
	}
	return nil
}

func (a *app) saveAs(ctx context.Context, name, path string) error {
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()
	t, err := lib.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := storage.SaveTemplate(path, t); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Saved %s to %s\n", name, path)
	return nil
}

var errNoBackend = errors.New("backend dsn not configured (set backend.dsn or ENC_PG_DSN)")

func (a *app) openBackend(ctx context.Context) (*backend.TemplateRepo, error) {
	if a.cfg.Backend.DSN == "" {
		return nil, errNoBackend
	}
	repo, err := backend.Open(ctx, a.cfg.Backend.DSN, a.secret, a.cfg.Backend.Timeout())
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}

func (a *app) pull(ctx context.Context, name string) error {
	repo, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()
	t, err := repo.Get(ctx, name)
	if err != nil {
		return err
	}
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()
	if err := lib.Put(ctx, t); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Pulled %s (%d elements)\n", name, len(t.Elements))
	return nil
}

func (a *app) push(ctx context.Context, name string) error {
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()
	t, err := lib.Get(ctx, name)
	if err != nil {
		return err
	}
	repo, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()
	v, err := repo.Put(ctx, t)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Pushed %s as version %d\n", name, v)
	return nil
}

func (a *app) remoteSearch(ctx context.Context, q string) error {
	repo, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()
	names, err := repo.Search(ctx, q)
	if err != nil {
		return err
	}
	for _, n := range names {
		_, _ = fmt.Fprintln(a.out, n)
	}
	return nil
}

func (a *app) remoteRemove(ctx context.Context, name string) error {
	repo, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.Delete(ctx, name); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Removed %s from the backend\n", name)
	return nil
}

func (a *app) remote(ctx context.Context) error {
	repo, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()
	entries, err := repo.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		_, _ = fmt.Fprintf(a.out, "%-24s %-9s v%-4d %s\n", e.Name, e.Orientation, e.Version, e.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
