/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package assets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"encarte/internal/domain"
	applog "encarte/internal/log"
	"encarte/internal/textlayout"

	"golang.org/x/sync/errgroup"
)

// Host is the rendering surface the preloader waits on after loading.
type Host interface {
	// FontsReady blocks until the host reports every requested font usable.
	FontsReady(ctx context.Context) error
	// NextFrame blocks until the host has drawn one more frame.
	NextFrame(ctx context.Context) error
}

// NopHost is a headless host; both barriers return immediately unless ctx is done.
type NopHost struct{}

func (NopHost) FontsReady(ctx context.Context) error { return ctx.Err() }
func (NopHost) NextFrame(ctx context.Context) error  { return ctx.Err() }

// settleFrames is the number of redraw ticks awaited after the fonts barrier.
const settleFrames = 2

// Preloader resolves every font family and image source used by a document.
type Preloader struct {
	Loader  Loader
	Fonts   *FontCache
	Sources FontSources
	Library *textlayout.FontLibrary
	// Measurer, when set, drops its cached faces after new fonts were added.
	Measurer *textlayout.FaceMeasurer
	Images   *ImageCache
	Host     Host
	Log      *slog.Logger
	// Concurrency bounds parallel loads; 0 means 4.
	Concurrency int
}

// Report lists what a Preload call did. Failures carry *AssetLoadError values.
type Report struct {
	FontsLoaded  []string
	ImagesLoaded []string
	Failures     []error
}

func (r *Report) sort() {
	sort.Strings(r.FontsLoaded)
	sort.Strings(r.ImagesLoaded)
}

// Collect returns the distinct font families and image sources used by elements,
// in first-use order.
func Collect(elements []domain.Element) (fonts []string, images []string) {
	seenF := map[string]bool{}
	seenI := map[string]bool{}
	for _, el := range elements {
		switch s := el.Shape.(type) {
		case *domain.TextShape:
			if n := norm(s.FontFamily); n != "" && !seenF[n] {
				seenF[n] = true
				fonts = append(fonts, s.FontFamily)
			}
		case *domain.ImageShape:
			if s.Src != "" && !seenI[s.Src] {
				seenI[s.Src] = true
				images = append(images, s.Src)
			}
		}
	}
	return fonts, images
}

// Preload loads what is missing from the caches, then waits for the host
// fonts barrier and two frames. Individual asset failures are logged and
// reported; the returned error is only set for cancellation or host failure.
func (p *Preloader) Preload(ctx context.Context, elements []domain.Element) (Report, error) {
	p.defaults()
	l := applog.WithOperation(p.Log, "preload")
	fonts, images := Collect(elements)

	var (
		mu  sync.Mutex
		rep Report
	)
	record := func(f func()) {
		mu.Lock()
		defer mu.Unlock()
		f()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Concurrency)
	addedFonts := false

	for _, family := range fonts {
		if p.Fonts.Has(family) {
			continue
		}
		refs, ok := p.Sources.Lookup(family)
		if !ok {
			l.DebugContext(ctx, "no font source, using system font", slog.String("font", family))
			p.Fonts.MarkLoaded(family)
			continue
		}
		family := family
		g.Go(func() error {
			err := p.loadFont(gctx, family, refs)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			record(func() {
				if err != nil {
					rep.Failures = append(rep.Failures, err)
					return
				}
				addedFonts = true
				rep.FontsLoaded = append(rep.FontsLoaded, family)
			})
			if err != nil {
				p.Fonts.MarkFailed(family, err)
				l.WarnContext(ctx, "font unavailable, falling back", slog.String("font", family), slog.Any("err", err))
				return nil
			}
			p.Fonts.MarkLoaded(family)
			return nil
		})
	}

	for _, src := range images {
		if p.Images.Has(src) {
			continue
		}
		src := src
		g.Go(func() error {
			img, err := p.loadImage(gctx, src)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if err != nil {
				p.Images.MarkFailed(src, err)
				l.WarnContext(ctx, "image unavailable, element will be skipped", slog.String("src", shortRef(src)), slog.Any("err", err))
				record(func() { rep.Failures = append(rep.Failures, err) })
				return nil
			}
			p.Images.Put(img)
			record(func() { rep.ImagesLoaded = append(rep.ImagesLoaded, src) })
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return rep, err
	}
	if addedFonts && p.Measurer != nil {
		p.Measurer.Forget()
	}
	rep.sort()

	if err := p.Host.FontsReady(ctx); err != nil {
		return rep, fmt.Errorf("fonts ready: %w", err)
	}
	for i := 0; i < settleFrames; i++ {
		if err := p.Host.NextFrame(ctx); err != nil {
			return rep, fmt.Errorf("next frame: %w", err)
		}
	}
	l.DebugContext(ctx, "assets ready",
		slog.Int("fonts", len(rep.FontsLoaded)), slog.Int("images", len(rep.ImagesLoaded)), slog.Int("failed", len(rep.Failures)))
	return rep, nil
}

func (p *Preloader) defaults() {
	if p.Loader == nil {
		p.Loader = &DefaultLoader{}
	}
	if p.Fonts == nil {
		p.Fonts = NewFontCache()
	}
	if p.Sources == nil {
		p.Sources = FontSources{}
	}
	if p.Library == nil {
		p.Library = textlayout.NewFontLibrary()
	}
	if p.Images == nil {
		p.Images = NewImageCache()
	}
	if p.Host == nil {
		p.Host = NopHost{}
	}
	if p.Log == nil {
		p.Log = applog.WithComponent("assets")
	}
	if p.Concurrency <= 0 {
		p.Concurrency = 4
	}
}

// loadFont loads every face of family; one bad face fails the family.
func (p *Preloader) loadFont(ctx context.Context, family string, refs []FontRef) error {
	for _, r := range refs {
		data, err := p.Loader.Load(ctx, r.Ref)
		if err != nil {
			return &AssetLoadError{Kind: "font", Ref: r.Ref, Err: err}
		}
		if err := p.Library.Add(family, r.Bold, r.Italic, data); err != nil {
			return &AssetLoadError{Kind: "font", Ref: r.Ref, Err: err}
		}
	}
	return nil
}

func (p *Preloader) loadImage(ctx context.Context, src string) (*Image, error) {
	raw, err := p.Loader.Load(ctx, src)
	if err != nil {
		return nil, &AssetLoadError{Kind: "image", Ref: src, Err: err}
	}
	img, err := DecodeImage(src, raw)
	if err != nil {
		return nil, &AssetLoadError{Kind: "image", Ref: src, Err: err}
	}
	return img, nil
}
