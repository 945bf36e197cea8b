/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package assets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// SystemFonts are treated as always available.
var SystemFonts = []string{
	"Arial", "Helvetica", "Times New Roman", "Times", "Courier New", "Courier",
	"Verdana", "Georgia", "Impact", "Tahoma", "Trebuchet MS",
}

// FontCache remembers which font families were resolved or failed.
// Names are compared case-insensitively. It is safe for concurrent use.
type FontCache struct {
	mu     sync.Mutex
	seed   []string
	loaded map[string]bool
	failed map[string]error
}

// NewFontCache returns a cache pre-seeded with seed, or SystemFonts when seed is empty.
func NewFontCache(seed ...string) *FontCache {
	if len(seed) == 0 {
		seed = SystemFonts
	}
	c := &FontCache{seed: append([]string(nil), seed...)}
	c.Reset()
	return c
}

func norm(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Reset forgets everything except the seed.
func (c *FontCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = make(map[string]bool, len(c.seed))
	c.failed = make(map[string]error)
	for _, s := range c.seed {
		c.loaded[norm(s)] = true
	}
}

// Has reports whether name was resolved or failed; either way it is not retried.
func (c *FontCache) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := norm(name)
	_, failed := c.failed[n]
	return c.loaded[n] || failed
}

func (c *FontCache) Loaded(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded[norm(name)]
}

func (c *FontCache) MarkLoaded(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := norm(name)
	c.loaded[n] = true
	delete(c.failed, n)
}

func (c *FontCache) MarkFailed(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed[norm(name)] = err
}

// Failure returns the recorded failure for name, or nil.
func (c *FontCache) Failure(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed[norm(name)]
}

// FontRef points at one face of a family.
type FontRef struct {
	Ref    string
	Bold   bool
	Italic bool
}

// FontSources maps a family name (lower case) to its face files.
// Families without an entry are assumed to be system fonts.
type FontSources map[string][]FontRef

// Register adds a face for family.
func (s FontSources) Register(family string, ref FontRef) {
	s[norm(family)] = append(s[norm(family)], ref)
}

func (s FontSources) Lookup(family string) ([]FontRef, bool) {
	refs, ok := s[norm(family)]
	return refs, ok
}

// ScanFontDir registers every .ttf/.otf in dir. The family is the file name up
// to the first '-', the rest selects the style: "Roboto-BoldItalic.ttf" is
// Roboto bold italic.
func ScanFontDir(dir string) (FontSources, error) {
	src := FontSources{}
	if strings.TrimSpace(dir) == "" {
		return src, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".ttf" || ext == ".otf" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		family, style, _ := strings.Cut(stem, "-")
		style = strings.ToLower(style)
		src.Register(family, FontRef{
			Ref:    filepath.Join(dir, name),
			Bold:   strings.Contains(style, "bold"),
			Italic: strings.Contains(style, "italic") || strings.Contains(style, "oblique"),
		})
	}
	return src, nil
}
