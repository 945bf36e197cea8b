/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontLibrary stores loaded OpenType fonts mapped by family/bold/italic.
// Family names are matched case-insensitively. It is safe for concurrent use.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[fontKey]*opentype.Font
}

type fontKey struct {
	family string
	bold   bool
	italic bool
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[fontKey]*opentype.Font)} }

func keyFor(family string, bold, italic bool) fontKey {
	return fontKey{family: strings.ToLower(strings.TrimSpace(family)), bold: bold, italic: italic}
}

// Add parses data as TTF/OTF and registers it.
func (fl *FontLibrary) Add(family string, bold, italic bool, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", family, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[fontKey]*opentype.Font)
	}
	fl.fonts[keyFor(family, bold, italic)] = f
	return nil
}

// LoadTTF loads a font file into the library under the given family/style.
func (fl *FontLibrary) LoadTTF(family string, bold, italic bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return fl.Add(family, bold, italic, data)
}

// Has reports whether any face of family is registered.
func (fl *FontLibrary) Has(family string) bool {
	return fl.find(Style{Family: family}) != nil
}

func (fl *FontLibrary) find(st Style) *opentype.Font {
	if fl == nil {
		return nil
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	if f, ok := fl.fonts[keyFor(st.Family, st.Bold, st.Italic)]; ok {
		return f
	}
	// same family, any style
	fam := keyFor(st.Family, false, false).family
	for k, f := range fl.fonts {
		if k.family == fam {
			return f
		}
	}
	return nil
}

var (
	goFontsOnce sync.Once
	goFonts     map[[2]bool]*opentype.Font
	goFontsErr  error
)

// goFont returns the bundled Go font for the style. It backs every family that
// has no registered face, so measurement is deterministic across machines.
func goFont(bold, italic bool) (*opentype.Font, error) {
	goFontsOnce.Do(func() {
		goFonts = make(map[[2]bool]*opentype.Font, 4)
		for k, ttf := range map[[2]bool][]byte{
			{false, false}: goregular.TTF,
			{true, false}:  gobold.TTF,
			{false, true}:  goitalic.TTF,
			{true, true}:   gobolditalic.TTF,
		} {
			f, err := opentype.Parse(ttf)
			if err != nil {
				goFontsErr = err
				return
			}
			goFonts[k] = f
		}
	})
	if goFontsErr != nil {
		return nil, goFontsErr
	}
	return goFonts[[2]bool{bold, italic}], nil
}
