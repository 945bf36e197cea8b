/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */


package assets

import (
	"path/filepath"
	"strings"

	"encarte/internal/domain"
)

// IsLocalRef reports whether ref names a file on disk rather than a URL or data URI.
func IsLocalRef(ref string) bool {
	s := strings.ToLower(strings.TrimSpace(ref))
	if s == "" || strings.HasPrefix(s, "data:") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return false
	}
	return true
}

// LocalPath returns the file path of a local ref, joined to baseDir when relative.
func LocalPath(ref, baseDir string) string {
	p := strings.TrimPrefix(strings.TrimSpace(ref), "file://")
	if !filepath.IsAbs(p) && baseDir != "" {
		p = filepath.Join(baseDir, p)
	}
	return p
}

// ResolveImageRefs rewrites relative image sources in elements to absolute
// paths under baseDir, so caches keyed by source stay distinct across
// templates from different directories. It returns the number rewritten.
func ResolveImageRefs(elements []domain.Element, baseDir string) int {
	if baseDir == "" {
		return 0
	}
	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}
	n := 0
	for i := range elements {
		img, ok := elements[i].Shape.(*domain.ImageShape)
		if !ok || !IsLocalRef(img.Src) {
			continue
		}
		p := LocalPath(img.Src, baseDir)
		if p != img.Src {
			img.Src = p
			n++
		}
	}
	return n
}
