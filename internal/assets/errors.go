/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package assets resolves the fonts and images referenced by a document before
// it is measured or exported.
package assets

import (
	"errors"
	"fmt"
)

// ErrTooLarge is returned when an asset exceeds the configured size cap.
var ErrTooLarge = errors.New("asset too large")

// AssetLoadError reports a font or image that could not be resolved.
// It is recorded and logged; it never aborts a preload.
type AssetLoadError struct {
	Kind string // "font" or "image"
	Ref  string
	Err  error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("load %s %s: %v", e.Kind, shortRef(e.Ref), e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }

// shortRef keeps data URIs out of log lines.
func shortRef(ref string) string {
	if len(ref) > 64 {
		return ref[:61] + "..."
	}
	return ref
}
