/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a decoded bitmap ready for embedding. Data is JPEG when the source
// was JPEG and PNG otherwise; Type names the encoding as the PDF writer expects it.
type Image struct {
	Src    string
	Format string // decoder name: png, jpeg, gif, webp, bmp, tiff
	Type   string // "JPG" or "PNG"
	Width  int
	Height int
	Data   []byte
}

// DecodeImage decodes raw bytes in any registered format.
// JPEG is passed through; everything else is re-encoded as non-interlaced PNG.
func DecodeImage(src string, raw []byte) (*Image, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	out := &Image{Src: src, Format: format, Width: b.Dx(), Height: b.Dy()}
	if format == "jpeg" {
		if _, err := jpeg.DecodeConfig(bytes.NewReader(raw)); err == nil {
			out.Type, out.Data = "JPG", raw
			return out, nil
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	out.Type, out.Data = "PNG", buf.Bytes()
	return out, nil
}

// ImageSource resolves an image reference to a decoded bitmap.
type ImageSource interface {
	Lookup(src string) (*Image, bool)
}

// ImageCache holds decoded images by source reference. It is safe for concurrent use.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*Image
	failed map[string]error
}

func NewImageCache() *ImageCache {
	return &ImageCache{images: make(map[string]*Image), failed: make(map[string]error)}
}

func (c *ImageCache) Lookup(src string) (*Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[src]
	return img, ok
}

func (c *ImageCache) Put(img *Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[img.Src] = img
	delete(c.failed, img.Src)
}

func (c *ImageCache) MarkFailed(src string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed[src] = err
}

// Has reports whether src was resolved or failed.
func (c *ImageCache) Has(src string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.images[src]
	_, failed := c.failed[src]
	return ok || failed
}

// Failure returns the recorded failure for src, or nil.
func (c *ImageCache) Failure(src string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failed[src]
}

func (c *ImageCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = make(map[string]*Image)
	c.failed = make(map[string]error)
}
