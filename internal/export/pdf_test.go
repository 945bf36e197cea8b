/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"encarte/internal/assets"
	"encarte/internal/domain"
	"encarte/internal/textlayout"
	"encarte/internal/vector"
)

func element(t *testing.T, id string, k domain.Kind, p domain.Patch) domain.Element {
	t.Helper()
	el, err := domain.NewElement(k)
	if err != nil {
		t.Fatal(err)
	}
	el.ID = id
	if err := p.Apply(&el); err != nil {
		t.Fatalf("patch %s: %v", id, err)
	}
	return el
}

func plainExporter() *PDFExporter {
	return &PDFExporter{Measurer: textlayout.NewFaceMeasurer(nil), Images: assets.NewImageCache(), DisableCompression: true}
}

func render(t *testing.T, e *PDFExporter, job Job) (Result, string) {
	t.Helper()
	var buf bytes.Buffer
	res, err := e.Export(context.Background(), job, &buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "%PDF-") {
		t.Fatalf("output is not a PDF")
	}
	return res, buf.String()
}

func TestRectAtIdentityScale(t *testing.T) {
	rect := element(t, "r1", domain.KindRect, domain.Patch{X: domain.Ptr(10.0), Y: domain.Ptr(10.0), Width: domain.Ptr(100.0), Height: domain.Ptr(50.0)})
	res, out := render(t, plainExporter(), Job{Canvas: domain.A4Landscape, Page: domain.A4Landscape, Elements: []domain.Element{rect}})
	if res.Drawn != 1 || len(res.Skipped) != 0 {
		t.Fatalf("result = %+v", res)
	}
	// PDF y grows upwards: 595 - 10
	if !strings.Contains(out, "10.00 585.00 100.00 -50.00 re") {
		t.Fatalf("rect operator not found")
	}
}

func TestRectScalesPerAxis(t *testing.T) {
	rect := element(t, "r1", domain.KindRect, domain.Patch{X: domain.Ptr(10.0), Y: domain.Ptr(10.0), Width: domain.Ptr(100.0), Height: domain.Ptr(50.0)})
	canvas := vector.Size{W: 421, H: 297.5}
	_, out := render(t, plainExporter(), Job{Canvas: canvas, Page: domain.A4Landscape, Elements: []domain.Element{rect}})
	if !strings.Contains(out, "20.00 575.00 200.00 -100.00 re") {
		t.Fatalf("scaled rect operator not found")
	}
}

func TestMissingImageSkipsOnlyThatElement(t *testing.T) {
	els := []domain.Element{
		element(t, "a", domain.KindRect, domain.Patch{}),
		element(t, "img", domain.KindImage, domain.Patch{Src: domain.Ptr("https://example.invalid/logo.png")}),
		element(t, "c", domain.KindCircle, domain.Patch{}),
	}
	res, _ := render(t, plainExporter(), Job{Canvas: domain.A4Landscape, Page: domain.A4Landscape, Elements: els})
	if res.Drawn != 2 {
		t.Fatalf("drawn = %d, want 2", res.Drawn)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].ID != "img" || res.Skipped[0].Kind != domain.KindImage {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
}

type panicSource struct{}

func (panicSource) Lookup(string) (*assets.Image, bool) { panic("broken source") }

func TestPanicIsIsolatedToElement(t *testing.T) {
	e := plainExporter()
	e.Images = panicSource{}
	els := []domain.Element{
		element(t, "img", domain.KindImage, domain.Patch{Src: domain.Ptr("x.png")}),
		element(t, "s", domain.KindStar, domain.Patch{}),
	}
	res, _ := render(t, e, Job{Canvas: domain.A4Landscape, Page: domain.A4Landscape, Elements: els})
	if res.Drawn != 1 || len(res.Skipped) != 1 || !strings.Contains(res.Skipped[0].Reason, "panic") {
		t.Fatalf("result = %+v", res)
	}
}

func TestImageEmbedded(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var raw bytes.Buffer
	if err := png.Encode(&raw, img); err != nil {
		t.Fatal(err)
	}
	decoded, err := assets.DecodeImage("logo.png", raw.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	cache := assets.NewImageCache()
	cache.Put(decoded)

	e := plainExporter()
	e.Images = cache
	els := []domain.Element{
		element(t, "i1", domain.KindImage, domain.Patch{Src: domain.Ptr("logo.png")}),
		element(t, "i2", domain.KindImage, domain.Patch{Src: domain.Ptr("logo.png"), CornerRadius: domain.Ptr(12.0)}),
	}
	res, out := render(t, e, Job{Canvas: domain.A4Landscape, Page: domain.A4Landscape, Elements: els})
	if res.Drawn != 2 {
		t.Fatalf("result = %+v", res)
	}
	if strings.Count(out, "/Subtype /Image") != 1 {
		t.Fatalf("image should be embedded once")
	}
}

func TestTextLineCountMatchesLayout(t *testing.T) {
	m := textlayout.NewFaceMeasurer(nil)
	txt := element(t, "t", domain.KindText, domain.Patch{
		Text:  domain.Ptr("Oferta especial de verano para toda la familia"),
		Width: domain.Ptr(120.0),
	})
	want := len(textlayout.Layout(m, txt.Shape.(*domain.TextShape)).Lines)
	if want < 2 {
		t.Fatalf("fixture should wrap, got %d line(s)", want)
	}
	e := plainExporter()
	e.Measurer = m
	_, out := render(t, e, Job{Canvas: domain.A4Landscape, Page: domain.A4Landscape, Elements: []domain.Element{txt}})
	if got := strings.Count(out, ") Tj"); got != want {
		t.Fatalf("pdf lines = %d, layout lines = %d", got, want)
	}
}

func TestHiddenElementsAreNotDrawn(t *testing.T) {
	rect := element(t, "r", domain.KindRect, domain.Patch{Visible: domain.Ptr(false)})
	res, _ := render(t, plainExporter(), Job{Canvas: domain.A4Landscape, Page: domain.A4Landscape, Elements: []domain.Element{rect}})
	if res.Drawn != 0 || len(res.Skipped) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestEveryKindDraws(t *testing.T) {
	var els []domain.Element
	for _, k := range domain.Kinds {
		if k == domain.KindImage {
			continue
		}
		els = append(els, element(t, string(k), k, domain.Patch{Rotation: domain.Ptr(15.0), Opacity: domain.Ptr(0.5)}))
	}
	res, out := render(t, plainExporter(), Job{Canvas: domain.A4Landscape, Page: domain.A4Landscape, Elements: els})
	if res.Drawn != len(els) {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(out, " cm") {
		t.Fatalf("rotation transform missing")
	}
}

func TestExportDoesNotModifyElements(t *testing.T) {
	els := []domain.Element{element(t, "l", domain.KindLine, domain.Patch{})}
	before := domain.CloneElements(els)
	_, _ = render(t, plainExporter(), Job{Canvas: vector.Size{W: 100, H: 100}, Page: domain.A4Portrait, Elements: els})
	if els[0].Shape.(*domain.LineShape).Points[2] != before[0].Shape.(*domain.LineShape).Points[2] {
		t.Fatalf("exporter mutated its input")
	}
}

func TestInvalidPageIsExportError(t *testing.T) {
	var buf bytes.Buffer
	_, err := plainExporter().Export(context.Background(), Job{Canvas: domain.A4Landscape}, &buf)
	var ee *ExportError
	if !errors.As(err, &ee) || ee.Op != "page" {
		t.Fatalf("expected page ExportError, got %v", err)
	}
}

func TestExportFileCreatesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "label.pdf")
	rect := element(t, "r", domain.KindRect, domain.Patch{})
	if _, err := plainExporter().ExportFile(context.Background(), Job{Title: "Etiqueta", Canvas: domain.A4Landscape, Page: domain.A4Landscape, Elements: []domain.Element{rect}}, out); err != nil {
		t.Fatalf("export: %v", err)
	}
	st, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Size() <= 0 {
		t.Fatalf("pdf file empty")
	}
}

func TestCoreFontMapping(t *testing.T) {
	cases := map[string]string{
		"Arial":           "Helvetica",
		"Times New Roman": "Times",
		"Georgia":         "Times",
		"Open Sans":       "Helvetica",
		"Courier New":     "Courier",
		"Roboto Mono":     "Courier",
	}
	for in, want := range cases {
		if got := coreFamily(in); got != want {
			t.Fatalf("%s -> %s, want %s", in, got, want)
		}
	}
	ts := &domain.TextShape{FontStyle: domain.FontBoldItalic, Underline: true}
	if got := fontStyle(ts); got != "BIU" {
		t.Fatalf("style = %q", got)
	}
}

func TestRadiusKindsScaleUniformly(t *testing.T) {
	// page/canvas = 2 horizontally, 1 vertically
	canvas := vector.Size{W: 421, H: 595}
	circle := element(t, "c", domain.KindCircle, domain.Patch{X: domain.Ptr(100.0), Y: domain.Ptr(100.0), Radius: domain.Ptr(50.0)})
	tri := element(t, "t", domain.KindTriangle, domain.Patch{X: domain.Ptr(300.0), Y: domain.Ptr(200.0), Radius: domain.Ptr(60.0)})
	res, out := render(t, plainExporter(), Job{Canvas: canvas, Page: domain.A4Landscape, Elements: []domain.Element{circle, tri}})
	if res.Drawn != 2 {
		t.Fatalf("result = %+v", res)
	}
	// center (200,100), radius stays 50: the arc starts at x=250
	if !strings.Contains(out, "250.00 495.00 m") {
		t.Fatalf("circle does not start at uniform radius")
	}
	if strings.Contains(out, "300.00 495.00 m") {
		t.Fatalf("circle was stretched into an ellipse")
	}
	// center (600,200), right base corner at 600+60*sin(120deg), 200+30
	if !strings.Contains(out, "651.96152 365.00000 l") {
		t.Fatalf("triangle base corner not uniformly scaled")
	}
}
