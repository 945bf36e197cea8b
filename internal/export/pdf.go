/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders documents to vector PDF.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"encarte/internal/assets"
	"encarte/internal/domain"
	applog "encarte/internal/log"
	"encarte/internal/textlayout"
	"encarte/internal/vector"

	"github.com/jung-kurt/gofpdf"
)

// ascentRatio places the baseline inside a text line, as a fraction of the font size.
const ascentRatio = 0.8

// Job is one page to render.
// Coordinates:
// - Element geometry is in canvas units, origin top-left.
// - Page is the PDF page size in points.
// - Positions scale per axis, radii, stroke widths and font sizes by the smaller factor.
type Job struct {
	Title    string
	Canvas   vector.Size
	Page     vector.Size
	Elements []domain.Element
}

// SkippedElement names an element that was left out of the PDF.
type SkippedElement struct {
	ID     string
	Kind   domain.Kind
	Reason string
}

// Result reports how many elements were drawn and which were skipped.
type Result struct {
	Drawn   int
	Skipped []SkippedElement
}

// ExportError means no PDF could be produced.
type ExportError struct {
	Op  string
	Err error
}

func (e *ExportError) Error() string { return "export " + e.Op + ": " + e.Err.Error() }
func (e *ExportError) Unwrap() error { return e.Err }

// PDFExporter draws documents with gofpdf. The exporter only reads the job;
// it never modifies elements.
type PDFExporter struct {
	// Measurer must be the one used by the interactive layout so text wraps identically.
	Measurer textlayout.Measurer
	Images   assets.ImageSource
	Author   string
	Log      *slog.Logger
	// DisableCompression writes plain content streams.
	DisableCompression bool
}

func (e *PDFExporter) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return applog.WithComponent("export")
}

func (e *PDFExporter) measurer() textlayout.Measurer {
	if e.Measurer != nil {
		return e.Measurer
	}
	return textlayout.NewFaceMeasurer(nil)
}

// Export renders job as a single page PDF to w.
func (e *PDFExporter) Export(ctx context.Context, job Job, w io.Writer) (Result, error) {
	res, err := e.ExportPages(ctx, []Job{job}, w)
	if err != nil {
		return Result{}, err
	}
	return res[0], nil
}

// ExportFile renders job to path, creating parent directories.
func (e *PDFExporter) ExportFile(ctx context.Context, job Job, path string) (Result, error) {
	var buf bytes.Buffer
	res, err := e.Export(ctx, job, &buf)
	if err != nil {
		return res, err
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return res, &ExportError{Op: "write", Err: err}
	}
	return res, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ExportPages renders one page per job into a single PDF.
func (e *PDFExporter) ExportPages(ctx context.Context, jobs []Job, w io.Writer) ([]Result, error) {
	if len(jobs) == 0 {
		return nil, &ExportError{Op: "page", Err: fmt.Errorf("no pages")}
	}
	for i, j := range jobs {
		if !validSize(j.Page) || !validSize(j.Canvas) {
			return nil, &ExportError{Op: "page", Err: fmt.Errorf("page %d: invalid size page=%vx%v canvas=%vx%v", i+1, j.Page.W, j.Page.H, j.Canvas.W, j.Canvas.H)}
		}
	}
	l := applog.WithOperation(e.logger(), "export_pdf")

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: jobs[0].Page.W, Ht: jobs[0].Page.H},
	})
	pdf.SetCompression(!e.DisableCompression)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	if jobs[0].Title != "" {
		pdf.SetTitle(jobs[0].Title, true)
	}
	if e.Author != "" {
		pdf.SetAuthor(e.Author, true)
	}
	pdf.SetCreator("encarte", false)

	r := &renderer{pdf: pdf, m: e.measurer(), images: e.Images, log: l, registered: map[string]string{}}
	r.tr = pdf.UnicodeTranslatorFromDescriptor("")

	results := make([]Result, len(jobs))
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pdf.AddPageFormat("", gofpdf.SizeType{Wd: job.Page.W, Ht: job.Page.H})
		results[i] = r.page(ctx, job)
	}

	if pdf.Err() {
		l.ErrorContext(ctx, "pdf document error", slog.Any("err", pdf.Error()))
		return nil, &ExportError{Op: "render", Err: pdf.Error()}
	}
	if err := pdf.Output(w); err != nil {
		l.ErrorContext(ctx, "write pdf", slog.Any("err", err))
		return nil, &ExportError{Op: "write", Err: err}
	}
	for i, res := range results {
		l.DebugContext(ctx, "page rendered", slog.Int("page", i+1), slog.Int("drawn", res.Drawn), slog.Int("skipped", len(res.Skipped)))
	}
	return results, nil
}

func validSize(s vector.Size) bool {
	return s.W > 0 && s.H > 0 && !math.IsInf(s.W, 0) && !math.IsInf(s.H, 0)
}

type renderer struct {
	pdf        *gofpdf.Fpdf
	m          textlayout.Measurer
	images     assets.ImageSource
	log        *slog.Logger
	tr         func(string) string
	registered map[string]string

	sx, sy, su float64
}

func (r *renderer) page(ctx context.Context, job Job) Result {
	r.sx = job.Page.W / job.Canvas.W
	r.sy = job.Page.H / job.Canvas.H
	r.su = math.Min(r.sx, r.sy)

	var res Result
	for _, el := range job.Elements {
		if !el.Visible {
			continue
		}
		if err := r.safeDraw(el); err != nil {
			res.Skipped = append(res.Skipped, SkippedElement{ID: el.ID, Kind: el.Kind(), Reason: err.Error()})
			r.log.WarnContext(ctx, "element skipped", slog.String("element", el.ID), slog.String("kind", string(el.Kind())), slog.Any("err", err))
			continue
		}
		res.Drawn++
	}
	return res
}

// safeDraw draws one element; a panic or a document error only costs this element.
func (r *renderer) safeDraw(el domain.Element) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		if r.pdf.Err() {
			if err == nil {
				err = r.pdf.Error()
			}
			r.pdf.ClearError()
		}
	}()
	return r.draw(el)
}

func (r *renderer) pt(x, y float64) vector.Pt { return vector.Pt{X: x * r.sx, Y: y * r.sy} }

func (r *renderer) draw(el domain.Element) error {
	origin := r.pt(el.X, el.Y)
	if el.Rotation != 0 {
		r.pdf.TransformBegin()
		defer r.pdf.TransformEnd()
		// gofpdf angles run counter-clockwise
		r.pdf.TransformRotate(-el.Rotation, origin.X, origin.Y)
	}
	if el.Opacity < 1 {
		r.pdf.SetAlpha(math.Max(0, el.Opacity), "Normal")
		defer r.pdf.SetAlpha(1, "Normal")
	}

	switch s := el.Shape.(type) {
	case *domain.RectShape:
		return r.rect(s, origin)
	case *domain.CircleShape:
		op, err := r.paint(s.Paint)
		if err != nil || op == "" {
			return err
		}
		r.pdf.Circle(origin.X, origin.Y, s.Radius*r.su, op)
	case *domain.TriangleShape:
		return r.polygon(s.Paint, vector.TrianglePoints(origin, s.Radius*r.su))
	case *domain.StarShape:
		return r.polygon(s.Paint, vector.StarPoints(origin, s.NumPoints, s.InnerRadius*r.su, s.OuterRadius*r.su))
	case *domain.LineShape:
		return r.line(el, s)
	case *domain.TextShape:
		return r.text(s, origin)
	case *domain.ImageShape:
		return r.image(s, origin)
	default:
		return fmt.Errorf("unsupported element kind %q", el.Kind())
	}
	return nil
}

// paint sets colors and line width and returns the paint operator.
func (r *renderer) paint(p domain.Paint) (string, error) {
	f, s, err := vector.ResolvePaint(p.Fill, p.Stroke, p.StrokeWidth)
	if err != nil {
		return "", err
	}
	if f.Enabled {
		r.pdf.SetFillColor(int(f.Color.R), int(f.Color.G), int(f.Color.B))
	}
	if s.Enabled {
		r.pdf.SetDrawColor(int(s.Color.R), int(s.Color.G), int(s.Color.B))
		r.pdf.SetLineWidth(s.Width * r.su)
	}
	return vector.PaintOp(f, s), nil
}

func (r *renderer) rect(s *domain.RectShape, o vector.Pt) error {
	op, err := r.paint(s.Paint)
	if err != nil || op == "" {
		return err
	}
	w, h := s.Width*r.sx, s.Height*r.sy
	if s.CornerRadius <= 0 {
		r.pdf.Rect(o.X, o.Y, w, h, op)
		return nil
	}
	r.path(vector.RoundedRectPath(vector.R(o.X, o.Y, w, h), s.CornerRadius*r.su), op)
	return nil
}

// polygon draws vertices already in page coordinates. Radius-based kinds are
// built around the scaled origin with the uniform factor so they keep their shape.
func (r *renderer) polygon(p domain.Paint, pts []vector.Pt) error {
	op, err := r.paint(p)
	if err != nil || op == "" {
		return err
	}
	poly := make([]gofpdf.PointType, len(pts))
	for i, v := range pts {
		poly[i] = gofpdf.PointType{X: v.X, Y: v.Y}
	}
	r.pdf.Polygon(poly, op)
	return nil
}

func (r *renderer) line(el domain.Element, s *domain.LineShape) error {
	_, st, err := vector.ResolvePaint("", s.Stroke, s.StrokeWidth)
	if err != nil || !st.Enabled {
		return err
	}
	r.pdf.SetDrawColor(int(st.Color.R), int(st.Color.G), int(st.Color.B))
	r.pdf.SetLineWidth(st.Width * r.su)
	var p vector.Path
	for i := 0; i+1 < len(s.Points); i += 2 {
		q := r.pt(el.X+s.Points[i], el.Y+s.Points[i+1])
		if i == 0 {
			p.MoveTo(q.X, q.Y)
		} else {
			p.LineTo(q.X, q.Y)
		}
	}
	r.path(p, "D")
	return nil
}

// path replays a vector path in page coordinates.
func (r *renderer) path(p vector.Path, op string) {
	for _, c := range p.Cmds {
		d := c.Data
		switch c.Op {
		case vector.MoveTo:
			r.pdf.MoveTo(d[0], d[1])
		case vector.LineTo:
			r.pdf.LineTo(d[0], d[1])
		case vector.QuadTo:
			r.pdf.CurveTo(d[0], d[1], d[2], d[3])
		case vector.CubicTo:
			r.pdf.CurveBezierCubicTo(d[0], d[1], d[2], d[3], d[4], d[5])
		case vector.Close:
			r.pdf.ClosePath()
		}
	}
	r.pdf.DrawPath(op)
}

// text wraps in canvas units with the shared measurer, then draws each line scaled.
func (r *renderer) text(s *domain.TextShape, o vector.Pt) error {
	if s.Fill == "" {
		return nil
	}
	c, err := vector.ParseHex(s.Fill)
	if err != nil {
		return err
	}
	block := textlayout.Layout(r.m, s)
	size := s.FontSize * r.su
	r.pdf.SetFont(coreFamily(s.FontFamily), fontStyle(s), size)
	r.pdf.SetTextColor(int(c.R), int(c.G), int(c.B))

	lh := block.LineHeight * r.sy
	pad := (lh - size) / 2
	for i, line := range block.Lines {
		if line.Text == "" {
			continue
		}
		x := o.X + textlayout.AlignOffset(s.Align, block.Width, line.Width)*r.sx
		y := o.Y + float64(i)*lh + pad + size*ascentRatio
		r.pdf.Text(x, y, r.tr(line.Text))
	}
	return nil
}

func (r *renderer) image(s *domain.ImageShape, o vector.Pt) error {
	if r.images == nil {
		return fmt.Errorf("image %s not loaded", shortSrc(s.Src))
	}
	img, ok := r.images.Lookup(s.Src)
	if !ok || img == nil {
		return fmt.Errorf("image %s not loaded", shortSrc(s.Src))
	}
	name, ok := r.registered[s.Src]
	opts := gofpdf.ImageOptions{ImageType: img.Type}
	if !ok {
		name = fmt.Sprintf("img%d", len(r.registered)+1)
		r.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
		if r.pdf.Err() {
			return fmt.Errorf("register image: %w", r.pdf.Error())
		}
		r.registered[s.Src] = name
	}
	w, h := s.Width*r.sx, s.Height*r.sy
	if s.CornerRadius > 0 {
		r.pdf.ClipRoundedRect(o.X, o.Y, w, h, s.CornerRadius*r.su, false)
		defer r.pdf.ClipEnd()
	}
	r.pdf.ImageOptions(name, o.X, o.Y, w, h, false, opts, 0, "")
	return nil
}

func shortSrc(src string) string {
	if len(src) > 48 {
		return src[:48] + "..."
	}
	return src
}

// coreFamily maps a requested family onto a PDF core font.
func coreFamily(family string) string {
	f := strings.ToLower(family)
	switch {
	case strings.Contains(f, "courier"), strings.Contains(f, "mono"), strings.Contains(f, "consolas"):
		return "Courier"
	case strings.Contains(f, "sans"):
		return "Helvetica"
	case strings.Contains(f, "times"), strings.Contains(f, "serif"), strings.Contains(f, "georgia"), strings.Contains(f, "garamond"):
		return "Times"
	default:
		return "Helvetica"
	}
}

func fontStyle(s *domain.TextShape) string {
	var b strings.Builder
	if s.FontStyle.Bold() {
		b.WriteByte('B')
	}
	if s.FontStyle.Italic() {
		b.WriteByte('I')
	}
	if s.Underline {
		b.WriteByte('U')
	}
	return b.String()
}
