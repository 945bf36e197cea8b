/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"encarte/internal/domain"
	"encarte/internal/vector"
)

// PresetName represents a named export preset.
type PresetName string

const (
	// PresetPrint maps the canvas onto an A4 page of the same orientation.
	PresetPrint PresetName = "print"
	// PresetScreen keeps the page equal to the logical canvas size.
	PresetScreen PresetName = "screen"
)

// ParsePreset accepts a preset name case-insensitively; empty means print.
func ParsePreset(s string) (PresetName, error) {
	switch p := PresetName(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PresetPrint:
		return PresetPrint, nil
	case PresetScreen:
		return PresetScreen, nil
	default:
		return "", fmt.Errorf("unknown preset: %s", s)
	}
}

// PageSize returns the PDF page size for a document of orientation o.
func PageSize(p PresetName, o domain.Orientation, canvas vector.Size) vector.Size {
	if p == PresetScreen {
		return canvas
	}
	return o.PageSize()
}

// BatchOptions controls batch export of several templates into one PDF.
type BatchOptions struct {
	Preset PresetName
	// Canvas returns the logical canvas of an orientation; nil means the A4 sizes.
	Canvas func(domain.Orientation) vector.Size
	Title  string
}

// JobFor builds the export job of one template.
func JobFor(t domain.Template, opt BatchOptions) Job {
	canvasOf := opt.Canvas
	if canvasOf == nil {
		canvasOf = domain.Orientation.PageSize
	}
	canvas := canvasOf(t.CanvasSize)
	title := t.Name
	if title == "" {
		title = opt.Title
	}
	return Job{
		Title:    title,
		Canvas:   canvas,
		Page:     PageSize(opt.Preset, t.CanvasSize, canvas),
		Elements: t.Elements,
	}
}

// BatchExport renders one page per template into w.
func BatchExport(ctx context.Context, e *PDFExporter, templates []domain.Template, opt BatchOptions, w io.Writer) ([]Result, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("no templates to export")
	}
	jobs := make([]Job, len(templates))
	for i, t := range templates {
		jobs[i] = JobFor(t, opt)
	}
	if opt.Title != "" {
		jobs[0].Title = opt.Title
	}
	return e.ExportPages(ctx, jobs, w)
}
