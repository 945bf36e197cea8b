/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package bundle

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"encarte/internal/domain"
	"encarte/internal/storage"
)

func writePNG(t *testing.T, path string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
	return buf.Bytes()
}

func imageElement(t *testing.T, id, src string) domain.Element {
	t.Helper()
	el, err := domain.NewElement(domain.KindImage)
	if err != nil {
		t.Fatalf("NewElement: %v", err)
	}
	el.ID = id
	el.Shape.(*domain.ImageShape).Src = src
	return el
}

func TestExportAndInstall(t *testing.T) {
	src := t.TempDir()
	logo := writePNG(t, filepath.Join(src, "logo.png"))
	tplPath := filepath.Join(src, "promo.json")
	tpl := domain.Template{Name: "promo", CanvasSize: domain.Portrait, Elements: []domain.Element{
		imageElement(t, "a", "logo.png"),
		imageElement(t, "b", "logo.png"),
		imageElement(t, "c", "https://example.com/remote.png"),
	}}
	if err := storage.SaveTemplate(tplPath, tpl); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	zipPath := filepath.Join(t.TempDir(), "out", "promo.zip")
	n, err := Export(tplPath, zipPath)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 asset (deduplicated), got %d", n)
	}

	dest := t.TempDir()
	got, err := Install(zipPath, dest)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	installed, err := storage.LoadTemplate(got)
	if err != nil {
		t.Fatalf("load installed template: %v", err)
	}
	a := installed.Elements[0].Shape.(*domain.ImageShape).Src
	b := installed.Elements[1].Shape.(*domain.ImageShape).Src
	c := installed.Elements[2].Shape.(*domain.ImageShape).Src
	if a != "assets/1-logo.png" || b != a {
		t.Fatalf("local sources not rewritten: %q %q", a, b)
	}
	if c != "https://example.com/remote.png" {
		t.Fatalf("remote source changed: %q", c)
	}
	data, err := os.ReadFile(filepath.Join(dest, "assets", "1-logo.png"))
	if err != nil {
		t.Fatalf("asset not installed: %v", err)
	}
	if !bytes.Equal(data, logo) {
		t.Fatalf("asset content differs")
	}
	if _, err := os.Stat(filepath.Join(dest, ManifestName)); !os.IsNotExist(err) {
		t.Fatalf("manifest should not be installed")
	}
}

func TestExport_MissingAssetFails(t *testing.T) {
	src := t.TempDir()
	tplPath := filepath.Join(src, "broken.json")
	tpl := domain.Template{Name: "broken", CanvasSize: domain.Landscape, Elements: []domain.Element{imageElement(t, "a", "missing.png")}}
	if err := storage.SaveTemplate(tplPath, tpl); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	if _, err := Export(tplPath, filepath.Join(src, "broken.zip")); err == nil {
		t.Fatalf("expected error for missing asset")
	}
}

func TestInstall_ZipSlipAndSkipExisting(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	add := func(name, body string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		_, _ = w.Write([]byte(body))
	}
	add(TemplateName, `{"canvasSize":"portrait","elements":[]}`)
	add("../escape.txt", "nope")
	add("assets/keep.txt", "new")
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	_ = f.Close()

	dest := filepath.Join(dir, "dest")
	if err := os.MkdirAll(filepath.Join(dest, "assets"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dest, "assets", "keep.txt"), []byte("old"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := Install(zipPath, dest); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Fatalf("zip slip entry was extracted")
	}
	b, _ := os.ReadFile(filepath.Join(dest, "assets", "keep.txt"))
	if string(b) != "old" {
		t.Fatalf("existing file overwritten: %q", b)
	}
}

func TestInstall_RejectsInvalidTemplate(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "bad.zip")
	f, _ := os.Create(zipPath)
	zw := zip.NewWriter(f)
	w, _ := zw.Create(TemplateName)
	_, _ = w.Write([]byte(`{"canvasSize":"round","elements":[]}`))
	_ = zw.Close()
	_ = f.Close()
	dest := filepath.Join(dir, "dest")
	if _, err := Install(zipPath, dest); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("nothing should be written for an invalid bundle")
	}
}
