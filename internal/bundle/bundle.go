/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

// Package bundle packs a template and the local image files it references
// into a single zip, and installs such a zip into a directory.
package bundle

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"encarte/internal/assets"
	"encarte/internal/domain"
	applog "encarte/internal/log"
	"encarte/internal/storage"
)

const (
	ManifestName = "bundle.manifest.txt"
	TemplateName = "template.json"
	AssetsDir    = "assets"
)

// Export writes the template at templatePath plus every local image it uses to
// destZipPath. Image sources are rewritten to assets/<n>-<file> inside the zip.
// Returns the number of asset files added.
func Export(templatePath, destZipPath string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("bundle"), "export").With(slog.String("template", templatePath))
	if strings.TrimSpace(templatePath) == "" {
		return 0, errors.New("templatePath is required")
	}
	if strings.TrimSpace(destZipPath) == "" {
		return 0, errors.New("destZipPath is required")
	}
	t, err := storage.LoadTemplate(templatePath)
	if err != nil {
		return 0, fmt.Errorf("load template: %w", err)
	}
	baseDir := filepath.Dir(templatePath)

	// Ensure target directory exists
	if err := os.MkdirAll(filepath.Dir(destZipPath), 0o755); err != nil {
		return 0, fmt.Errorf("ensure zip dir: %w", err)
	}
	// On Windows, remove destination if present before create
	_ = os.Remove(destZipPath)

	zf, err := os.Create(destZipPath)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)

	// same source, same entry
	entries := map[string]string{}
	added := 0
	for i := range t.Elements {
		img, ok := t.Elements[i].Shape.(*domain.ImageShape)
		if !ok || !assets.IsLocalRef(img.Src) {
			continue
		}
		if name, seen := entries[img.Src]; seen {
			img.Src = name
			continue
		}
		src := assets.LocalPath(img.Src, baseDir)
		name := path.Join(AssetsDir, fmt.Sprintf("%d-%s", added+1, filepath.Base(src)))
		if err := addFile(zw, name, src); err != nil {
			_ = zw.Close()
			l.Error("zip build failed", slog.Any("err", err))
			return added, fmt.Errorf("add %s: %w", img.Src, err)
		}
		entries[img.Src] = name
		img.Src = name
		added++
	}

	data, err := domain.EncodeTemplate(t)
	if err != nil {
		_ = zw.Close()
		return added, fmt.Errorf("marshal template: %w", err)
	}
	if err := addBytes(zw, TemplateName, data); err != nil {
		_ = zw.Close()
		return added, err
	}
	manifest := fmt.Sprintf("Encarte Template Bundle\nCreated: %s\nTemplate: %s\nElements: %d\nAssets: %d\n",
		time.Now().Format(time.RFC3339), t.Name, len(t.Elements), added)
	if err := addBytes(zw, ManifestName, []byte(manifest)); err != nil {
		_ = zw.Close()
		return added, err
	}
	if err := zw.Close(); err != nil {
		return added, fmt.Errorf("finish zip: %w", err)
	}
	l.Info("bundle exported", slog.Int("assets", added), slog.String("zip", destZipPath))
	return added, nil
}

func addBytes(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func addFile(zw *zip.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// Install extracts a bundle into destDir and returns the path of its template.
// The template is validated before anything is written. Existing files are
// not overwritten; they are skipped with a warning.
func Install(zipPath, destDir string) (string, error) {
	l := applog.WithOperation(applog.WithComponent("bundle"), "install").With(slog.String("dest", destDir))
	if strings.TrimSpace(zipPath) == "" {
		return "", errors.New("zipPath is required")
	}
	if strings.TrimSpace(destDir) == "" {
		return "", errors.New("destDir is required")
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("open bundle: %w", err)
	}
	defer func() { _ = r.Close() }()

	var tplFile *zip.File
	for _, f := range r.File {
		if f.Name == TemplateName {
			tplFile = f
		}
	}
	if tplFile == nil {
		return "", fmt.Errorf("bundle has no %s", TemplateName)
	}
	data, err := readEntry(tplFile)
	if err != nil {
		return "", err
	}
	if _, err := storage.DecodeTemplateJSON(data); err != nil {
		return "", fmt.Errorf("bundle template: %w", err)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure dest dir: %w", err)
	}
	root, err := filepath.Abs(destDir)
	if err != nil {
		return "", err
	}
	installed := 0
	for _, f := range r.File {
		if f.Name == ManifestName || f.FileInfo().IsDir() {
			continue
		}
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if rel, err := filepath.Rel(root, target); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			l.Warn("skip entry outside destination", slog.String("entry", f.Name))
			continue
		}
		if _, err := os.Stat(target); err == nil {
			l.Warn("skip existing file", slog.String("path", target))
			continue
		}
		if err := extract(f, target); err != nil {
			return "", err
		}
		installed++
	}
	l.Info("bundle installed", slog.Int("files", installed))
	return filepath.Join(root, TemplateName), nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func extract(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
