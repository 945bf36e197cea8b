/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type memSecrets map[string]string

func (m memSecrets) Get(service, key string) (string, error) { return m[service+"/"+key], nil }
func (m memSecrets) Set(service, key, value string) error {
	m[service+"/"+key] = value
	return nil
}
func (m memSecrets) Delete(service, key string) error {
	delete(m, service+"/"+key)
	return nil
}

func useTempConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigFile, path)
	old := secretStore
	secretStore = memSecrets{}
	t.Cleanup(func() { secretStore = old })
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	useTempConfig(t)
	cfg, secret, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if secret != "" {
		t.Fatalf("expected no secret, got %q", secret)
	}
	if cfg.Editor.HistoryCap != 50 || cfg.Editor.GridSize != 20 || cfg.Editor.SnapThreshold != 5 {
		t.Fatalf("unexpected editor defaults: %+v", cfg.Editor)
	}
	if cfg.Canvas.LandscapeWidth != 842 || cfg.Canvas.LandscapeHeight != 595 {
		t.Fatalf("unexpected canvas defaults: %+v", cfg.Canvas)
	}
}

func TestSaveThenLoad_RoundTripAndSecret(t *testing.T) {
	useTempConfig(t)
	cfg := Defaults()
	cfg.Editor.GridSize = 10
	cfg.Export.FontDir = "/opt/fonts"
	cfg.Backend.DSN = "postgres://enc@db/encarte"
	if err := Save(cfg, "s3cret"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, secret, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Editor.GridSize != 10 || got.Export.FontDir != "/opt/fonts" || got.Backend.DSN != cfg.Backend.DSN {
		t.Fatalf("config not persisted: %+v", got)
	}
	if secret != "s3cret" {
		t.Fatalf("secret = %q, want s3cret", secret)
	}
	if err := ForgetBackendPassword(); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, secret, _ = Load(); secret != "" {
		t.Fatalf("secret still present after forget: %q", secret)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := useTempConfig(t)
	if err := os.WriteFile(path, []byte("editor: [this is not a map"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed config")
	}
}

func TestEnvOverrides(t *testing.T) {
	useTempConfig(t)
	t.Setenv(EnvGridSize, "25")
	t.Setenv(EnvSnapThreshold, "8")
	t.Setenv(EnvHistoryCap, "not-a-number")
	t.Setenv(EnvHistoryBytes, "65536")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvLogSource, "yes")
	t.Setenv(EnvBackendDSN, "postgres://localhost/enc")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Editor.GridSize != 25 || cfg.Editor.SnapThreshold != 8 {
		t.Fatalf("editor overrides not applied: %+v", cfg.Editor)
	}
	if cfg.Editor.HistoryCap != 50 {
		t.Fatalf("bad int override should be ignored, got %d", cfg.Editor.HistoryCap)
	}
	if cfg.Editor.HistoryBytes != 65536 {
		t.Fatalf("history bytes override not applied: %d", cfg.Editor.HistoryBytes)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Source {
		t.Fatalf("logging overrides not applied: %+v", cfg.Logging)
	}
	if cfg.Backend.DSN != "postgres://localhost/enc" {
		t.Fatalf("dsn override not applied: %q", cfg.Backend.DSN)
	}
}

func TestMergeInto_CanvasPairsOnly(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Canvas: CanvasConfig{LandscapeWidth: 1123}}
	mergeInto(&dst, &src)
	if dst.Canvas.LandscapeWidth != 842 {
		t.Fatalf("half-specified canvas size must not be merged: %+v", dst.Canvas)
	}
	src.Canvas.LandscapeHeight = 794
	mergeInto(&dst, &src)
	if dst.Canvas.LandscapeWidth != 1123 || dst.Canvas.LandscapeHeight != 794 {
		t.Fatalf("canvas size not merged: %+v", dst.Canvas)
	}
}

func TestTimeoutHelpers(t *testing.T) {
	if got := (AssetsConfig{}).AssetTimeout(); got != 10*time.Second {
		t.Fatalf("default asset timeout = %v", got)
	}
	if got := (EditorConfig{}).HistoryCoalesce(); got != 0 {
		t.Fatalf("default coalesce = %v", got)
	}
	if got := (EditorConfig{HistoryMergeMs: 400}).HistoryCoalesce(); got != 400*time.Millisecond {
		t.Fatalf("coalesce = %v", got)
	}
	if got := (BackendConfig{TimeoutMs: 250}).Timeout(); got != 250*time.Millisecond {
		t.Fatalf("backend timeout = %v", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "ENC_DOTENV_PROBE=from-file\n" + EnvGridSize + "=99\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv(EnvGridSize, "30")
	t.Cleanup(func() { _ = os.Unsetenv("ENC_DOTENV_PROBE") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("ENC_DOTENV_PROBE"); got != "from-file" {
		t.Fatalf("probe = %q", got)
	}
	if got := os.Getenv(EnvGridSize); got != "30" {
		t.Fatalf("existing variable overridden: %q", got)
	}
	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}
}

func TestCanvasSize(t *testing.T) {
	c := CanvasConfig{LandscapeWidth: 1000, LandscapeHeight: 700}
	if w, h := c.Size(false); w != 1000 || h != 700 {
		t.Fatalf("landscape = %vx%v", w, h)
	}
	if w, h := c.Size(true); w != 595 || h != 842 {
		t.Fatalf("portrait fallback = %vx%v", w, h)
	}
}
