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
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type EditorConfig struct {
	HistoryCap      int     `yaml:"history_cap"`
	HistoryBytes    int     `yaml:"history_bytes"`       // 0 = unlimited
	HistoryMergeMs  int     `yaml:"history_coalesce_ms"` // 0 = every commit is its own step
	GridSize        float64 `yaml:"grid_size"`
	SnapThreshold   float64 `yaml:"snap_threshold"`
	DuplicateOffset float64 `yaml:"duplicate_offset"`
	MinSize         float64 `yaml:"min_size"`
}

// CanvasConfig holds the logical canvas size per orientation.
type CanvasConfig struct {
	LandscapeWidth  float64 `yaml:"landscape_width"`
	LandscapeHeight float64 `yaml:"landscape_height"`
	PortraitWidth   float64 `yaml:"portrait_width"`
	PortraitHeight  float64 `yaml:"portrait_height"`
}

type ExportConfig struct {
	Author  string `yaml:"author"`
	Preset  string `yaml:"preset"` // "print" | "screen"
	FontDir string `yaml:"font_dir"`
}

type AssetsConfig struct {
	HTTPTimeoutMs int   `yaml:"http_timeout_ms"`
	MaxImageBytes int64 `yaml:"max_image_bytes"`
}

type BackendConfig struct {
	// DSN is the Postgres connection string without password; the password lives in the OS keychain.
	DSN       string `yaml:"dsn"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Editor        EditorConfig  `yaml:"editor"`
	Canvas        CanvasConfig  `yaml:"canvas"`
	Export        ExportConfig  `yaml:"export"`
	Assets        AssetsConfig  `yaml:"assets"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor:        EditorConfig{HistoryCap: 50, GridSize: 20, SnapThreshold: 5, DuplicateOffset: 20, MinSize: 5},
		Canvas:        CanvasConfig{LandscapeWidth: 842, LandscapeHeight: 595, PortraitWidth: 595, PortraitHeight: 842},
		Export:        ExportConfig{Author: "Encarte", Preset: "print"},
		Assets:        AssetsConfig{HTTPTimeoutMs: 10000, MaxImageBytes: 20 << 20},
		Backend:       BackendConfig{TimeoutMs: 5000},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile     = "ENC_CONFIG"
	EnvHistoryCap     = "ENC_HISTORY_CAP"
	EnvHistoryBytes   = "ENC_HISTORY_BYTES"
	EnvGridSize       = "ENC_GRID_SIZE"
	EnvSnapThreshold  = "ENC_SNAP_THRESHOLD"
	EnvFontDir        = "ENC_FONT_DIR"
	EnvExportPreset   = "ENC_EXPORT_PRESET"
	EnvAssetTimeoutMs = "ENC_ASSET_TIMEOUT_MS"
	EnvBackendDSN     = "ENC_PG_DSN"
	EnvLogLevel       = "ENC_LOG_LEVEL"
	EnvLogFormat      = "ENC_LOG_FORMAT"
	EnvLogSource      = "ENC_LOG_SOURCE"
	EnvLogFile        = "ENC_LOG_FILE"
)

const (
	keyringService = "Encarte"
	keyringBackend = "backend_password"
)

// secretStore abstracts the keyring so tests can stub it.
var secretStore SecretStore = osKeyring{}

type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements SecretStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ConfigPath returns the per-user config file path. ENC_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Encarte")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Encarte")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "encarte")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "encarte")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and merges environment overrides.
// The backend password is fetched from the keyring and returned separately; a missing entry is not an error.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", err
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	secret, _ := secretStore.Get(keyringService, keyringBackend)
	return cfg, secret, nil
}

// Save writes the user config YAML and stores the backend password in the keyring (if non-empty).
func Save(cfg AppConfig, backendPassword string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if backendPassword != "" {
		if err := secretStore.Set(keyringService, keyringBackend, backendPassword); err != nil {
			return err
		}
	}
	return nil
}

// ForgetBackendPassword removes the stored backend password.
func ForgetBackendPassword() error {
	err := secretStore.Delete(keyringService, keyringBackend)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Editor.HistoryCap > 0 {
		dst.Editor.HistoryCap = src.Editor.HistoryCap
	}
	if src.Editor.HistoryBytes > 0 {
		dst.Editor.HistoryBytes = src.Editor.HistoryBytes
	}
	if src.Editor.HistoryMergeMs > 0 {
		dst.Editor.HistoryMergeMs = src.Editor.HistoryMergeMs
	}
	if src.Editor.GridSize > 0 {
		dst.Editor.GridSize = src.Editor.GridSize
	}
	if src.Editor.SnapThreshold > 0 {
		dst.Editor.SnapThreshold = src.Editor.SnapThreshold
	}
	if src.Editor.DuplicateOffset != 0 {
		dst.Editor.DuplicateOffset = src.Editor.DuplicateOffset
	}
	if src.Editor.MinSize > 0 {
		dst.Editor.MinSize = src.Editor.MinSize
	}
	if src.Canvas.LandscapeWidth > 0 && src.Canvas.LandscapeHeight > 0 {
		dst.Canvas.LandscapeWidth = src.Canvas.LandscapeWidth
		dst.Canvas.LandscapeHeight = src.Canvas.LandscapeHeight
	}
	if src.Canvas.PortraitWidth > 0 && src.Canvas.PortraitHeight > 0 {
		dst.Canvas.PortraitWidth = src.Canvas.PortraitWidth
		dst.Canvas.PortraitHeight = src.Canvas.PortraitHeight
	}
	if s := strings.TrimSpace(src.Export.Author); s != "" {
		dst.Export.Author = s
	}
	if s := strings.ToLower(strings.TrimSpace(src.Export.Preset)); s != "" {
		dst.Export.Preset = s
	}
	if s := strings.TrimSpace(src.Export.FontDir); s != "" {
		dst.Export.FontDir = s
	}
	if src.Assets.HTTPTimeoutMs > 0 {
		dst.Assets.HTTPTimeoutMs = src.Assets.HTTPTimeoutMs
	}
	if src.Assets.MaxImageBytes > 0 {
		dst.Assets.MaxImageBytes = src.Assets.MaxImageBytes
	}
	if s := strings.TrimSpace(src.Backend.DSN); s != "" {
		dst.Backend.DSN = s
	}
	if src.Backend.TimeoutMs > 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if n, ok := envInt(EnvHistoryCap); ok && n > 0 {
		cfg.Editor.HistoryCap = n
	}
	if n, ok := envInt(EnvHistoryBytes); ok && n >= 0 {
		cfg.Editor.HistoryBytes = n
	}
	if f, ok := envFloat(EnvGridSize); ok && f > 0 {
		cfg.Editor.GridSize = f
	}
	if f, ok := envFloat(EnvSnapThreshold); ok && f > 0 {
		cfg.Editor.SnapThreshold = f
	}
	if v := strings.TrimSpace(os.Getenv(EnvFontDir)); v != "" {
		cfg.Export.FontDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportPreset)); v != "" {
		cfg.Export.Preset = strings.ToLower(v)
	}
	if n, ok := envInt(EnvAssetTimeoutMs); ok && n > 0 {
		cfg.Assets.HTTPTimeoutMs = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendDSN)); v != "" {
		cfg.Backend.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func envFloat(key string) (float64, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// AssetTimeout returns the http fetch timeout for assets.
func (a AssetsConfig) AssetTimeout() time.Duration {
	if a.HTTPTimeoutMs <= 0 {
		return time.Duration(Defaults().Assets.HTTPTimeoutMs) * time.Millisecond
	}
	return time.Duration(a.HTTPTimeoutMs) * time.Millisecond
}

// Timeout returns the backend query timeout.
// HistoryCoalesce returns the interval under which commits merge into one undo step.
func (e EditorConfig) HistoryCoalesce() time.Duration {
	if e.HistoryMergeMs <= 0 {
		return 0
	}
	return time.Duration(e.HistoryMergeMs) * time.Millisecond
}

func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// LoadDotEnv exports the variables of a .env file (default ./.env) that are not
// already set. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Size returns the logical canvas width and height for portrait or landscape.
// Non-positive values fall back to the defaults.
func (c CanvasConfig) Size(portrait bool) (w, h float64) {
	d := Defaults().Canvas
	if portrait {
		w, h = c.PortraitWidth, c.PortraitHeight
		if w <= 0 || h <= 0 {
			w, h = d.PortraitWidth, d.PortraitHeight
		}
		return w, h
	}
	w, h = c.LandscapeWidth, c.LandscapeHeight
	if w <= 0 || h <= 0 {
		w, h = d.LandscapeWidth, d.LandscapeHeight
	}
	return w, h
}
