/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report and an autosave of the open template.
package crash

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"encarte/internal/domain"
	applog "encarte/internal/log"
	"encarte/internal/storage"
	"encarte/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Session describes the template open at the time of a crash.
// Current returns the state to autosave; ok=false skips the autosave.
type Session struct {
	Path    string
	Current func() (t domain.Template, ok bool)
}

var (
	mu     sync.Mutex
	active *Session
)

// Watch registers the session Recover falls back to when called with nil.
func Watch(s *Session) {
	mu.Lock()
	defer mu.Unlock()
	active = s
}

func watched() *Session {
	mu.Lock()
	defer mu.Unlock()
	return active
}

// Recover captures a panic, logs an error with stacktrace,
// writes an error report file, and attempts a crash-safe autosave
// of the open template (if any).
//
// Usage: defer crash.Recover(nil)
func Recover(s *Session) {
	if r := recover(); r != nil {
		if s == nil {
			s = watched()
		}
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, _ := writeReport(s, r, stack)
		if s != nil {
			if path, err := Autosave(s); err != nil {
				l.Error("autosave failed", slog.Any("err", err))
			} else {
				l.Info("autosave written", slog.String("path", path))
			}
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		// Exit with a non-zero code to indicate failure in CLI context.
		exitFn(2)
	}
}

// Autosave writes the session's current template next to its file as
// backups/<name>.autosave-<stamp>.json and returns that path.
func Autosave(s *Session) (string, error) {
	if s == nil || s.Current == nil || strings.TrimSpace(s.Path) == "" {
		return "", errors.New("no open template")
	}
	t, ok := s.Current()
	if !ok {
		return "", errors.New("no template state to save")
	}
	base := filepath.Base(s.Path)
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(filepath.Dir(s.Path), storage.BackupsDirName,
		fmt.Sprintf("%s.autosave-%s.json", strings.TrimSuffix(base, filepath.Ext(base)), stamp))
	if err := storage.SaveTemplate(path, t); err != nil {
		return "", err
	}
	return path, nil
}

func writeReport(s *Session, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if s != nil && s.Path != "" {
		dir = filepath.Join(filepath.Dir(s.Path), storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
	}
	stamp := time.Now().Format("20060102-150405")
	fname := fmt.Sprintf("crash-%s.log", stamp)
	path := filepath.Join(dir, fname)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Encarte Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if s != nil {
		_, _ = fmt.Fprintf(&buf, "Template: %s\n", s.Path)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()
	return path, nil
}
