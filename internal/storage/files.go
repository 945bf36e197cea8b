/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"encarte/internal/domain"
	applog "encarte/internal/log"
)

const BackupsDirName = "backups"

// SaveTemplate writes t to path with transactional semantics and a timestamped
// backup of the previous file (if present) in <dir>/backups.
func SaveTemplate(path string, t domain.Template) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("template path is required")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	data, err := domain.EncodeTemplate(t)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		bdir := filepath.Join(dir, BackupsDirName)
		if err := os.MkdirAll(bdir, 0o755); err != nil {
			return fmt.Errorf("ensure backups dir: %w", err)
		}
		stamp := time.Now().Format("20060102-150405.000000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current template: %w", cerr)
		}
	}

	// temp file in the same directory, then rename over the target
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp template: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace template: %w", rerr)
	}
	return nil
}

// LoadTemplate reads, schema-validates and decodes a template file. If the
// file is unreadable or invalid, the latest backup is tried.
func LoadTemplate(path string) (domain.Template, error) {
	t, err := readTemplate(path)
	if err == nil {
		return t, nil
	}
	bt, berr := loadLatestBackup(path)
	if berr != nil {
		return domain.Template{}, fmt.Errorf("open template: %w; backup attempt: %v", err, berr)
	}
	applog.WithOperation(applog.WithComponent("storage"), "load_template").Warn("template unreadable, restored from backup",
		slog.String("path", path), slog.Any("err", err))
	return bt, nil
}

// DecodeTemplateJSON validates data against the schema and decodes it.
func DecodeTemplateJSON(data []byte) (domain.Template, error) {
	if err := ValidateTemplateJSON(data); err != nil {
		return domain.Template{}, err
	}
	return domain.DecodeTemplate(data)
}

func readTemplate(path string) (domain.Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.Template{}, err
	}
	return DecodeTemplateJSON(b)
}

// Backups returns the backup files of path, oldest first.
func Backups(path string) ([]string, error) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

func loadLatestBackup(path string) (domain.Template, error) {
	candidates, err := Backups(path)
	if err != nil {
		return domain.Template{}, err
	}
	if len(candidates) == 0 {
		return domain.Template{}, errors.New("no backups found")
	}
	latest := candidates[len(candidates)-1]
	t, err := readTemplate(latest)
	if err != nil {
		return domain.Template{}, fmt.Errorf("read latest backup: %w", err)
	}
	return t, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
