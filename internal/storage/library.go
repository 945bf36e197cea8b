/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"encarte/internal/domain"
	applog "encarte/internal/log"
	"encarte/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	LibraryFileName = "library.sqlite"

	// schemaVersion tracks the local SQLite schema.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

var ErrTemplateNotFound = errors.New("template not found")

// Library is the local template library.
type Library struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// DefaultLibraryPath returns <user config dir>/encarte/library.sqlite.
func DefaultLibraryPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "encarte", LibraryFileName), nil
}

// OpenLibrary opens or creates the library database at path, enables WAL mode
// and migrates the schema to the current version.
func OpenLibrary(ctx context.Context, path string) (*Library, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "library_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("library path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create library dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	// Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureBaseSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("library ready")
	return &Library{db: db, path: path, log: applog.WithComponent("storage")}, nil
}

func (lib *Library) Close() error { return lib.db.Close() }

// Path returns the database file path.
func (lib *Library) Path() string { return lib.path }

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh databases start at 1 and migrate forward like existing ones
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// ensureBaseSchema creates the version 1 tables.
func ensureBaseSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS templates (
			name        TEXT PRIMARY KEY,
			orientation TEXT    NOT NULL,
			elements    INTEGER NOT NULL,
			body        TEXT    NOT NULL,
			updated_at  TEXT    NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			template   TEXT PRIMARY KEY REFERENCES templates(name) ON DELETE CASCADE,
			cursor     INTEGER NOT NULL,
			updated_at TEXT    NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS history (
			template TEXT    NOT NULL REFERENCES sessions(template) ON DELETE CASCADE,
			seq      INTEGER NOT NULL,
			ts       TEXT    NOT NULL,
			label    TEXT,
			blob     BLOB    NOT NULL,
			PRIMARY KEY(template, seq)
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		if err := migrate(ctx, tx, next); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", next, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

func migrate(ctx context.Context, tx *sql.Tx, step int) error {
	switch step {
	case 2:
		// full-text index over text elements, fed by triggers
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS documents (
				doc_id     INTEGER PRIMARY KEY,
				template   TEXT NOT NULL,
				element_id TEXT NOT NULL,
				text       TEXT
			);`,
			`CREATE INDEX IF NOT EXISTS idx_documents_template ON documents(template);`,
			`CREATE VIRTUAL TABLE IF NOT EXISTS fts_documents USING fts5(
				text,
				content='',
				tokenize = 'unicode61 remove_diacritics 2'
			);`,
			`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
				INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
			END;`,
			`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
				INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
			END;`,
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return err
			}
		}
		return reindexAll(ctx, tx)
	}
	return nil
}

// reindexAll rebuilds the text documents of every stored template.
func reindexAll(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT name, body FROM templates`)
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}
	type stored struct{ name, body string }
	var all []stored
	for rows.Next() {
		var s stored
		if err := rows.Scan(&s.name, &s.body); err != nil {
			_ = rows.Close()
			return err
		}
		all = append(all, s)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for _, s := range all {
		t, err := domain.DecodeTemplate([]byte(s.body))
		if err != nil {
			// unreadable rows stay unsearchable
			continue
		}
		if err := indexTemplate(ctx, tx, s.name, t); err != nil {
			return err
		}
	}
	return nil
}

func indexTemplate(ctx context.Context, tx *sql.Tx, name string, t domain.Template) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE template=?`, name); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO documents(template, element_id, text) VALUES(?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, el := range t.Elements {
		ts, ok := el.Shape.(*domain.TextShape)
		if !ok {
			continue
		}
		if s := strings.TrimSpace(ts.Text); s != "" {
			if _, err := ins.ExecContext(ctx, name, el.ID, s); err != nil {
				return fmt.Errorf("insert document: %w", err)
			}
		}
	}
	return nil
}

// TemplateInfo summarises a stored template.
type TemplateInfo struct {
	Name        string
	Orientation domain.Orientation
	Elements    int
	UpdatedAt   time.Time
}

// Put stores t under t.Name, replacing any previous version.
func (lib *Library) Put(ctx context.Context, t domain.Template) error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return errors.New("template name is required")
	}
	t.Name = name
	if err := t.Validate(); err != nil {
		return err
	}
	body, err := domain.EncodeTemplate(t)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	tx, err := lib.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO templates(name, orientation, elements, body, updated_at) VALUES(?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET orientation=excluded.orientation, elements=excluded.elements, body=excluded.body, updated_at=excluded.updated_at`,
		name, string(t.CanvasSize), len(t.Elements), string(body), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert template: %w", err)
	}
	if err := indexTemplate(ctx, tx, name, t); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	lib.log.Debug("template stored", slog.String("template", name), slog.Int("elements", len(t.Elements)))
	return nil
}

// Get loads the template stored under name.
func (lib *Library) Get(ctx context.Context, name string) (domain.Template, error) {
	var body string
	err := lib.db.QueryRowContext(ctx, `SELECT body FROM templates WHERE name=?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if err != nil {
		return domain.Template{}, err
	}
	return domain.DecodeTemplate([]byte(body))
}

// List returns all stored templates ordered by name.
func (lib *Library) List(ctx context.Context) ([]TemplateInfo, error) {
	rows, err := lib.db.QueryContext(ctx, `SELECT name, orientation, elements, updated_at FROM templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()
	var out []TemplateInfo
	for rows.Next() {
		var ti TemplateInfo
		var o, ts string
		if err := rows.Scan(&ti.Name, &o, &ti.Elements, &ts); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ti.Orientation = domain.Orientation(o)
		ti.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, ti)
	}
	return out, rows.Err()
}

// Delete removes a template together with its search documents and history.
func (lib *Library) Delete(ctx context.Context, name string) error {
	tx, err := lib.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, q := range []string{
		`DELETE FROM documents WHERE template=?`,
		`DELETE FROM history WHERE template=?`,
		`DELETE FROM sessions WHERE template=?`,
	} {
		if _, err := tx.ExecContext(ctx, q, name); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE name=?`, name)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return tx.Commit()
}

// Check runs a quick integrity check of the database.
func (lib *Library) Check(ctx context.Context) error {
	var chk string
	if err := lib.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if !strings.Contains(strings.ToLower(chk), "ok") {
		return fmt.Errorf("library corrupted: %s", chk)
	}
	return nil
}

// Reindex rebuilds the full-text documents from the stored templates.
func (lib *Library) Reindex(ctx context.Context) error {
	tx, err := lib.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear documents: %w", err)
	}
	if err := reindexAll(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
