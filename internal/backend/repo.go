/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend stores templates in a shared Postgres database.
package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"encarte/internal/domain"
	applog "encarte/internal/log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrTemplateNotFound = errors.New("template not found in repository")

// TemplateRepo is the hosted template repository.
type TemplateRepo struct {
	db      *sql.DB
	timeout time.Duration
	log     *slog.Logger
}

// Open connects to Postgres. password, when set, overrides the one in dsn.
// A zero timeout means 5s per query.
func Open(ctx context.Context, dsn, password string, timeout time.Duration) (*TemplateRepo, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("backend dsn is required")
	}
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if password != "" {
		cfg.Password = password
	}
	db := stdlib.OpenDB(*cfg)
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &TemplateRepo{db: db, timeout: timeout, log: applog.WithComponent("backend")}
	pctx, cancel := r.ctx(ctx)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return r, nil
}

// NewTemplateRepo wraps an open pgx-backed *sql.DB.
func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{db: db, timeout: 5 * time.Second, log: applog.WithComponent("backend")}
}

func (r *TemplateRepo) Close() error { return r.db.Close() }

func (r *TemplateRepo) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.timeout)
}

// Migrate applies embedded SQL migrations in filename order, once each.
func (r *TemplateRepo) Migrate(ctx context.Context) error {
	l := applog.WithOperation(r.log, "migrate")
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	ctx, cancel := r.ctx(ctx)
	defer cancel()

	// dialect=PostgreSQL
	if _, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := r.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

// Entry is a listing row of the repository.
type Entry struct {
	Name        string
	Orientation domain.Orientation
	Elements    int
	Version     int64
	UpdatedAt   time.Time
}

// Put inserts or replaces a template and returns its new version.
func (r *TemplateRepo) Put(ctx context.Context, t domain.Template) (int64, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return 0, errors.New("template name is required")
	}
	t.Name = name
	if err := t.Validate(); err != nil {
		return 0, err
	}
	body, err := domain.EncodeTemplate(t)
	if err != nil {
		return 0, fmt.Errorf("marshal template: %w", err)
	}
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	var version int64
	err = r.db.QueryRowContext(ctx, `INSERT INTO templates(name, orientation, elements, body, search_vector)
		VALUES($1, $2, $3, $4, to_tsvector('simple', $5))
		ON CONFLICT(name) DO UPDATE SET orientation = excluded.orientation, elements = excluded.elements,
			body = excluded.body, search_vector = excluded.search_vector,
			version = templates.version + 1, updated_at = now()
		RETURNING version`,
		name, string(t.CanvasSize), len(t.Elements), string(body), templateText(t)).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("upsert template: %w", err)
	}
	r.log.Debug("template pushed", slog.String("template", name), slog.Int64("version", version))
	return version, nil
}

// Get fetches a template by name.
func (r *TemplateRepo) Get(ctx context.Context, name string) (domain.Template, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	var body []byte
	err := r.db.QueryRowContext(ctx, `SELECT body FROM templates WHERE name = $1`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if err != nil {
		return domain.Template{}, fmt.Errorf("select template: %w", err)
	}
	t, err := domain.DecodeTemplate(body)
	if err != nil {
		return domain.Template{}, fmt.Errorf("decode %s: %w", name, err)
	}
	if t.Name == "" {
		t.Name = name
	}
	return t, nil
}

// List returns all templates, most recently updated first.
func (r *TemplateRepo) List(ctx context.Context) ([]Entry, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT name, orientation, elements, version, updated_at FROM templates ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Entry
	for rows.Next() {
		var e Entry
		var o string
		if err := rows.Scan(&e.Name, &o, &e.Elements, &e.Version, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Orientation = domain.Orientation(o)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Search returns the names of templates whose text matches all words of q.
func (r *TemplateRepo) Search(ctx context.Context, q string) ([]string, error) {
	if strings.TrimSpace(q) == "" {
		return nil, errors.New("search text is required")
	}
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM templates WHERE search_vector @@ plainto_tsquery('simple', $1) ORDER BY name`, q)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Delete removes a template.
func (r *TemplateRepo) Delete(ctx context.Context, name string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return nil
}

// templateText joins the text of all text elements.
func templateText(t domain.Template) string {
	var parts []string
	for _, el := range t.Elements {
		if ts, ok := el.Shape.(*domain.TextShape); ok && strings.TrimSpace(ts.Text) != "" {
			parts = append(parts, ts.Text)
		}
	}
	return strings.Join(parts, "\n")
}
