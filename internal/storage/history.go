/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"encarte/internal/undo"
)

// language=SQL
// dialect=SQLite
const upsertSessionSQL = `INSERT INTO sessions(template, cursor, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(template) DO UPDATE SET cursor=excluded.cursor, updated_at=excluded.updated_at`

// language=SQL
// dialect=SQLite
const insertHistorySQL = `INSERT INTO history(template, seq, ts, label, blob) VALUES (?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const listHistorySQL = `SELECT ts, label, blob FROM history WHERE template = ? ORDER BY seq`

// SaveHistory replaces the stored editing history of a library template.
func (lib *Library) SaveHistory(ctx context.Context, template string, entries []undo.Snapshot, cursor int) error {
	if len(entries) == 0 {
		return errors.New("empty history")
	}
	tx, err := lib.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE template = ?`, template); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, upsertSessionSQL, template, cursor, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		_ = tx.Rollback()
		if isConstraint(err) {
			return fmt.Errorf("%w: %s", ErrTemplateNotFound, template)
		}
		return fmt.Errorf("save session: %w", err)
	}
	for i, e := range entries {
		if _, err := tx.ExecContext(ctx, insertHistorySQL, template, i, e.TS.UTC().Format(time.RFC3339Nano), e.Label, e.Blob); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return tx.Commit()
}

// LoadHistory returns the stored history of a template, or no entries if none was saved.
func (lib *Library) LoadHistory(ctx context.Context, template string) ([]undo.Snapshot, int, error) {
	var cursor int
	err := lib.db.QueryRowContext(ctx, `SELECT cursor FROM sessions WHERE template = ?`, template).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	rows, err := lib.db.QueryContext(ctx, listHistorySQL, template)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()
	var out []undo.Snapshot
	for rows.Next() {
		var tsStr string
		var label sql.NullString
		var blob []byte
		if err := rows.Scan(&tsStr, &label, &blob); err != nil {
			return nil, 0, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, undo.Snapshot{Blob: blob, TS: ts, Label: label.String})
	}
	return out, cursor, rows.Err()
}

func isConstraint(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "constraint")
}
