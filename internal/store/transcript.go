/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"blockcanvas/internal/domain"
	applog "blockcanvas/internal/log"
	"blockcanvas/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// TranscriptDirName stores per-workspace ephemeral/index data.
	TranscriptDirName  = ".bcv"
	TranscriptFileName = "transcript.sqlite"

	// transcriptSchemaVersion tracks the local SQLite schema. Bump on
	// breaking changes and add a migration step below.
	transcriptSchemaVersion = 1
)

// TranscriptPath returns the full path to the workspace transcript database.
func TranscriptPath(root string) string {
	return filepath.Join(root, TranscriptDirName, TranscriptFileName)
}

// Transcript is an append-only record of every applied form step, kept in an
// embedded SQLite database beside the workspace files. It exists for replay
// and export; the JSON records remain the source of truth.
type Transcript struct {
	db  *sql.DB
	log *slog.Logger
}

// TranscriptRow is one recorded step as read back from the index.
type TranscriptRow struct {
	ProjectID  string
	NodeID     string
	Step       int
	Answers    map[string]any
	RecordedAt time.Time
}

// OpenTranscript opens (or creates) the transcript database under
// root/.bcv/transcript.sqlite, enables WAL, and ensures the schema exists.
func OpenTranscript(root string) (*Transcript, error) {
	l := applog.WithOperation(applog.WithComponent("store"), "transcript_open").With(
		slog.String("root", root),
	)
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, TranscriptDirName), 0o755); err != nil {
		l.Error("create .bcv dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .bcv dir: %w", err)
	}

	path := TranscriptPath(root)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureTranscriptSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure transcript schema failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("transcript ready", slog.String("path", path))
	return &Transcript{db: db, log: applog.WithComponent("transcript")}, nil
}

// Close releases the underlying database handle.
func (t *Transcript) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}

// RecordStep appends a step to the transcript. The step number is the
// 1-based position of the record in the node's history.
func (t *Transcript) RecordStep(ctx context.Context, projectID, nodeID string, step int, rec domain.StepRecord) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	var schema []byte
	if rec.Schema != nil {
		schema, err = json.Marshal(rec.Schema)
		if err != nil {
			return fmt.Errorf("marshal schema: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO steps (project_id, node_id, step, answers, schema, recorded_at) VALUES(?, ?, ?, ?, ?, ?)`,
		projectID, nodeID, step, string(answers), string(schema), now)
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// NodeSteps returns the recorded steps for one node in step order.
func (t *Transcript) NodeSteps(ctx context.Context, projectID, nodeID string) ([]TranscriptRow, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT project_id, node_id, step, answers, recorded_at FROM steps WHERE project_id=? AND node_id=? ORDER BY step ASC`,
		projectID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var out []TranscriptRow
	for rows.Next() {
		var r TranscriptRow
		var answers, recorded string
		if err := rows.Scan(&r.ProjectID, &r.NodeID, &r.Step, &answers, &recorded); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if answers != "" {
			if err := json.Unmarshal([]byte(answers), &r.Answers); err != nil {
				t.log.Warn("transcript answers unreadable", slog.String("node", r.NodeID), slog.Int("step", r.Step), slog.Any("err", err))
			}
		}
		if ts, perr := time.Parse(time.RFC3339Nano, recorded); perr == nil {
			r.RecordedAt = ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func ensureTranscriptSchema(ctx context.Context, db *sql.DB) error {
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
		`CREATE TABLE IF NOT EXISTS steps (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id  TEXT NOT NULL,
			node_id     TEXT NOT NULL,
			step        INTEGER NOT NULL,
			answers     TEXT NOT NULL,
			schema      TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_steps_node ON steps(project_id, node_id, step);`,
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
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, transcriptSchemaVersion, appv, now, now); err != nil {
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
