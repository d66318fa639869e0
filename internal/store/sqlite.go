package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sprite-ai/reqevo/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	name TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	domain TEXT NOT NULL,
	stage TEXT NOT NULL,
	iteration INTEGER NOT NULL,
	records INTEGER NOT NULL,
	finalized INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_updated ON runs(updated_at);
`

// SQLiteStore keeps snapshots in a single sqlite table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite creates or opens the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite store needs a path")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Save inserts or replaces the snapshot row.
func (s *SQLiteStore) Save(ctx context.Context, name string, st *model.RunState) error {
	if err := checkName(name, "save"); err != nil {
		return err
	}
	data, err := encode(st)
	if err != nil {
		return &model.PersistenceError{Name: name, Op: "save", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (name, run_id, domain, stage, iteration, records, finalized, started_at, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		name, st.RunID, st.Domain, st.Stage.String(), st.Iteration, len(st.Records), st.Finalized,
		st.StartedAt.UTC().Format(time.RFC3339Nano), s.now().UnixNano(), string(data))
	if err != nil {
		return &model.PersistenceError{Name: name, Op: "save", Err: err}
	}
	return nil
}

// Load reads the snapshot row.
func (s *SQLiteStore) Load(ctx context.Context, name string) (*model.RunState, error) {
	if err := checkName(name, "load"); err != nil {
		return nil, err
	}

	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM runs WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, &model.PersistenceError{Name: name, Op: "load", Err: err}
	}

	st, err := decode([]byte(data))
	if err != nil {
		return nil, &model.PersistenceError{Name: name, Op: "load", Err: err}
	}
	return st, nil
}

// List reads the summary columns only.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, run_id, domain, stage, iteration, records, finalized, started_at, updated_at
		FROM runs ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum       Summary
			stage     string
			startedAt string
			updatedAt int64
		)
		if err := rows.Scan(&sum.Name, &sum.RunID, &sum.Domain, &stage, &sum.Iteration, &sum.Records,
			&sum.Finalized, &startedAt, &updatedAt); err != nil {
			return nil, &model.PersistenceError{Op: "list", Err: err}
		}
		if err := sum.Stage.UnmarshalText([]byte(stage)); err != nil {
			return nil, &model.PersistenceError{Name: sum.Name, Op: "list", Err: err}
		}
		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			sum.StartedAt = t
		}
		sum.UpdatedAt = time.Unix(0, updatedAt)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.PersistenceError{Op: "list", Err: err}
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
