// Package store persists run snapshots so a run can be inspected and resumed.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/sprite-ai/reqevo/internal/model"
)

// Store saves and loads run snapshots by name. A loaded snapshot has the
// same record order and IDs as the saved one.
type Store interface {
	Save(ctx context.Context, name string, st *model.RunState) error
	Load(ctx context.Context, name string) (*model.RunState, error)
	List(ctx context.Context) ([]Summary, error)
	Close() error
}

// Summary describes a stored run without its records.
type Summary struct {
	Name      string
	RunID     string
	Domain    string
	Stage     model.Stage
	Iteration int
	Records   int
	Finalized bool
	StartedAt time.Time
	UpdatedAt time.Time
}

func summarize(name string, st *model.RunState, updated time.Time) Summary {
	return Summary{
		Name:      name,
		RunID:     st.RunID,
		Domain:    st.Domain,
		Stage:     st.Stage,
		Iteration: st.Iteration,
		Records:   len(st.Records),
		Finalized: st.Finalized,
		StartedAt: st.StartedAt,
		UpdatedAt: updated,
	}
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidName reports whether name can be used as a snapshot name.
func ValidName(name string) bool {
	return len(name) <= 128 && namePattern.MatchString(name)
}

func checkName(name, op string) error {
	if !ValidName(name) {
		return &model.PersistenceError{Name: name, Op: op, Err: errors.New("invalid snapshot name")}
	}
	return nil
}

func encode(st *model.RunState) ([]byte, error) {
	if st == nil {
		return nil, errors.New("nil run state")
	}
	return json.MarshalIndent(st, "", "  ")
}

func decode(data []byte) (*model.RunState, error) {
	var st model.RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &st, nil
}

func notFound(name string) error {
	return &model.PersistenceError{Name: name, Op: "load", Err: model.ErrSnapshotNotFound}
}

// Options selects and configures a backend.
type Options struct {
	Backend    string // file, sqlite, redis or none
	Dir        string
	Compress   bool
	SQLitePath string
	RedisURL   string
}

// Open returns the configured backend. Backend "none" returns a nil Store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", "file":
		return NewFileStore(opts.Dir, opts.Compress)
	case "sqlite":
		return OpenSQLite(ctx, opts.SQLitePath)
	case "redis":
		return NewRedisStore(ctx, opts.RedisURL)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
