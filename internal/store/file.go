package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/sprite-ai/reqevo/internal/model"
)

const (
	jsonExt = ".json"
	zstExt  = ".json.zst"
)

// FileStore keeps one file per run: <dir>/<name>.json, or <name>.json.zst
// when compression is on.
type FileStore struct {
	dir      string
	compress bool

	mu      sync.Mutex
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, compress bool) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store needs a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &FileStore{dir: dir, compress: compress, encoder: encoder, decoder: decoder}, nil
}

func (s *FileStore) path(name string, compressed bool) string {
	if compressed {
		return filepath.Join(s.dir, name+zstExt)
	}
	return filepath.Join(s.dir, name+jsonExt)
}

// Save writes the snapshot and removes a copy in the other encoding.
func (s *FileStore) Save(ctx context.Context, name string, st *model.RunState) error {
	if err := checkName(name, "save"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &model.PersistenceError{Name: name, Op: "save", Err: err}
	}

	data, err := encode(st)
	if err != nil {
		return &model.PersistenceError{Name: name, Op: "save", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.compress {
		data = s.encoder.EncodeAll(data, nil)
	}
	if err := writeFileAtomic(s.path(name, s.compress), data); err != nil {
		return &model.PersistenceError{Name: name, Op: "save", Err: err}
	}
	if err := os.Remove(s.path(name, !s.compress)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &model.PersistenceError{Name: name, Op: "save", Err: err}
	}
	return nil
}

// Load reads a snapshot in either encoding.
func (s *FileStore) Load(ctx context.Context, name string) (*model.RunState, error) {
	if err := checkName(name, "load"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &model.PersistenceError{Name: name, Op: "load", Err: err}
	}

	st, _, err := s.read(name)
	return st, err
}

func (s *FileStore) read(name string) (*model.RunState, fs.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, compressed := range []bool{true, false} {
		path := s.path(name, compressed)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, nil, &model.PersistenceError{Name: name, Op: "load", Err: err}
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, nil, &model.PersistenceError{Name: name, Op: "load", Err: err}
		}

		if compressed {
			data, err = s.decoder.DecodeAll(data, nil)
			if err != nil {
				return nil, nil, &model.PersistenceError{Name: name, Op: "load", Err: fmt.Errorf("decompressing: %w", err)}
			}
		}
		st, err := decode(data)
		if err != nil {
			return nil, nil, &model.PersistenceError{Name: name, Op: "load", Err: err}
		}
		return st, info, nil
	}
	return nil, nil, notFound(name)
}

// List summarizes every snapshot, most recently saved first.
func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list", Err: err}
	}

	seen := make(map[string]bool)
	var out []Summary
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, &model.PersistenceError{Op: "list", Err: err}
		}
		if e.IsDir() {
			continue
		}
		var name string
		switch fn := e.Name(); {
		case strings.HasSuffix(fn, zstExt):
			name = strings.TrimSuffix(fn, zstExt)
		case strings.HasSuffix(fn, jsonExt):
			name = strings.TrimSuffix(fn, jsonExt)
		default:
			continue
		}
		if !ValidName(name) || seen[name] {
			continue
		}
		seen[name] = true

		st, info, err := s.read(name)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(name, st, info.ModTime()))
	}

	sortSummaries(out)
	return out, nil
}

// Close releases the zstd decoder.
func (s *FileStore) Close() error {
	s.decoder.Close()
	return s.encoder.Close()
}

func sortSummaries(out []Summary) {
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Name < out[j].Name
	})
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
