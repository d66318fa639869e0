// Package report renders a run's change records as HTML, JSON and text tables.
package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sprite-ai/reqevo/internal/catalog"
	"github.com/sprite-ai/reqevo/internal/model"
)

// Artifact file names written into the output directory.
const (
	HTMLFile = "report.html"
	JSONFile = "output.json"
)

// Input is everything a rendering needs.
type Input struct {
	Domain       string
	VersionCount int
	Records      []model.ChangeRecord
	Versions     []model.Version
	Catalog      *catalog.Catalog
	Iteration    int

	// Final hides the edit controls.
	Final bool
	// CallbackURL is the feedback gate root. Empty renders a read-only page.
	CallbackURL string
}

func (in Input) domain() string {
	if in.Domain == "" {
		return "Unknown Domain"
	}
	return in.Domain
}

func (in Input) catalog() *catalog.Catalog {
	if in.Catalog == nil {
		return catalog.Default()
	}
	return in.Catalog
}

// Reporter writes artifacts into a directory.
type Reporter struct {
	dir    string
	logger *slog.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// NewReporter returns a Reporter writing into dir.
func NewReporter(dir string, opts ...Option) *Reporter {
	r := &Reporter{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render writes report.html and output.json and returns the absolute path of
// the HTML file. Rendering the same input twice produces identical files.
func (r *Reporter) Render(ctx context.Context, in Input) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	if err := writeAtomic(filepath.Join(r.dir, JSONFile), func(w io.Writer) error {
		return WriteJSON(w, in)
	}); err != nil {
		return "", fmt.Errorf("writing %s: %w", JSONFile, err)
	}

	htmlPath := filepath.Join(r.dir, HTMLFile)
	if err := writeAtomic(htmlPath, func(w io.Writer) error {
		return WriteHTML(w, in)
	}); err != nil {
		return "", fmt.Errorf("writing %s: %w", HTMLFile, err)
	}

	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		abs = htmlPath
	}
	r.logger.Info("report rendered", "path", abs, "records", len(in.Records), "final", in.Final)
	return abs, nil
}

// writeAtomic writes through a temp file in the same directory, then renames.
func writeAtomic(path string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
