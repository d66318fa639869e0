package diff

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/sprite-ai/reqevo/internal/metrics"
	"github.com/sprite-ai/reqevo/internal/model"
)

// Strategy names the algorithm used for one version pair.
type Strategy string

const (
	StrategyStructural Strategy = "structural"
	StrategyLine       Strategy = "line"
)

// GitDiffFunc produces a unified diff between two files on disk.
type GitDiffFunc func(ctx context.Context, oldPath, newPath string, contextLines int) (string, error)

// Differ produces granular change records from an ordered list of versions.
type Differ struct {
	contextLines int
	gitDiff      GitDiffFunc
	logger       *slog.Logger
}

// Option configures a Differ.
type Option func(*Differ)

// WithContextLines sets the unified context used by the structural strategy.
func WithContextLines(n int) Option {
	return func(d *Differ) {
		d.contextLines = n
	}
}

// WithGitDiff replaces the git invocation used by the structural strategy.
func WithGitDiff(fn GitDiffFunc) Option {
	return func(d *Differ) {
		d.gitDiff = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Differ) {
		d.logger = logger
	}
}

// NewDiffer creates a Differ with git-backed structural diffs and 3 lines of context.
func NewDiffer(opts ...Option) *Differ {
	d := &Differ{
		contextLines: 3,
		gitDiff:      GitDiffNoIndex,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diff compares every consecutive pair of versions. Diff IDs come from one
// counter seeded at 1 and continue across pairs.
func (d *Differ) Diff(ctx context.Context, versions []model.Version) ([]model.ChangeRecord, error) {
	sorted := make([]model.Version, len(versions))
	copy(sorted, versions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return nil, fmt.Errorf("duplicate version id %d", sorted[i].ID)
		}
	}

	var records []model.ChangeRecord
	nextID := 1

	for i := 0; i+1 < len(sorted); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		oldV, newV := sorted[i], sorted[i+1]
		strategy := d.strategyFor(oldV, newV)

		var pair []model.ChangeRecord
		if strategy == StrategyStructural {
			hunks, err := d.structural(ctx, oldV, newV)
			if err != nil {
				d.logger.Warn("structural diff failed, using line alignment",
					"old_version", oldV.ID, "new_version", newV.ID, "error", err)
				strategy = StrategyLine
			} else {
				pair = hunks
			}
		}
		if strategy == StrategyLine {
			pair = lineRecords(oldV, newV)
		}

		for k := range pair {
			pair[k].DiffID = nextID
			nextID++
			passProvenance(&pair[k], oldV, newV)
		}

		d.logger.Debug("diffed version pair",
			"old_version", oldV.ID, "new_version", newV.ID,
			"strategy", string(strategy), "records", len(pair))
		metrics.DiffRecords.WithLabelValues(string(strategy)).Add(float64(len(pair)))

		records = append(records, pair...)
	}

	return records, nil
}

func (d *Differ) strategyFor(oldV, newV model.Version) Strategy {
	if oldV.Provenance == nil || newV.Provenance == nil {
		return StrategyLine
	}
	if !fileExists(oldV.Filename) || !fileExists(newV.Filename) {
		return StrategyLine
	}
	return StrategyStructural
}

// structural emits one record per hunk of the git diff between the materialized files.
func (d *Differ) structural(ctx context.Context, oldV, newV model.Version) ([]model.ChangeRecord, error) {
	raw, err := d.gitDiff(ctx, oldV.Filename, newV.Filename, d.contextLines)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	ds, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	_, added, deleted := ds.Stats()
	d.logger.Debug("parsed git diff", "old_version", oldV.ID, "new_version", newV.ID,
		"added", added, "deleted", deleted)

	var records []model.ChangeRecord
	for _, hunk := range RawHunks(ds.Raw) {
		records = append(records, newRecord(oldV, newV, hunk, "", ""))
	}
	return records, nil
}

// lineRecords aligns the non-blank lines of two versions. A run of n old lines
// against m new lines yields max(n, m) records: positional pairs first, then
// the leftover deletions or insertions.
func lineRecords(oldV, newV model.Version) []model.ChangeRecord {
	oldLines := RequirementLines(oldV.Content)
	newLines := RequirementLines(newV.Content)

	var records []model.ChangeRecord
	for _, op := range Align(oldLines, newLines) {
		if op.Tag == OpEqual {
			continue
		}

		oldChunk := oldLines[op.I1:op.I2]
		newChunk := newLines[op.J1:op.J2]

		n := max(len(oldChunk), len(newChunk))
		for k := 0; k < n; k++ {
			var oldLine, newLine string
			if k < len(oldChunk) {
				oldLine = oldChunk[k]
			}
			if k < len(newChunk) {
				newLine = newChunk[k]
			}
			records = append(records, newRecord(oldV, newV, pairText(oldLine, newLine), oldLine, newLine))
		}
	}
	return records
}

func pairText(oldLine, newLine string) string {
	var lines []string
	if oldLine != "" {
		lines = append(lines, "- "+oldLine)
	}
	if newLine != "" {
		lines = append(lines, "+ "+newLine)
	}
	return strings.Join(lines, "\n")
}

func newRecord(oldV, newV model.Version, text, oldSnippet, newSnippet string) model.ChangeRecord {
	return model.ChangeRecord{
		OldVersionID: oldV.ID,
		NewVersionID: newV.ID,
		DiffText:     text,
		OldSnippet:   oldSnippet,
		NewSnippet:   newSnippet,
		Classification: model.Classification{
			Reason: model.ReasonUnset,
			Status: model.StatusPending,
		},
	}
}

func passProvenance(r *model.ChangeRecord, oldV, newV model.Version) {
	if oldV.Provenance != nil {
		r.OldCommit = oldV.Provenance.CommitHash
		r.OldDate = oldV.Provenance.Date
	}
	if newV.Provenance != nil {
		r.NewCommit = newV.Provenance.CommitHash
		r.NewDate = newV.Provenance.Date
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
