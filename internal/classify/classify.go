// Package classify assigns a reason to each change record and folds reviewer
// corrections back into the next classification pass.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sprite-ai/reqevo/internal/metrics"
	"github.com/sprite-ai/reqevo/internal/model"
)

// Request is everything a classifier sees for one change.
type Request struct {
	DiffID    int
	OldText   string
	NewText   string
	DiffText  string
	Directive string
}

// Result is an unvalidated classifier answer. Reason is free text and is
// parsed into a model.ReasonKind by the orchestrator.
type Result struct {
	Reason      string `json:"reason_type"`
	Explanation string `json:"reason_text"`
}

// Classifier labels a single change. Implementations are untrusted.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Result, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, req Request) (Result, error)

func (f ClassifierFunc) Classify(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Summary counts the outcomes of one batch.
type Summary struct {
	Attempted  int `json:"attempted"`
	Classified int `json:"classified"`
	Errored    int `json:"errored"`
	Skipped    int `json:"skipped"`
}

// ErrUnknownReason is returned when a classifier answers outside the reason set.
var ErrUnknownReason = errors.New("reason is not a recognised kind")

// Orchestrator decides which records to (re)classify and applies the results.
type Orchestrator struct {
	classifier Classifier
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator wraps a classifier.
func NewOrchestrator(c Classifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		classifier: c,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Classify returns an updated copy of records. For each record, in priority
// order: a targeted hint forces a directed call, a pending record gets a plain
// call, an active global hint gets a call carrying the hint, and anything
// else is left untouched. Per-record failures mark that record as an error
// and the batch continues. Cancellation stops before the next call and
// returns the records processed so far along with ctx.Err().
func (o *Orchestrator) Classify(ctx context.Context, records []model.ChangeRecord, versions []model.Version, corr model.Corrections) ([]model.ChangeRecord, Summary, error) {
	out := make([]model.ChangeRecord, len(records))
	copy(out, records)

	content := make(map[int]string, len(versions))
	for _, v := range versions {
		content[v.ID] = v.Content
	}

	global := ""
	if corr.Kind == model.CorrectionGlobal {
		global = strings.TrimSpace(corr.Global)
	}

	var sum Summary
	for i := range out {
		rec := &out[i]

		directive, run := o.selectDirective(rec, corr, global)
		if !run {
			sum.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			sum.Skipped += len(out) - i
			return out, sum, err
		}

		sum.Attempted++
		req := Request{
			DiffID:    rec.DiffID,
			OldText:   content[rec.OldVersionID],
			NewText:   content[rec.NewVersionID],
			DiffText:  rec.DiffText,
			Directive: directive,
		}

		start := time.Now()
		cls, err := o.classifyOne(ctx, req)
		metrics.ClassifyDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			if ctx.Err() != nil {
				// The call was interrupted, not answered; leave the record as it was.
				sum.Attempted--
				sum.Skipped += len(out) - i
				return out, sum, ctx.Err()
			}
			cerr := &model.ClassificationError{DiffID: rec.DiffID, Err: err}
			o.logger.Warn("classification failed", "diff_id", rec.DiffID, "error", cerr)
			rec.Classification = model.Classification{
				Reason:      model.ReasonError,
				Explanation: "Analysis failed: " + err.Error(),
				Status:      model.StatusError,
			}
			sum.Errored++
		} else {
			rec.Classification = cls
			sum.Classified++
		}
		metrics.Classifications.WithLabelValues(rec.Classification.Status.String()).Inc()
	}

	o.logger.Info("classification batch done",
		"attempted", sum.Attempted,
		"classified", sum.Classified,
		"errored", sum.Errored,
		"skipped", sum.Skipped)
	return out, sum, nil
}

func (o *Orchestrator) selectDirective(rec *model.ChangeRecord, corr model.Corrections, global string) (string, bool) {
	if corr.Kind == model.CorrectionTargeted {
		if hint, ok := corr.Targeted[rec.DiffID]; ok && hint.IsSet() {
			return TargetedDirective(hint), true
		}
	}
	if rec.Classification.Status == model.StatusPending {
		return "", true
	}
	if global != "" {
		return GlobalDirective(global), true
	}
	return "", false
}

func (o *Orchestrator) classifyOne(ctx context.Context, req Request) (model.Classification, error) {
	res, err := o.classifier.Classify(ctx, req)
	if err != nil {
		return model.Classification{}, err
	}

	kind, ok := model.ParseReasonKind(res.Reason)
	if !ok || !kind.Valid() {
		return model.Classification{}, fmt.Errorf("%w: %q", ErrUnknownReason, res.Reason)
	}

	return model.Classification{
		Reason:      kind,
		Explanation: strings.TrimSpace(res.Explanation),
		Status:      model.StatusClassified,
	}, nil
}

// TargetedDirective phrases a per-record hint as an instruction.
func TargetedDirective(h model.Hint) string {
	var parts []string
	if h.Reason.Valid() {
		parts = append(parts, fmt.Sprintf("The reason kind MUST be %s.", h.Reason.Label()))
	}
	if e := strings.TrimSpace(h.Explanation); e != "" {
		parts = append(parts, "Respect this explanation: "+e)
	}
	return strings.Join(parts, "\n")
}

// GlobalDirective phrases a free-text reviewer comment as an instruction.
func GlobalDirective(text string) string {
	return fmt.Sprintf("IMPORTANT: The user rejected a previous analysis with the following feedback/correction:\n'%s'\nPlease adjust your analysis to respect this feedback.", text)
}
