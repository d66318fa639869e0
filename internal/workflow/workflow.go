// Package workflow drives a run through load, diff, classify, report and
// the review gate, looping back to classify when the reviewer asks for it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sprite-ai/reqevo/internal/catalog"
	"github.com/sprite-ai/reqevo/internal/classify"
	"github.com/sprite-ai/reqevo/internal/feedback"
	"github.com/sprite-ai/reqevo/internal/metrics"
	"github.com/sprite-ai/reqevo/internal/model"
	"github.com/sprite-ai/reqevo/internal/report"
	"github.com/sprite-ai/reqevo/internal/source"
	"github.com/sprite-ai/reqevo/internal/store"
)

// Differ turns versions into change records.
type Differ interface {
	Diff(ctx context.Context, versions []model.Version) ([]model.ChangeRecord, error)
}

// Classifier updates the classifications of a batch of records.
type Classifier interface {
	Classify(ctx context.Context, records []model.ChangeRecord, versions []model.Version, corr model.Corrections) ([]model.ChangeRecord, classify.Summary, error)
}

// Reporter renders the run's artifacts.
type Reporter interface {
	Render(ctx context.Context, in report.Input) (string, error)
}

// Gate blocks until the reviewer decides.
type Gate interface {
	AwaitDecision(ctx context.Context, b feedback.Batch) (model.Decision, error)
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Source     source.Source
	Differ     Differ
	Classifier Classifier
	Reporter   Reporter
	Gate       Gate
}

// ErrRecordsChanged is returned when a stage renumbers, reorders or drops records.
var ErrRecordsChanged = errors.New("change records were renumbered, reordered or dropped")

// Controller owns a RunState and is the only thing that mutates it.
type Controller struct {
	deps    Deps
	store   store.Store
	catalog *catalog.Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithStore saves a snapshot after every stage.
func WithStore(s store.Store) Option {
	return func(c *Controller) {
		c.store = s
	}
}

// WithCatalog sets the reason catalog shown to reviewers.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(c *Controller) {
		c.catalog = cat
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New checks that every collaborator is present.
func New(deps Deps, opts ...Option) (*Controller, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("workflow: missing source")
	case deps.Differ == nil:
		return nil, errors.New("workflow: missing differ")
	case deps.Classifier == nil:
		return nil, errors.New("workflow: missing classifier")
	case deps.Reporter == nil:
		return nil, errors.New("workflow: missing reporter")
	case deps.Gate == nil:
		return nil, errors.New("workflow: missing gate")
	}

	c := &Controller{
		deps:    deps,
		catalog: catalog.Default(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run starts a new run named name over the versions d describes.
func (c *Controller) Run(ctx context.Context, name, domain string, d source.Descriptor) (*model.RunState, error) {
	st := &model.RunState{
		RunID:       uuid.NewString(),
		Name:        name,
		Domain:      domain,
		Source:      d.String(),
		Corrections: model.NoCorrections(),
		Stage:       model.StageLoad,
		StartedAt:   c.now().UTC(),
	}
	c.logger.Info("run started", "run", name, "run_id", st.RunID, "source", st.Source)
	return c.drive(ctx, st, &d)
}

// Resume continues a saved run from its next stage. A hint other than None
// re-enters classification with it. A finalized run ignores hints, renders
// its final artifact and stops.
func (c *Controller) Resume(ctx context.Context, name string, hint model.Corrections) (*model.RunState, error) {
	if c.store == nil {
		return nil, errors.New("resume needs a snapshot store")
	}
	st, err := c.store.Load(ctx, name)
	if err != nil {
		c.logger.Error("resume failed", "run", name, "error", err)
		return nil, err
	}
	st.LastError = ""

	switch {
	case st.Finalized:
		if hint.Kind != model.CorrectionNone {
			c.logger.Warn("run is finalized, ignoring corrections", "run", name)
		}
		st.Stage = model.StageReport
	case st.Stage == model.StageLoad:
		err := &model.StageError{Stage: model.StageLoad, Ident: name,
			Err: errors.New("run stopped before its versions were loaded; start it again")}
		c.logger.Error("resume failed", "run", name, "error", err)
		return st, err
	default:
		if st.Stage == model.StageDone {
			st.Stage = model.StageReport
		}
		if hint.Kind != model.CorrectionNone {
			st.Corrections = hint
			if st.Stage > model.StageClassify {
				st.Stage = model.StageClassify
			}
		}
	}

	c.logger.Info("run resumed", "run", name, "run_id", st.RunID, "stage", st.Stage.String(), "finalized", st.Finalized)
	return c.drive(ctx, st, nil)
}

// drive runs stages until Done or the first fatal error.
func (c *Controller) drive(ctx context.Context, st *model.RunState, d *source.Descriptor) (*model.RunState, error) {
	for st.Stage != model.StageDone {
		stage := st.Stage
		metrics.StageTransitions.WithLabelValues(stage.String()).Inc()
		c.logger.Debug("entering stage", "run", st.Name, "stage", stage.String(), "iteration", st.Iteration)

		ident, err := c.step(ctx, st, d)
		if err != nil {
			return st, c.fail(ctx, st, stage, ident, err)
		}
		if err := c.save(ctx, st); err != nil {
			return st, c.fail(ctx, st, stage, st.Name, err)
		}
	}

	metrics.StageTransitions.WithLabelValues(model.StageDone.String()).Inc()
	c.logger.Info("run done", "run", st.Name, "records", len(st.Records),
		"iterations", st.Iteration, "finalized", st.Finalized, "artifact", st.ArtifactPath)
	return st, nil
}

// step executes the current stage and advances st.Stage. It returns an
// identifier for error reporting.
func (c *Controller) step(ctx context.Context, st *model.RunState, d *source.Descriptor) (string, error) {
	switch st.Stage {
	case model.StageLoad:
		return st.Source, c.load(ctx, st, d)
	case model.StageDiff:
		return fmt.Sprintf("%d versions", len(st.Versions)), c.diff(ctx, st)
	case model.StageClassify:
		return fmt.Sprintf("iteration %d", st.Iteration+1), c.classify(ctx, st)
	case model.StageReport:
		return st.Name, c.report(ctx, st)
	case model.StageFeedback:
		return fmt.Sprintf("iteration %d", st.Iteration), c.feedback(ctx, st)
	default:
		return st.Name, fmt.Errorf("unknown stage %d", int(st.Stage))
	}
}

func (c *Controller) load(ctx context.Context, st *model.RunState, d *source.Descriptor) error {
	if d == nil {
		return errors.New("no source descriptor")
	}
	versions, err := c.deps.Source.Fetch(ctx, *d)
	if err != nil {
		return err
	}
	st.Versions = versions
	st.Stage = model.StageDiff
	c.logger.Info("versions loaded", "run", st.Name, "versions", len(versions))
	return nil
}

func (c *Controller) diff(ctx context.Context, st *model.RunState) error {
	records, err := c.deps.Differ.Diff(ctx, st.Versions)
	if err != nil {
		return err
	}
	if err := checkRecords(records, st.Versions); err != nil {
		return err
	}
	st.Records = records
	st.Stage = model.StageClassify
	c.logger.Info("versions diffed", "run", st.Name, "records", len(records))
	return nil
}

func (c *Controller) classify(ctx context.Context, st *model.RunState) error {
	out, sum, err := c.deps.Classifier.Classify(ctx, st.Records, st.Versions, st.Corrections)
	if err != nil && out == nil {
		return err
	}
	if cerr := sameRecords(st.Records, out); cerr != nil {
		return cerr
	}
	// Keep whatever finished before an interruption.
	st.Records = out
	if err != nil {
		return err
	}

	st.Corrections = model.NoCorrections()
	st.Iteration++
	st.Stage = model.StageReport
	c.logger.Info("records classified", "run", st.Name, "iteration", st.Iteration,
		"attempted", sum.Attempted, "classified", sum.Classified, "errored", sum.Errored)
	return nil
}

func (c *Controller) report(ctx context.Context, st *model.RunState) error {
	path, err := c.deps.Reporter.Render(ctx, report.Input{
		Domain:       st.Domain,
		VersionCount: len(st.Versions),
		Records:      st.Records,
		Versions:     st.Versions,
		Catalog:      c.catalog,
		Iteration:    st.Iteration,
		Final:        st.Finalized,
	})
	if err != nil {
		return err
	}
	st.ArtifactPath = path
	if st.Finalized {
		st.Stage = model.StageDone
	} else {
		st.Stage = model.StageFeedback
	}
	return nil
}

func (c *Controller) feedback(ctx context.Context, st *model.RunState) error {
	decision, err := c.deps.Gate.AwaitDecision(ctx, feedback.Batch{
		RunID:        st.RunID,
		Domain:       st.Domain,
		Iteration:    st.Iteration,
		VersionCount: len(st.Versions),
		Records:      st.Records,
		Reasons:      c.catalog.Reasons,
	})
	if err != nil {
		return err
	}

	c.logger.Info("review decided", "run", st.Name, "action", decision.Action.String(),
		"corrections", decision.Corrections.Kind.String(), "implicit", decision.Implicit)

	switch decision.Action {
	case model.ActionApprove:
		st.Stage = model.StageDone
	case model.ActionFinish:
		st.Finalized = true
		st.Stage = model.StageReport
	case model.ActionRetry:
		st.Corrections = decision.Corrections
		st.Stage = model.StageClassify
	default:
		return fmt.Errorf("unknown review action %d", int(decision.Action))
	}
	return nil
}

// fail records err on st, saves what exists and logs once.
func (c *Controller) fail(ctx context.Context, st *model.RunState, stage model.Stage, ident string, err error) error {
	serr := &model.StageError{Stage: stage, Ident: ident, Err: err}
	st.LastError = serr.Error()
	if saveErr := c.save(ctx, st); saveErr != nil {
		c.logger.Warn("saving failed run", "run", st.Name, "error", saveErr)
	}
	c.logger.Error("run stopped", "run", st.Name, "stage", stage.String(), "ident", ident, "error", err)
	return serr
}

// save writes a snapshot even after ctx is canceled.
func (c *Controller) save(ctx context.Context, st *model.RunState) error {
	if c.store == nil || st.Name == "" {
		return nil
	}
	return c.store.Save(context.WithoutCancel(ctx), st.Name, st)
}

// checkRecords verifies that ids are unique and increasing and that every
// record joins two adjacent versions.
func checkRecords(records []model.ChangeRecord, versions []model.Version) error {
	ids := make([]int, len(versions))
	for i, v := range versions {
		ids[i] = v.ID
	}
	sort.Ints(ids)
	next := make(map[int]int, len(ids))
	for i := 0; i+1 < len(ids); i++ {
		next[ids[i]] = ids[i+1]
	}
	prev := 0
	for _, r := range records {
		if r.DiffID <= prev {
			return fmt.Errorf("diff id %d after %d: ids must be unique and increasing", r.DiffID, prev)
		}
		prev = r.DiffID
		if n, ok := next[r.OldVersionID]; !ok || n != r.NewVersionID {
			return fmt.Errorf("diff %d joins versions %d and %d, which are not adjacent", r.DiffID, r.OldVersionID, r.NewVersionID)
		}
	}
	return nil
}

// sameRecords checks that only classifications differ between before and after.
func sameRecords(before, after []model.ChangeRecord) error {
	if len(before) != len(after) {
		return fmt.Errorf("%w: %d records became %d", ErrRecordsChanged, len(before), len(after))
	}
	for i := range before {
		a, b := before[i], after[i]
		a.Classification, b.Classification = model.Classification{}, model.Classification{}
		if a != b {
			return fmt.Errorf("%w: position %d held diff %d, now diff %d", ErrRecordsChanged, i, before[i].DiffID, after[i].DiffID)
		}
	}
	return nil
}
