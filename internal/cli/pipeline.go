package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/sprite-ai/reqevo/internal/analysis"
	"github.com/sprite-ai/reqevo/internal/catalog"
	"github.com/sprite-ai/reqevo/internal/classify"
	"github.com/sprite-ai/reqevo/internal/config"
	"github.com/sprite-ai/reqevo/internal/diff"
	"github.com/sprite-ai/reqevo/internal/feedback"
	"github.com/sprite-ai/reqevo/internal/llm"
	"github.com/sprite-ai/reqevo/internal/report"
	"github.com/sprite-ai/reqevo/internal/source"
	"github.com/sprite-ai/reqevo/internal/store"
	"github.com/sprite-ai/reqevo/internal/workflow"
)

var errNoStore = errors.New("store.backend is none: runs are not saved")

// openStore opens the configured snapshot store. A nil store with a nil
// error means persistence is disabled.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	return store.Open(ctx, store.Options{
		Backend:    c.Store.Backend,
		Dir:        c.Store.Dir,
		Compress:   c.Store.Compress,
		SQLitePath: c.Store.SQLitePath,
		RedisURL:   c.Store.RedisURL,
	})
}

// requireStore is openStore for commands that only read saved runs.
func requireStore(ctx context.Context, c *config.Config) (store.Store, error) {
	s, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errNoStore
	}
	return s, nil
}

func newClassifier(c *config.Config, cat *catalog.Catalog, logger *slog.Logger) (classify.Classifier, error) {
	if !c.UseLLM() {
		logger.Info("no API key configured, using heuristic classifier")
		return analysis.NewHeuristic(), nil
	}

	retry := llm.DefaultRetryConfig()
	retry.MaxAttempts = c.Classifier.MaxAttempts
	retry.BackoffBase = c.Classifier.BackoffBase

	opts := []llm.ClientOption{
		llm.WithAPIKey(c.Classifier.APIKey),
		llm.WithHTTPClient(&http.Client{Timeout: c.Classifier.Timeout}),
		llm.WithRetryConfig(retry),
		llm.WithLogger(logger),
	}
	if c.Classifier.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(c.Classifier.BaseURL))
	}

	client := llm.NewClient(c.Classifier.Model, opts...)
	return classify.NewLLMClassifier(client, cat, c.Classifier.Temperature)
}

// newController assembles the pipeline from configuration. The returned
// store may be nil and must be closed by the caller otherwise.
func newController(ctx context.Context, c *config.Config, logger *slog.Logger, notify io.Writer) (*workflow.Controller, store.Store, error) {
	cat := catalog.Default()

	classifier, err := newClassifier(c, cat, logger)
	if err != nil {
		return nil, nil, err
	}

	st, err := openStore(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	deps := workflow.Deps{
		Source: source.NewFetcher(
			source.WithCacheDir(c.CacheDir),
			source.WithLogger(logger),
		),
		Differ:     diff.NewDiffer(diff.WithLogger(logger)),
		Classifier: classify.NewOrchestrator(classifier, classify.WithLogger(logger)),
		Reporter:   report.NewReporter(c.OutputDir, report.WithLogger(logger)),
		Gate: feedback.NewGate(
			feedback.WithAddress(c.Gate.Host, c.Gate.Port),
			feedback.WithBrowser(c.Gate.OpenBrowser),
			feedback.WithPage(report.ReviewPage),
			feedback.WithNotify(func(url string) {
				fmt.Fprintf(notify, "Review the classifications at %s\n", url)
			}),
			feedback.WithLogger(logger),
		),
	}

	opts := []workflow.Option{
		workflow.WithCatalog(cat),
		workflow.WithLogger(logger),
	}
	if st != nil {
		opts = append(opts, workflow.WithStore(st))
	}

	ctrl, err := workflow.New(deps, opts...)
	if err != nil {
		if st != nil {
			st.Close()
		}
		return nil, nil, err
	}
	return ctrl, st, nil
}

var nonNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// defaultRunName derives a snapshot name from the domain label.
func defaultRunName(domain string) string {
	name := nonNameChars.ReplaceAllString(strings.ToLower(domain), "-")
	if len(name) > 64 {
		name = name[:64]
	}
	name = strings.Trim(name, "-._")
	if name == "" {
		return "run"
	}
	return name
}
