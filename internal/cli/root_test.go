package cli

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sprite-ai/reqevo/internal/analysis"
	"github.com/sprite-ai/reqevo/internal/config"
	"github.com/sprite-ai/reqevo/internal/model"
	"github.com/sprite-ai/reqevo/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, want := range []string{"run", "resume", "inspect", "report", "runs", "version"} {
		if !names[want] {
			t.Errorf("root command missing subcommand %q", want)
		}
	}
}

func TestVersionOutput(t *testing.T) {
	// version vars are set via ldflags; in tests they have their defaults
	if version != "dev" {
		t.Errorf("expected default version %q, got %q", "dev", version)
	}
}

func TestParseTargetLocal(t *testing.T) {
	domain, d, err := parseTarget([]string{"Payments", "v1.txt", "v2.txt"}, "")
	require.NoError(t, err)
	assert.Equal(t, "Payments", domain)
	assert.Equal(t, []string{"v1.txt", "v2.txt"}, d.Patterns)
	assert.False(t, d.IsRemote())

	_, d, err = parseTarget([]string{"Payments"}, "")
	require.NoError(t, err)
	assert.Empty(t, d.Patterns)

	_, _, err = parseTarget([]string{"Payments"}, "Other")
	assert.Error(t, err)
}

func TestParseTargetURL(t *testing.T) {
	url := "https://github.com/acme/specs/blob/main/docs/payments.md"

	domain, d, err := parseTarget([]string{url}, "")
	require.NoError(t, err)
	assert.Equal(t, "payments", domain)
	assert.Equal(t, "https://github.com/acme/specs.git", d.RemoteURL)
	assert.Equal(t, "main", d.Branch)
	assert.Equal(t, "docs/payments.md", d.Path)

	domain, _, err = parseTarget([]string{url}, "Payments")
	require.NoError(t, err)
	assert.Equal(t, "Payments", domain)

	_, _, err = parseTarget([]string{url, "extra.txt"}, "")
	assert.Error(t, err)

	_, _, err = parseTarget([]string{"https://gitlab.com/a/b/blob/main/x.md"}, "")
	assert.Error(t, err)
}

func TestDefaultRunName(t *testing.T) {
	tests := []struct {
		domain, want string
	}{
		{"Payments", "payments"},
		{"Online Banking (v2)", "online-banking-v2"},
		{"  ", "run"},
		{"école", "cole"},
		{strings.Repeat("a", 100), strings.Repeat("a", 64)},
	}
	for _, tt := range tests {
		got := defaultRunName(tt.domain)
		assert.Equal(t, tt.want, got, "domain %q", tt.domain)
		assert.True(t, store.ValidName(got), "name %q", got)
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	c := &config.Config{Logging: config.LoggingConfig{Level: "debug", Format: "json"}}
	newLogger(&buf, c).Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	c.Logging = config.LoggingConfig{Level: "warn", Format: "text"}
	l := newLogger(&buf, c)
	l.Info("dropped")
	l.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "msg=kept")
}

func TestNewClassifierFallsBackToHeuristic(t *testing.T) {
	c := &config.Config{Classifier: config.ClassifierConfig{Provider: config.ProviderAuto}}
	cl, err := newClassifier(c, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &analysis.Heuristic{}, cl)
}

func TestRunsTable(t *testing.T) {
	out := runsTable([]store.Summary{{
		Name:      "payments",
		Domain:    "Payments",
		Stage:     model.StageFeedback,
		Iteration: 2,
		Records:   7,
		Finalized: true,
		UpdatedAt: time.Now().Add(-3 * time.Hour),
	}})
	for _, want := range []string{"payments", "Payments", "7", "yes", "3 hours ago"} {
		assert.Contains(t, out, want)
	}
}

func TestReportInputIsFinal(t *testing.T) {
	in := reportInput(&model.RunState{
		Domain:   "Payments",
		Versions: []model.Version{{ID: 1}, {ID: 2}},
	})
	assert.True(t, in.Final)
	assert.Equal(t, 2, in.VersionCount)
	assert.Empty(t, in.CallbackURL)
}

// executeIn runs the root command with args in an isolated directory.
func executeIn(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("REQEVO_STORE_BACKEND", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := executeIn(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "reqevo dev")
}

func TestRunsAndReportCommands(t *testing.T) {
	dir := t.TempDir()

	fs, err := store.NewFileStore(dir+"/.reqevo/runs", false)
	require.NoError(t, err)
	run := &model.RunState{
		RunID:     "run-1",
		Name:      "payments",
		Domain:    "Payments",
		Stage:     model.StageDone,
		Iteration: 1,
		Finalized: true,
		Versions: []model.Version{
			{ID: 1, Content: "Refunds take 5 days."},
			{ID: 2, Content: "Refunds take 3 days."},
		},
		Records: []model.ChangeRecord{{
			DiffID: 1, OldVersionID: 1, NewVersionID: 2,
			DiffText: "- Refunds take 5 days.\n+ Refunds take 3 days.",
			Classification: model.Classification{
				Reason:      model.ReasonMeaningChange,
				Explanation: "Shorter window.",
				Status:      model.StatusClassified,
			},
		}},
	}
	require.NoError(t, fs.Save(context.Background(), "payments", run))
	require.NoError(t, fs.Close())

	out, err := executeIn(t, dir, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "payments")

	out, err = executeIn(t, dir, "report", "payments", "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "## Requirement Evolution: Payments")
	assert.Contains(t, out, "Meaning Change")

	out, err = executeIn(t, dir, "report", "payments", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"diff_id": 1`)

	_, err = executeIn(t, dir, "report", "missing", "--format", "text")
	assert.ErrorIs(t, err, model.ErrSnapshotNotFound)

	_, err = executeIn(t, dir, "report", "payments", "--format", "yaml")
	assert.Error(t, err)
}

func TestRunCommandLocalFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/v1.txt", "Refunds take 5 days.\nCards are stored.\n")
	writeFile(t, dir+"/v2.txt", "Refunds take 3 days.\nCards are stored.\n")
	writeFile(t, dir+"/.reqevo.yaml", "gate:\n  open_browser: false\n")

	// A canceled context fails the first stage; the failed run is still saved.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("OPENAI_API_KEY", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"run", "Payments", "v1.txt", "v2.txt"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.ExecuteContext(ctx)
	require.Error(t, err, "a canceled context stops the run while loading")
	assert.Contains(t, out.String(), "Start the run again")

	fs, err := store.NewFileStore(dir+"/.reqevo/runs", false)
	require.NoError(t, err)
	defer fs.Close()
	saved, err := fs.Load(context.Background(), "payments")
	require.NoError(t, err)
	assert.Equal(t, model.StageLoad, saved.Stage)
	assert.NotEmpty(t, saved.LastError)
}

func TestCheckOverwrite(t *testing.T) {
	ctx := context.Background()
	fs, err := store.NewFileStore(t.TempDir(), false)
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.Save(ctx, "draft", &model.RunState{Name: "draft", Stage: model.StageFeedback}))
	require.NoError(t, fs.Save(ctx, "final", &model.RunState{Name: "final", Stage: model.StageDone, Finalized: true}))

	assert.NoError(t, checkOverwrite(ctx, fs, "missing", false))
	assert.NoError(t, checkOverwrite(ctx, fs, "draft", false))
	assert.NoError(t, checkOverwrite(ctx, fs, "final", true))

	err = checkOverwrite(ctx, fs, "final", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}

func TestRunCommandKeepsFinalizedRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/v1.txt", "Refunds take 5 days.\n")
	writeFile(t, dir+"/v2.txt", "Refunds take 3 days.\n")
	writeFile(t, dir+"/.reqevo.yaml", "gate:\n  open_browser: false\n")

	fs, err := store.NewFileStore(dir+"/.reqevo/runs", false)
	require.NoError(t, err)
	final := &model.RunState{RunID: "run-1", Name: "payments", Domain: "Payments", Stage: model.StageDone, Finalized: true}
	require.NoError(t, fs.Save(context.Background(), "payments", final))
	require.NoError(t, fs.Close())

	_, err = executeIn(t, dir, "run", "Payments", "v1.txt", "v2.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is final")

	fs, err = store.NewFileStore(dir+"/.reqevo/runs", false)
	require.NoError(t, err)
	defer fs.Close()
	saved, err := fs.Load(context.Background(), "payments")
	require.NoError(t, err)
	assert.True(t, saved.Finalized, "the finalized snapshot is left untouched")
	assert.Equal(t, "run-1", saved.RunID)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
