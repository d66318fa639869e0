package diff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/reqevo/internal/model"
)

func versions(contents ...string) []model.Version {
	out := make([]model.Version, len(contents))
	for i, c := range contents {
		out[i] = model.Version{ID: i + 1, Content: c, Filename: "req.txt"}
	}
	return out
}

func TestDiffReplacedLine(t *testing.T) {
	records, err := NewDiffer().Diff(context.Background(), versions("A\nB\nC", "A\nX\nC"))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, 1, r.DiffID)
	assert.Equal(t, 1, r.OldVersionID)
	assert.Equal(t, 2, r.NewVersionID)
	assert.Equal(t, "B", r.OldSnippet)
	assert.Equal(t, "X", r.NewSnippet)
	assert.Equal(t, "- B\n+ X", r.DiffText)
	assert.Equal(t, model.StatusPending, r.Classification.Status)
	assert.Equal(t, model.ReasonUnset, r.Classification.Reason)
}

func TestDiffDeletedLine(t *testing.T) {
	records, err := NewDiffer().Diff(context.Background(), versions("A\nB", "A"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "B", records[0].OldSnippet)
	assert.Empty(t, records[0].NewSnippet)
	assert.Equal(t, "- B", records[0].DiffText)
}

func TestDiffIDsContinueAcrossPairs(t *testing.T) {
	records, err := NewDiffer().Diff(context.Background(), versions("A", "B", "C"))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 1, records[0].DiffID)
	assert.Equal(t, 1, records[0].OldVersionID)
	assert.Equal(t, 2, records[0].NewVersionID)

	assert.Equal(t, 2, records[1].DiffID)
	assert.Equal(t, 2, records[1].OldVersionID)
	assert.Equal(t, 3, records[1].NewVersionID)
}

func TestDiffUnevenBlock(t *testing.T) {
	// Two old lines rewritten into three new ones yields three records.
	records, err := NewDiffer().Diff(context.Background(),
		versions("keep\nold1\nold2\ntail", "keep\nnew1\nnew2\nnew3\ntail"))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "old1", records[0].OldSnippet)
	assert.Equal(t, "new1", records[0].NewSnippet)
	assert.Equal(t, "old2", records[1].OldSnippet)
	assert.Equal(t, "new2", records[1].NewSnippet)
	assert.Empty(t, records[2].OldSnippet)
	assert.Equal(t, "new3", records[2].NewSnippet)
	assert.Equal(t, "+ new3", records[2].DiffText)
}

func TestDiffIgnoresBlankLines(t *testing.T) {
	records, err := NewDiffer().Diff(context.Background(), versions("A\nB", "A\n\n\nB\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDiffEdgeCases(t *testing.T) {
	d := NewDiffer()

	records, err := d.Diff(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = d.Diff(context.Background(), versions("only"))
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = d.Diff(context.Background(), []model.Version{{ID: 1}, {ID: 1}})
	assert.Error(t, err)
}

func TestDiffSortsByVersionID(t *testing.T) {
	vs := versions("A", "B", "C")
	vs[0], vs[2] = vs[2], vs[0]

	records, err := NewDiffer().Diff(context.Background(), vs)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].OldSnippet)
	assert.Equal(t, "C", records[1].NewSnippet)
}

func TestDiffIDsAreDenseAndAdjacent(t *testing.T) {
	vs := versions(
		"r1\nr2\nr3",
		"r1\nr2 changed\nr3\nr4",
		"r2 changed\nr4\nr5\nr6",
		"r0\nr2 changed\nr4\nr6",
	)
	records, err := NewDiffer().Diff(context.Background(), vs)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	for i, r := range records {
		assert.Equal(t, i+1, r.DiffID)
		assert.Equal(t, r.OldVersionID+1, r.NewVersionID)
		if i > 0 {
			assert.GreaterOrEqual(t, r.OldVersionID, records[i-1].OldVersionID)
		}
	}
}

func TestDiffCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDiffer().Diff(ctx, versions("A", "B"))
	assert.ErrorIs(t, err, context.Canceled)
}

func materialized(t *testing.T) []model.Version {
	t.Helper()
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "v1_aaaaaaa.txt")
	newPath := filepath.Join(dir, "v2_bbbbbbb.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte("one\n"), 0o644))
	require.NoError(t, os.WriteFile(newPath, []byte("two\n"), 0o644))

	return []model.Version{
		{ID: 1, Content: "one", Filename: oldPath, Provenance: &model.Provenance{CommitHash: "aaaaaaa111", Date: "2024-01-01"}},
		{ID: 2, Content: "two", Filename: newPath, Provenance: &model.Provenance{CommitHash: "bbbbbbb222", Date: "2024-02-01"}},
	}
}

func TestDiffStructuralStrategy(t *testing.T) {
	var calls int
	stub := func(_ context.Context, _, _ string, contextLines int) (string, error) {
		calls++
		assert.Equal(t, 5, contextLines)
		return sampleDiff, nil
	}

	d := NewDiffer(WithGitDiff(stub), WithContextLines(5))
	records, err := d.Diff(context.Background(), materialized(t))
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].DiffID)
	assert.Equal(t, 2, records[1].DiffID)
	assert.Contains(t, records[0].DiffText, "@@ -1,3 +1,4 @@")
	assert.Contains(t, records[1].DiffText, "+Reports are emailed to admins.")
	assert.Equal(t, "aaaaaaa111", records[0].OldCommit)
	assert.Equal(t, "bbbbbbb222", records[0].NewCommit)
	assert.Equal(t, "2024-02-01", records[1].NewDate)
}

func TestDiffStructuralFallsBackToLines(t *testing.T) {
	stub := func(context.Context, string, string, int) (string, error) {
		return "", errors.New("git not installed")
	}

	records, err := NewDiffer(WithGitDiff(stub)).Diff(context.Background(), materialized(t))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "- one\n+ two", records[0].DiffText)
	assert.Equal(t, "aaaaaaa111", records[0].OldCommit)
}

func TestDiffStructuralKeepsHunksVerbatim(t *testing.T) {
	raw := "diff --git a/v1.txt b/v2.txt\n" +
		"--- a/v1.txt\n" +
		"+++ b/v2.txt\n" +
		"@@ -1 +1 @@\n" +
		"-Sessions expire.\r\n" +
		"+Sessions expire after 30 minutes.\n" +
		"\\ No newline at end of file\n"
	stub := func(context.Context, string, string, int) (string, error) {
		return raw, nil
	}

	records, err := NewDiffer(WithGitDiff(stub)).Diff(context.Background(), materialized(t))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "@@ -1 +1 @@\n-Sessions expire.\r\n+Sessions expire after 30 minutes.\n\\ No newline at end of file",
		records[0].DiffText)
}
