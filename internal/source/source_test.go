package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/reqevo/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseGitHubURL(t *testing.T) {
	d, err := ParseGitHubURL("https://github.com/python/peps/blob/main/peps/pep-0008.rst")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/python/peps.git", d.RemoteURL)
	assert.Equal(t, "main", d.Branch)
	assert.Equal(t, "peps/pep-0008.rst", d.Path)
	assert.True(t, d.IsRemote())
}

func TestParseGitHubURLRejects(t *testing.T) {
	for _, raw := range []string{
		"https://gitlab.com/a/b/blob/main/x.txt",
		"https://github.com/a/b",
		"https://github.com/a/b/commits/main/x.txt",
	} {
		_, err := ParseGitHubURL(raw)
		assert.Error(t, err, raw)
	}
}

func TestFetchLocalOrdersGlobMatches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "v2.txt"), "second")
	writeFile(t, filepath.Join(dir, "v1.txt"), "first")
	writeFile(t, filepath.Join(dir, "notes.md"), "ignored")

	versions, err := NewFetcher().Fetch(context.Background(), Descriptor{
		Patterns: []string{filepath.Join(dir, "*.txt")},
	})
	require.NoError(t, err)
	require.Len(t, versions, 2)

	assert.Equal(t, 1, versions[0].ID)
	assert.Equal(t, "first", versions[0].Content)
	assert.Equal(t, 2, versions[1].ID)
	assert.Equal(t, "second", versions[1].Content)
	assert.Nil(t, versions[0].Provenance)
}

func TestFetchLocalKeepsArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	b := filepath.Join(dir, "b.txt")
	a := filepath.Join(dir, "a.txt")
	writeFile(t, b, "B")
	writeFile(t, a, "A")

	versions, err := NewFetcher().Fetch(context.Background(), Descriptor{Patterns: []string{b, a, b}})
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "B", versions[0].Content)
	assert.Equal(t, "A", versions[1].Content)
}

func TestFetchLocalEmptyGlobIsEmptyRun(t *testing.T) {
	versions, err := NewFetcher().Fetch(context.Background(), Descriptor{
		Patterns: []string{filepath.Join(t.TempDir(), "**", "*.txt")},
	})
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestFetchLocalMissingFile(t *testing.T) {
	_, err := NewFetcher().Fetch(context.Background(), Descriptor{
		Patterns: []string{filepath.Join(t.TempDir(), "missing.txt")},
	})

	var fetchErr *model.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetchRemoteOpenFailure(t *testing.T) {
	boom := errors.New("unreachable")
	f := NewFetcher(
		WithCacheDir(t.TempDir()),
		WithRepoOpener(func(context.Context, Descriptor) (*git.Repository, error) { return nil, boom }),
	)

	_, err := f.Fetch(context.Background(), Descriptor{RemoteURL: "https://example.invalid/r.git", Path: "req.txt"})
	var fetchErr *model.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, fetchErr.Source, "example.invalid")
}

func TestParseVersionFile(t *testing.T) {
	id, hash, ok := parseVersionFile("v12_abc1234.rst")
	require.True(t, ok)
	assert.Equal(t, 12, id)
	assert.Equal(t, "abc1234", hash)

	for _, name := range []string{"manifest.json", "vx_abc.txt", "v3.txt", "v0_abc.txt"} {
		_, _, ok := parseVersionFile(name)
		assert.False(t, ok, name)
	}
}
