// Package source loads the ordered versions of a requirements document,
// either from local files or from the commit history of one file in a git
// repository.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sprite-ai/reqevo/internal/model"
)

// DefaultPattern is used when a local descriptor names no files.
const DefaultPattern = "requirements/*.txt"

// Descriptor says where versions come from. A descriptor with a RemoteURL
// is a git source; otherwise Patterns are local paths or globs.
type Descriptor struct {
	Patterns []string `json:"patterns,omitempty"`

	RemoteURL string `json:"remote_url,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Path      string `json:"path,omitempty"`
}

// IsRemote reports whether the descriptor points at git history.
func (d Descriptor) IsRemote() bool {
	return d.RemoteURL != ""
}

func (d Descriptor) String() string {
	if d.IsRemote() {
		return fmt.Sprintf("%s@%s:%s", d.RemoteURL, d.Branch, d.Path)
	}
	if len(d.Patterns) == 0 {
		return DefaultPattern
	}
	return strings.Join(d.Patterns, ",")
}

// ParseGitHubURL turns https://github.com/<user>/<repo>/blob/<branch>/<path>
// into a remote descriptor.
func ParseGitHubURL(raw string) (Descriptor, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Descriptor{}, fmt.Errorf("parsing url: %w", err)
	}
	if u.Host != "github.com" && u.Host != "www.github.com" {
		return Descriptor{}, fmt.Errorf("unsupported host %q: only github.com file URLs are supported", u.Host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 5 || (parts[2] != "blob" && parts[2] != "tree") {
		return Descriptor{}, fmt.Errorf("invalid github file url %q: want /<user>/<repo>/blob/<branch>/<path>", raw)
	}

	return Descriptor{
		RemoteURL: fmt.Sprintf("https://github.com/%s/%s.git", parts[0], strings.TrimSuffix(parts[1], ".git")),
		Branch:    parts[3],
		Path:      strings.Join(parts[4:], "/"),
	}, nil
}

// LooksLikeURL reports whether a run target should be parsed as a remote URL.
func LooksLikeURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// Source fetches the chronological versions named by a descriptor.
type Source interface {
	Fetch(ctx context.Context, d Descriptor) ([]model.Version, error)
}

// Fetcher is the default Source. Git history is cached under cacheDir.
type Fetcher struct {
	cacheDir string
	open     RepoOpener
	logger   *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCacheDir sets the directory git versions are materialised into.
func WithCacheDir(dir string) Option {
	return func(f *Fetcher) {
		f.cacheDir = dir
	}
}

// WithRepoOpener replaces how remote repositories are obtained.
func WithRepoOpener(open RepoOpener) Option {
	return func(f *Fetcher) {
		f.open = open
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher returns a Fetcher that clones into memory and caches under ./versions.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		cacheDir: "versions",
		open:     CloneInMemory,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns versions with IDs from 1 in chronological order. An empty
// result is a valid empty run. Failures are reported as *model.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, d Descriptor) ([]model.Version, error) {
	var (
		versions []model.Version
		err      error
	)
	if d.IsRemote() {
		versions, err = f.fetchGit(ctx, d)
	} else {
		versions, err = f.fetchLocal(ctx, d)
	}
	if err != nil {
		return nil, &model.FetchError{Source: d.String(), Err: err}
	}

	f.logger.Info("loaded versions", "source", d.String(), "count", len(versions))
	return versions, nil
}

func (f *Fetcher) fetchLocal(ctx context.Context, d Descriptor) ([]model.Version, error) {
	patterns := d.Patterns
	if len(patterns) == 0 {
		patterns = []string{DefaultPattern}
	}

	paths, err := expandPatterns(patterns)
	if err != nil {
		return nil, err
	}

	versions := make([]model.Version, 0, len(paths))
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		versions = append(versions, model.Version{
			ID:       i + 1,
			Content:  string(data),
			Filename: p,
		})
	}
	return versions, nil
}

// expandPatterns resolves each pattern in order. Matches of one glob are
// sorted lexically; a literal path must exist. Duplicates keep their first position.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	for _, pattern := range patterns {
		var matches []string
		if containsGlob(pattern) {
			m, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", pattern, err)
			}
			sort.Strings(m)
			matches = m
		} else {
			info, err := os.Stat(pattern)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", pattern, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("%s is a directory", pattern)
			}
			matches = []string{pattern}
		}

		for _, m := range matches {
			clean := filepath.Clean(m)
			if seen[clean] {
				continue
			}
			seen[clean] = true
			out = append(out, clean)
		}
	}
	return out, nil
}

func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
