package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/sprite-ai/reqevo/internal/model"
)

const manifestName = "manifest.json"

// DateLayout is how commit dates are rendered into provenance.
const DateLayout = "2006-01-02 15:04:05 -0700"

// RepoOpener returns a repository holding the history named by d.
type RepoOpener func(ctx context.Context, d Descriptor) (*git.Repository, error)

// CloneInMemory clones a single branch of d.RemoteURL without a worktree.
func CloneInMemory(ctx context.Context, d Descriptor) (*git.Repository, error) {
	opts := &git.CloneOptions{
		URL:          d.RemoteURL,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if d.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(d.Branch)
	}

	repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, opts)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", d.RemoteURL, err)
	}
	return repo, nil
}

type manifest struct {
	RemoteURL string          `json:"remote_url"`
	Branch    string          `json:"branch"`
	Path      string          `json:"path"`
	FetchedAt time.Time       `json:"fetched_at"`
	Versions  []manifestEntry `json:"versions"`
}

type manifestEntry struct {
	ID         int              `json:"version_id"`
	File       string           `json:"file"`
	Provenance model.Provenance `json:"provenance"`
}

func (f *Fetcher) fetchGit(ctx context.Context, d Descriptor) ([]model.Version, error) {
	if d.Path == "" {
		return nil, errors.New("remote descriptor has no file path")
	}

	dir := filepath.Join(f.cacheDir, cacheKey(d))
	if cached, err := readCache(dir); err != nil {
		f.logger.Warn("ignoring unreadable version cache", "dir", dir, "error", err)
	} else if len(cached) > 0 {
		f.logger.Info("using cached versions, skipping clone", "dir", dir, "count", len(cached))
		return cached, nil
	}

	f.logger.Info("cloning repository", "url", d.RemoteURL, "branch", d.Branch)
	repo, err := f.open(ctx, d)
	if err != nil {
		return nil, err
	}

	versions, err := History(ctx, repo, d.Path)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		f.logger.Warn("no history found", "path", d.Path)
		return versions, nil
	}

	if err := materialize(dir, d, versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// History walks the commits that touched path, oldest first, and returns the
// file content at each one. Commits where the file is absent are skipped and
// IDs stay dense.
func History(ctx context.Context, repo *git.Repository, path string) ([]model.Version, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), FileName: &path})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var commits []*object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		commits = append(commits, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate log: %w", err)
	}

	// Log yields newest first.
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}

	versions := make([]model.Version, 0, len(commits))
	for _, c := range commits {
		file, err := c.File(path)
		if errors.Is(err, object.ErrFileNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s at %s: %w", path, c.Hash, err)
		}
		content, err := file.Contents()
		if err != nil {
			return nil, fmt.Errorf("read %s at %s: %w", path, c.Hash, err)
		}

		versions = append(versions, model.Version{
			ID:      len(versions) + 1,
			Content: content,
			Provenance: &model.Provenance{
				CommitHash: c.Hash.String(),
				Author:     c.Author.Name,
				Date:       c.Author.When.Format(DateLayout),
			},
		})
	}
	return versions, nil
}

// materialize writes v{id}_{short}{ext} files plus a manifest and points each
// version's Filename at its file.
func materialize(dir string, d Descriptor, versions []model.Version) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	ext := filepath.Ext(d.Path)
	if ext == "" {
		ext = ".txt"
	}

	m := manifest{
		RemoteURL: d.RemoteURL,
		Branch:    d.Branch,
		Path:      d.Path,
		FetchedAt: time.Now().UTC(),
	}
	for i := range versions {
		v := &versions[i]
		name := fmt.Sprintf("v%d_%s%s", v.ID, v.Provenance.ShortHash(), ext)
		local := filepath.Join(dir, name)
		if err := os.WriteFile(local, []byte(v.Content), 0o644); err != nil {
			return fmt.Errorf("write version %d: %w", v.ID, err)
		}
		v.Filename = local
		m.Versions = append(m.Versions, manifestEntry{ID: v.ID, File: name, Provenance: *v.Provenance})
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// readCache loads previously materialised versions. A missing directory is
// not an error. Without a manifest the provenance is recovered from file
// names alone.
func readCache(dir string) ([]model.Version, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	switch {
	case err == nil:
		return readManifest(dir, data)
	case errors.Is(err, os.ErrNotExist):
		return readVersionFiles(dir)
	default:
		return nil, err
	}
}

func readManifest(dir string, data []byte) ([]model.Version, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	versions := make([]model.Version, 0, len(m.Versions))
	for _, e := range m.Versions {
		local := filepath.Join(dir, e.File)
		content, err := os.ReadFile(local)
		if err != nil {
			return nil, fmt.Errorf("read cached version %d: %w", e.ID, err)
		}
		prov := e.Provenance
		versions = append(versions, model.Version{
			ID:         e.ID,
			Content:    string(content),
			Filename:   local,
			Provenance: &prov,
		})
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].ID < versions[j].ID })
	return versions, nil
}

func readVersionFiles(dir string) ([]model.Version, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var versions []model.Version
	for _, e := range entries {
		id, hash, ok := parseVersionFile(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		local := filepath.Join(dir, e.Name())
		content, err := os.ReadFile(local)
		if err != nil {
			return nil, fmt.Errorf("read cached version %d: %w", id, err)
		}
		versions = append(versions, model.Version{
			ID:         id,
			Content:    string(content),
			Filename:   local,
			Provenance: &model.Provenance{CommitHash: hash},
		})
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].ID < versions[j].ID })
	return versions, nil
}

// parseVersionFile splits "v12_abc1234.txt" into 12 and "abc1234".
func parseVersionFile(name string) (int, string, bool) {
	if !strings.HasPrefix(name, "v") {
		return 0, "", false
	}
	idPart, rest, ok := strings.Cut(name[1:], "_")
	if !ok {
		return 0, "", false
	}
	id, err := strconv.Atoi(idPart)
	if err != nil || id < 1 {
		return 0, "", false
	}
	hash := strings.TrimSuffix(rest, filepath.Ext(rest))
	return id, hash, hash != ""
}

// cacheKey names the version cache of d. The same path in another repository
// or on another branch gets its own directory.
func cacheKey(d Descriptor) string {
	sum := sha256.Sum256([]byte(d.RemoteURL + "\x00" + d.Branch))
	return safeName(d.Path) + "-" + hex.EncodeToString(sum[:])[:8]
}

func safeName(path string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(path)
}
