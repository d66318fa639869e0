// Package diff turns consecutive document versions into atomic change records.
package diff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// File represents a single file in a unified diff with its parsed fragments.
type File struct {
	OldName      string
	NewName      string
	Fragments    []*gitdiff.TextFragment
	AddedLines   int
	DeletedLines int
}

// DiffSet holds the parsed diff for all files.
type DiffSet struct {
	Files []*File
	Raw   string
}

// Stats returns aggregate statistics.
func (ds *DiffSet) Stats() (files, added, deleted int) {
	files = len(ds.Files)
	for _, f := range ds.Files {
		added += f.AddedLines
		deleted += f.DeletedLines
	}
	return
}

// Parse reads a unified diff string and returns a DiffSet.
func Parse(raw string) (*DiffSet, error) {
	parsed, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	ds := &DiffSet{Raw: raw}
	for _, f := range parsed {
		df := &File{
			OldName: f.OldName,
			NewName: f.NewName,
		}

		for _, frag := range f.TextFragments {
			df.Fragments = append(df.Fragments, frag)
			for _, line := range frag.Lines {
				switch line.Op {
				case gitdiff.OpAdd:
					df.AddedLines++
				case gitdiff.OpDelete:
					df.DeletedLines++
				}
			}
		}

		ds.Files = append(ds.Files, df)
	}

	return ds, nil
}

// GitDiffNoIndex runs `git diff --no-index` between two files outside any repository.
// git exits with status 1 when the files differ; that is not treated as a failure.
func GitDiffNoIndex(ctx context.Context, oldPath, newPath string, contextLines int) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--no-index", "--no-color", "--no-ext-diff",
		fmt.Sprintf("--unified=%d", contextLines), "--", oldPath, newPath)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return string(out), nil
		}
		return "", fmt.Errorf("git diff: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return string(out), nil
}

// RawHunks slices raw unified diff output into its hunks, each running from an
// "@@" header to the line before the next header or file boundary. Lines are
// kept byte for byte, so "\ No newline at end of file" markers and carriage
// returns survive. The newline ending a hunk's last line is dropped.
func RawHunks(raw string) []string {
	var (
		hunks []string
		cur   []string
	)
	flush := func() {
		if cur != nil {
			hunks = append(hunks, strings.Join(cur, "\n"))
			cur = nil
		}
	}

	lines := strings.Split(raw, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "@@"):
			flush()
			cur = []string{line}
		case strings.HasPrefix(line, "diff --git "):
			flush()
		case cur != nil:
			cur = append(cur, line)
		}
	}
	flush()
	return hunks
}
