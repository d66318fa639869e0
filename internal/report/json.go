package report

import (
	"encoding/json"
	"io"

	"github.com/sprite-ai/reqevo/internal/model"
)

// Output is the output.json document.
type Output struct {
	Domain       string      `json:"domain"`
	VersionCount int         `json:"number of versions"`
	Diffs        []DiffEntry `json:"diffs"`
}

// DiffEntry is one change record in output.json.
type DiffEntry struct {
	DiffID     int        `json:"diff_id"`
	ReasonType string     `json:"reason type"`
	ReasonText string     `json:"reason text"`
	OldVersion VersionRef `json:"old_version"`
	NewVersion VersionRef `json:"new_version"`
	Diff       string     `json:"diff"`
}

// VersionRef names one side of a change. RequirementID is always 0 for
// line-oriented documents.
type VersionRef struct {
	VersionID     int    `json:"version id"`
	RequirementID int    `json:"requirement id"`
	Content       string `json:"content"`
	Commit        string `json:"commit,omitempty"`
	Date          string `json:"date,omitempty"`
}

// BuildOutput assembles the output.json document.
func BuildOutput(in Input) Output {
	versions := make(map[int]model.Version, len(in.Versions))
	for _, v := range in.Versions {
		versions[v.ID] = v
	}

	out := Output{
		Domain:       in.domain(),
		VersionCount: versionCount(in),
		Diffs:        make([]DiffEntry, 0, len(in.Records)),
	}
	for _, r := range in.Records {
		out.Diffs = append(out.Diffs, DiffEntry{
			DiffID:     r.DiffID,
			ReasonType: r.Classification.Reason.Label(),
			ReasonText: r.Classification.Explanation,
			OldVersion: VersionRef{
				VersionID: r.OldVersionID,
				Content:   versions[r.OldVersionID].Content,
				Commit:    r.OldCommit,
				Date:      r.OldDate,
			},
			NewVersion: VersionRef{
				VersionID: r.NewVersionID,
				Content:   versions[r.NewVersionID].Content,
				Commit:    r.NewCommit,
				Date:      r.NewDate,
			},
			Diff: r.DiffText,
		})
	}
	return out
}

// WriteJSON writes the output.json document with two-space indentation.
func WriteJSON(w io.Writer, in Input) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildOutput(in))
}
