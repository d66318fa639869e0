// Package model defines the core data types shared across reqevo.
package model

import (
	"fmt"
	"strings"
)

// ReasonKind categorizes why a requirement changed.
type ReasonKind int

const (
	ReasonUnset ReasonKind = iota
	ReasonContradiction
	ReasonMistake
	ReasonTypo
	ReasonGeneralization
	ReasonClarification
	ReasonMeaningChange
	ReasonSummarization
	ReasonDeletion
	ReasonDemonstration
	ReasonNewAddition
	ReasonOther
	ReasonError
)

var reasonSlugs = map[ReasonKind]string{
	ReasonUnset:          "pending",
	ReasonContradiction:  "contradiction",
	ReasonMistake:        "mistake",
	ReasonTypo:           "typo",
	ReasonGeneralization: "generalization",
	ReasonClarification:  "clarification",
	ReasonMeaningChange:  "meaning-change",
	ReasonSummarization:  "summarization",
	ReasonDeletion:       "deletion",
	ReasonDemonstration:  "demonstration",
	ReasonNewAddition:    "new-addition",
	ReasonOther:          "other",
	ReasonError:          "error",
}

var reasonLabels = map[ReasonKind]string{
	ReasonUnset:          "Pending Analysis",
	ReasonContradiction:  "Contradiction",
	ReasonMistake:        "Mistake",
	ReasonTypo:           "Typo",
	ReasonGeneralization: "Generalization",
	ReasonClarification:  "Clarification",
	ReasonMeaningChange:  "Meaning Change",
	ReasonSummarization:  "Summarization",
	ReasonDeletion:       "Deletion",
	ReasonDemonstration:  "Demonstration",
	ReasonNewAddition:    "New Addition",
	ReasonOther:          "Other",
	ReasonError:          "Error",
}

// Aliases accepted from classifiers and reviewers, keyed by normalized form.
var reasonAliases = map[string]ReasonKind{
	"contradiction":    ReasonContradiction,
	"mistake":          ReasonMistake,
	"fix":              ReasonMistake,
	"typo":             ReasonTypo,
	"spelling":         ReasonTypo,
	"generalization":   ReasonGeneralization,
	"generalisation":   ReasonGeneralization,
	"inclusion":        ReasonGeneralization,
	"clarification":    ReasonClarification,
	"meaning-change":   ReasonMeaningChange,
	"meaning":          ReasonMeaningChange,
	"summarization":    ReasonSummarization,
	"summarisation":    ReasonSummarization,
	"shortening":       ReasonSummarization,
	"deletion":         ReasonDeletion,
	"removal":          ReasonDeletion,
	"demonstration":    ReasonDemonstration,
	"example":          ReasonDemonstration,
	"visualization":    ReasonDemonstration,
	"new-addition":     ReasonNewAddition,
	"addition":         ReasonNewAddition,
	"new":              ReasonNewAddition,
	"other":            ReasonOther,
	"error":            ReasonError,
	"pending":          ReasonUnset,
	"pending-analysis": ReasonUnset,

	"clarification-of-a-requirement": ReasonClarification,
}

func (r ReasonKind) String() string {
	if s, ok := reasonSlugs[r]; ok {
		return s
	}
	return "unknown"
}

// Label returns the human-readable name used in reports.
func (r ReasonKind) Label() string {
	if s, ok := reasonLabels[r]; ok {
		return s
	}
	return "Unknown"
}

// Valid reports whether r is an acceptable classifier output.
// The pending placeholder and the error sentinel are not.
func (r ReasonKind) Valid() bool {
	return r > ReasonUnset && r < ReasonError
}

// MarshalText implements encoding.TextMarshaler.
func (r ReasonKind) MarshalText() ([]byte, error) {
	s, ok := reasonSlugs[r]
	if !ok {
		return nil, fmt.Errorf("unknown reason kind %d", int(r))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ReasonKind) UnmarshalText(b []byte) error {
	k, ok := ParseReasonKind(string(b))
	if !ok {
		return fmt.Errorf("unknown reason kind %q", string(b))
	}
	*r = k
	return nil
}

// ParseReasonKind maps free text such as "Meaning", "Summarization/shortening" or
// "Demonstration (example, visualization)" onto the closed enumeration.
func ParseReasonKind(s string) (ReasonKind, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(norm, "(/:"); i > 0 {
		norm = strings.TrimSpace(norm[:i])
	}
	norm = strings.Join(strings.FieldsFunc(norm, func(c rune) bool {
		return c == ' ' || c == '_' || c == '-'
	}), "-")
	if norm == "" {
		return ReasonUnset, false
	}
	k, ok := reasonAliases[norm]
	return k, ok
}

// AllReasons returns every kind a classifier may return, in catalog order.
func AllReasons() []ReasonKind {
	out := make([]ReasonKind, 0, int(ReasonError)-1)
	for k := ReasonContradiction; k < ReasonError; k++ {
		out = append(out, k)
	}
	return out
}

// Status tracks where a change record is in classification.
type Status int

const (
	StatusPending Status = iota
	StatusClassified
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusClassified:
		return "classified"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s < StatusPending || s > StatusError {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pending":
		*s = StatusPending
	case "classified":
		*s = StatusClassified
	case "error":
		*s = StatusError
	default:
		return fmt.Errorf("unknown status %q", string(b))
	}
	return nil
}

// Provenance records where a version came from in repository history.
type Provenance struct {
	CommitHash string `json:"commit_hash"`
	Author     string `json:"author"`
	Date       string `json:"date"`
}

// ShortHash returns the abbreviated commit hash.
func (p *Provenance) ShortHash() string {
	if p == nil {
		return ""
	}
	if len(p.CommitHash) > 7 {
		return p.CommitHash[:7]
	}
	return p.CommitHash
}

// Version is one snapshot of the tracked document.
type Version struct {
	ID         int         `json:"version_id"`
	Content    string      `json:"content"`
	Filename   string      `json:"filename"`
	Provenance *Provenance `json:"provenance,omitempty"`
}

// Classification is the advisory verdict attached to a change record.
type Classification struct {
	Reason      ReasonKind `json:"reason_kind"`
	Explanation string     `json:"explanation"`
	Status      Status     `json:"status"`
}

// ChangeRecord is one atomic change between two adjacent versions.
type ChangeRecord struct {
	DiffID       int    `json:"diff_id"`
	OldVersionID int    `json:"old_version_id"`
	NewVersionID int    `json:"new_version_id"`
	DiffText     string `json:"diff_text"`
	OldSnippet   string `json:"old_snippet"`
	NewSnippet   string `json:"new_snippet"`

	// Provenance pass-through, display only.
	OldCommit string `json:"old_commit,omitempty"`
	NewCommit string `json:"new_commit,omitempty"`
	OldDate   string `json:"old_date,omitempty"`
	NewDate   string `json:"new_date,omitempty"`

	Classification Classification `json:"classification"`
}

// Tally counts records per status.
func Tally(records []ChangeRecord) (pending, classified, failed int) {
	for _, r := range records {
		switch r.Classification.Status {
		case StatusPending:
			pending++
		case StatusClassified:
			classified++
		case StatusError:
			failed++
		}
	}
	return
}

// ReasonCounts counts records per reason kind.
func ReasonCounts(records []ChangeRecord) map[ReasonKind]int {
	m := make(map[ReasonKind]int)
	for _, r := range records {
		m[r.Classification.Reason]++
	}
	return m
}
