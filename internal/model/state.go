package model

import (
	"fmt"
	"time"
)

// Stage is a state of the workflow state machine.
type Stage int

const (
	StageLoad Stage = iota
	StageDiff
	StageClassify
	StageReport
	StageFeedback
	StageDone
)

var stageNames = []string{"load", "diff", "classify", "report", "feedback", "done"}

func (s Stage) String() string {
	if s < StageLoad || s > StageDone {
		return "unknown"
	}
	return stageNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if s < StageLoad || s > StageDone {
		return nil, fmt.Errorf("unknown stage %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(b []byte) error {
	for i, name := range stageNames {
		if name == string(b) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", string(b))
}

// CorrectionKind tags the variant held by Corrections.
type CorrectionKind int

const (
	CorrectionNone CorrectionKind = iota
	CorrectionGlobal
	CorrectionTargeted
)

func (k CorrectionKind) String() string {
	switch k {
	case CorrectionNone:
		return "none"
	case CorrectionGlobal:
		return "global"
	case CorrectionTargeted:
		return "targeted"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k CorrectionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CorrectionKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "none":
		*k = CorrectionNone
	case "global":
		*k = CorrectionGlobal
	case "targeted":
		*k = CorrectionTargeted
	default:
		return fmt.Errorf("unknown correction kind %q", string(b))
	}
	return nil
}

// Hint is a reviewer correction aimed at a single change record.
// A zero Reason means no reason was supplied.
type Hint struct {
	Reason      ReasonKind `json:"reason,omitempty"`
	Explanation string     `json:"explanation,omitempty"`
}

// IsSet reports whether either field carries a correction.
func (h Hint) IsSet() bool {
	return h.Reason != ReasonUnset || h.Explanation != ""
}

// Corrections is the reviewer input carried into a classification pass.
type Corrections struct {
	Kind     CorrectionKind `json:"kind"`
	Global   string         `json:"global,omitempty"`
	Targeted map[int]Hint   `json:"targeted,omitempty"`
}

// NoCorrections returns the empty variant.
func NoCorrections() Corrections {
	return Corrections{Kind: CorrectionNone}
}

// GlobalHint returns a free-text hint applied to every record.
func GlobalHint(text string) Corrections {
	return Corrections{Kind: CorrectionGlobal, Global: text}
}

// TargetedHints returns per-record hints keyed by diff ID.
func TargetedHints(hints map[int]Hint) Corrections {
	return Corrections{Kind: CorrectionTargeted, Targeted: hints}
}

// Action is what the reviewer decided at the feedback gate.
type Action int

const (
	ActionApprove Action = iota
	ActionRetry
	ActionFinish
)

func (a Action) String() string {
	switch a {
	case ActionApprove:
		return "approve"
	case ActionRetry:
		return "retry"
	case ActionFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// ParseAction parses the wire name of an action.
func ParseAction(s string) (Action, bool) {
	switch s {
	case "approve":
		return ActionApprove, true
	case "retry":
		return ActionRetry, true
	case "finish":
		return ActionFinish, true
	}
	return ActionApprove, false
}

// Decision is the single outcome of one feedback gate invocation.
type Decision struct {
	Action      Action
	Corrections Corrections

	// Implicit is set when the decision was synthesized from cancellation.
	Implicit bool
}

// Approve returns an approve decision.
func Approve() Decision { return Decision{Action: ActionApprove} }

// Finalize returns a finish decision.
func Finalize() Decision { return Decision{Action: ActionFinish} }

// ApplyAndRetry returns a retry decision carrying corrections.
func ApplyAndRetry(c Corrections) Decision {
	return Decision{Action: ActionRetry, Corrections: c}
}

// RunState is the mutable state threaded through the workflow.
type RunState struct {
	RunID  string `json:"run_id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Source string `json:"source"`

	Versions    []Version      `json:"versions"`
	Records     []ChangeRecord `json:"records"`
	Corrections Corrections    `json:"corrections"`

	Stage     Stage     `json:"stage"`
	Iteration int       `json:"iteration"`
	StartedAt time.Time `json:"started_at"`
	Finalized bool      `json:"finalized"`

	ArtifactPath string `json:"artifact_path,omitempty"`
	LastError    string `json:"last_error,omitempty"`
}

// VersionIndex maps version IDs to versions.
func (s *RunState) VersionIndex() map[int]Version {
	m := make(map[int]Version, len(s.Versions))
	for _, v := range s.Versions {
		m[v.ID] = v
	}
	return m
}

// DiffIDs returns the record IDs in order.
func (s *RunState) DiffIDs() []int {
	ids := make([]int, len(s.Records))
	for i, r := range s.Records {
		ids[i] = r.DiffID
	}
	return ids
}
