// Package analysis is an offline classifier built from cheap textual passes.
// It needs no network access and is used when no language model is configured.
package analysis

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sprite-ai/reqevo/internal/classify"
	"github.com/sprite-ai/reqevo/internal/model"
)

// Change is the removed and added text of one change record.
type Change struct {
	Old string
	New string
}

// Finding is one pass's opinion about a change.
type Finding struct {
	Pass       string
	Reason     model.ReasonKind
	Confidence float64 // 0..1
	Message    string
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s (%.2f): %s", f.Pass, f.Reason, f.Confidence, f.Message)
}

// Pass inspects a change and returns a finding, or nil when it has no opinion.
type Pass func(ch Change) *Finding

// PassNames maps pass names to passes (for skipping by name).
var PassNames = map[string]Pass{
	"deletion":       DeletionPass,
	"addition":       AdditionPass,
	"typo":           TypoPass,
	"example":        ExamplePass,
	"meaning":        MeaningPass,
	"generalization": GeneralizationPass,
	"summarization":  SummarizationPass,
	"clarification":  ClarificationPass,
}

// Run executes all passes not in skip and returns findings, most confident first.
func Run(ch Change, skip []string) []Finding {
	skipSet := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipSet[s] = true
	}

	var findings []Finding
	for name, pass := range PassNames {
		if skipSet[name] {
			continue
		}
		if f := pass(ch); f != nil {
			findings = append(findings, *f)
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Confidence != findings[j].Confidence {
			return findings[i].Confidence > findings[j].Confidence
		}
		return findings[i].Pass < findings[j].Pass
	})
	return findings
}

// ParseDiffText splits record diff text into removed and added text. It
// accepts both "- old"/"+ new" pairs and raw unified hunks.
func ParseDiffText(text string) Change {
	var oldLines, newLines []string
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "@@"):
		case strings.HasPrefix(line, "-"):
			oldLines = append(oldLines, strings.TrimSpace(line[1:]))
		case strings.HasPrefix(line, "+"):
			newLines = append(newLines, strings.TrimSpace(line[1:]))
		}
	}
	return Change{
		Old: strings.TrimSpace(strings.Join(oldLines, " ")),
		New: strings.TrimSpace(strings.Join(newLines, " ")),
	}
}

// Heuristic is a classify.Classifier backed by the passes.
type Heuristic struct {
	skip []string
}

// NewHeuristic returns a classifier that ignores the named passes.
func NewHeuristic(skip ...string) *Heuristic {
	return &Heuristic{skip: skip}
}

var (
	mustBePattern  = regexp.MustCompile(`The reason kind MUST be ([^.\n]+)\.`)
	respectPattern = regexp.MustCompile(`Respect this explanation: (.+)`)
)

// Classify implements classify.Classifier. A reviewer directive naming a
// reason kind or an explanation is obeyed verbatim.
func (h *Heuristic) Classify(ctx context.Context, req classify.Request) (classify.Result, error) {
	if err := ctx.Err(); err != nil {
		return classify.Result{}, err
	}

	forced := ""
	if m := mustBePattern.FindStringSubmatch(req.Directive); m != nil {
		forced = strings.TrimSpace(m[1])
	}
	explanation := ""
	if m := respectPattern.FindStringSubmatch(req.Directive); m != nil {
		explanation = strings.TrimSpace(m[1])
	}

	ch := ParseDiffText(req.DiffText)
	findings := Run(ch, h.skip)

	if forced != "" {
		if explanation == "" {
			explanation = "Reason set by reviewer."
		}
		return classify.Result{Reason: forced, Explanation: explanation}, nil
	}

	if len(findings) == 0 {
		if explanation == "" {
			explanation = "No heuristic matched this change."
		}
		return classify.Result{Reason: model.ReasonOther.Label(), Explanation: explanation}, nil
	}

	best := findings[0]
	if explanation == "" {
		explanation = best.Message
	}
	return classify.Result{Reason: best.Reason.Label(), Explanation: explanation}, nil
}
