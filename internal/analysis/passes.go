package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/sprite-ai/reqevo/internal/model"
)

var (
	examplePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\be\.g\.`),
		regexp.MustCompile(`(?i)\bfor (?:example|instance)\b`),
		regexp.MustCompile(`(?i)\bsuch as\b`),
		regexp.MustCompile(`(?i)\bexample\b`),
		regexp.MustCompile(`(?i)\bsee (?:figure|diagram|table)\b`),
	}

	// modal verbs ordered from strongest obligation to weakest
	modalPattern = regexp.MustCompile(`(?i)\b(must not|shall not|must|shall|should not|should|may|can)\b`)

	negationPattern = regexp.MustCompile(`(?i)\b(not|never|no longer|except)\b`)

	generalPattern = regexp.MustCompile(`(?i)\b(all|any|every|each|regardless of|including)\b`)

	wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// DeletionPass fires when the change only removes text.
func DeletionPass(ch Change) *Finding {
	if ch.Old == "" || ch.New != "" {
		return nil
	}
	return &Finding{
		Pass:       "deletion",
		Reason:     model.ReasonDeletion,
		Confidence: 0.9,
		Message:    "The requirement was removed.",
	}
}

// AdditionPass fires when the change only adds text.
func AdditionPass(ch Change) *Finding {
	if ch.New == "" || ch.Old != "" {
		return nil
	}
	if matchesAny(examplePatterns, ch.New) {
		return &Finding{
			Pass:       "addition",
			Reason:     model.ReasonDemonstration,
			Confidence: 0.85,
			Message:    "A new example was added to illustrate the requirements.",
		}
	}
	return &Finding{
		Pass:       "addition",
		Reason:     model.ReasonNewAddition,
		Confidence: 0.8,
		Message:    "A new requirement was introduced.",
	}
}

// TypoPass fires when old and new differ by a few characters only.
func TypoPass(ch Change) *Finding {
	if ch.Old == "" || ch.New == "" || ch.Old == ch.New {
		return nil
	}

	dmp := diffmatchpatch.New()
	dist := dmp.DiffLevenshtein(dmp.DiffMain(ch.Old, ch.New, false))
	longest := max(len(ch.Old), len(ch.New))

	if dist > 3 && float64(dist)/float64(longest) > 0.05 {
		return nil
	}
	// Flipping a modal or a negation is a tiny edit with a large effect.
	if modalsOf(ch.Old) != modalsOf(ch.New) || negationsOf(ch.Old) != negationsOf(ch.New) {
		return nil
	}
	return &Finding{
		Pass:       "typo",
		Reason:     model.ReasonTypo,
		Confidence: 0.8,
		Message:    fmt.Sprintf("Only %d character(s) changed; likely a spelling or punctuation fix.", dist),
	}
}

// ExamplePass fires when an edit introduces example wording.
func ExamplePass(ch Change) *Finding {
	if ch.Old == "" || ch.New == "" {
		return nil
	}
	if matchesAny(examplePatterns, ch.Old) || !matchesAny(examplePatterns, ch.New) {
		return nil
	}
	return &Finding{
		Pass:       "example",
		Reason:     model.ReasonDemonstration,
		Confidence: 0.75,
		Message:    "An example was added to help understand the requirement.",
	}
}

// MeaningPass fires when the obligation or polarity of a requirement flips.
func MeaningPass(ch Change) *Finding {
	if ch.Old == "" || ch.New == "" {
		return nil
	}
	oldModal, newModal := modalsOf(ch.Old), modalsOf(ch.New)
	if oldModal != newModal {
		return &Finding{
			Pass:       "meaning",
			Reason:     model.ReasonMeaningChange,
			Confidence: 0.7,
			Message:    fmt.Sprintf("The obligation changed from %q to %q.", oldModal, newModal),
		}
	}
	if negationsOf(ch.Old) != negationsOf(ch.New) {
		return &Finding{
			Pass:       "meaning",
			Reason:     model.ReasonMeaningChange,
			Confidence: 0.65,
			Message:    "A negation was added or removed, changing the intent.",
		}
	}
	return nil
}

// GeneralizationPass fires when universal quantifiers appear.
func GeneralizationPass(ch Change) *Finding {
	if ch.Old == "" || ch.New == "" {
		return nil
	}
	oldCount := len(generalPattern.FindAllString(ch.Old, -1))
	newCount := len(generalPattern.FindAllString(ch.New, -1))
	if newCount <= oldCount {
		return nil
	}
	return &Finding{
		Pass:       "generalization",
		Reason:     model.ReasonGeneralization,
		Confidence: 0.6,
		Message:    "The requirement was broadened to cover more cases.",
	}
}

// SummarizationPass fires when the new text is much shorter and reuses the old wording.
func SummarizationPass(ch Change) *Finding {
	if ch.Old == "" || ch.New == "" {
		return nil
	}
	oldWords, newWords := words(ch.Old), words(ch.New)
	if len(newWords) == 0 || float64(len(newWords)) > 0.7*float64(len(oldWords)) {
		return nil
	}
	if overlap(newWords, oldWords) < 0.6 {
		return nil
	}
	return &Finding{
		Pass:       "summarization",
		Reason:     model.ReasonSummarization,
		Confidence: 0.6,
		Message:    fmt.Sprintf("The requirement was shortened from %d to %d words.", len(oldWords), len(newWords)),
	}
}

// ClarificationPass fires when the new text keeps the old wording and adds detail.
func ClarificationPass(ch Change) *Finding {
	if ch.Old == "" || ch.New == "" {
		return nil
	}
	oldWords, newWords := words(ch.Old), words(ch.New)
	if len(newWords) <= len(oldWords) {
		return nil
	}
	if overlap(oldWords, newWords) < 0.7 {
		return nil
	}
	return &Finding{
		Pass:       "clarification",
		Reason:     model.ReasonClarification,
		Confidence: 0.55,
		Message:    "Detail was added to make the requirement easier to understand.",
	}
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func modalsOf(s string) string {
	return strings.ToLower(strings.Join(modalPattern.FindAllString(s, -1), ","))
}

func negationsOf(s string) int {
	return len(negationPattern.FindAllString(s, -1))
}

func words(s string) []string {
	return wordPattern.FindAllString(strings.ToLower(s), -1)
}

// overlap is the share of a's words that also occur in b.
func overlap(a, b []string) float64 {
	if len(a) == 0 {
		return 0
	}
	set := make(map[string]bool, len(b))
	for _, w := range b {
		set[w] = true
	}
	hits := 0
	for _, w := range a {
		if set[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(a))
}
