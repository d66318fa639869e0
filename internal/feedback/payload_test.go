package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/reqevo/internal/model"
)

var batchIDs = map[int]bool{1: true, 2: true, 3: true}

func TestParseSubmissionActions(t *testing.T) {
	d, err := ParseSubmission(Submission{"action": "approve", "reason_1": "typo"}, batchIDs)
	require.NoError(t, err)
	assert.Equal(t, model.ActionApprove, d.Action)

	d, err = ParseSubmission(Submission{"action": "FINISH"}, batchIDs)
	require.NoError(t, err)
	assert.Equal(t, model.ActionFinish, d.Action)
}

func TestParseSubmissionTargeted(t *testing.T) {
	d, err := ParseSubmission(Submission{
		"action":        "retry",
		"reason_3":      "Typo",
		"explanation_3": " fixes a misspelling ",
		"explanation_1": "",
		"reason_2":      "  ",
		"comment":       "ignored when targeted hints exist",
	}, batchIDs)
	require.NoError(t, err)

	assert.Equal(t, model.ActionRetry, d.Action)
	assert.Equal(t, model.CorrectionTargeted, d.Corrections.Kind)
	assert.Equal(t, map[int]model.Hint{
		3: {Reason: model.ReasonTypo, Explanation: "fixes a misspelling"},
	}, d.Corrections.Targeted)
}

func TestParseSubmissionGlobal(t *testing.T) {
	d, err := ParseSubmission(Submission{"action": "retry", "comment": "All of these are clarifications"}, batchIDs)
	require.NoError(t, err)
	assert.Equal(t, model.CorrectionGlobal, d.Corrections.Kind)
	assert.Equal(t, "All of these are clarifications", d.Corrections.Global)
}

func TestParseSubmissionBareRetry(t *testing.T) {
	d, err := ParseSubmission(Submission{"action": "retry", "reason_1": "", "comment": "   "}, batchIDs)
	require.NoError(t, err)
	assert.Equal(t, model.ActionRetry, d.Action)
	assert.Equal(t, model.CorrectionNone, d.Corrections.Kind)
}

func TestParseSubmissionProtocolErrors(t *testing.T) {
	tests := map[string]Submission{
		"missing action":   {},
		"unknown action":   {"action": "reject"},
		"unknown reason":   {"action": "retry", "reason_1": "vibes"},
		"error sentinel":   {"action": "retry", "reason_1": "error"},
		"unknown diff":     {"action": "retry", "reason_9": "typo"},
		"malformed id":     {"action": "retry", "explanation_x": "text"},
		"non-string value": {"action": "retry", "reason_1": 4.0},
		"non-string act":   {"action": true},
	}
	for name, sub := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSubmission(sub, batchIDs)
			var perr *model.FeedbackProtocolError
			assert.ErrorAs(t, err, &perr)
		})
	}
}
