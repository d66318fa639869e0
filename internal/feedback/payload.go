package feedback

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sprite-ai/reqevo/internal/model"
)

const (
	reasonPrefix      = "reason_"
	explanationPrefix = "explanation_"
	commentKey        = "comment"
	actionKey         = "action"
)

// Submission is a reviewer payload: an action plus flat form-style keys
// such as reason_3, explanation_3 and comment.
type Submission map[string]any

// ParseSubmission turns a payload into a Decision. ids is the set of DiffIDs
// in the reviewed batch. Empty values are ignored. Any other problem is a
// *model.FeedbackProtocolError.
func ParseSubmission(sub Submission, ids map[int]bool) (model.Decision, error) {
	rawAction, err := stringField(sub, actionKey)
	if err != nil {
		return model.Decision{}, err
	}
	action, ok := model.ParseAction(strings.ToLower(rawAction))
	if !ok {
		return model.Decision{}, protocolErr("unknown action %q", rawAction)
	}

	switch action {
	case model.ActionApprove:
		return model.Approve(), nil
	case model.ActionFinish:
		return model.Finalize(), nil
	}

	hints := make(map[int]model.Hint)
	for _, key := range sortedKeys(sub) {
		var prefix string
		switch {
		case strings.HasPrefix(key, reasonPrefix):
			prefix = reasonPrefix
		case strings.HasPrefix(key, explanationPrefix):
			prefix = explanationPrefix
		default:
			continue
		}

		value, err := stringField(sub, key)
		if err != nil {
			return model.Decision{}, err
		}
		if value == "" {
			continue
		}

		id, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
		if err != nil {
			return model.Decision{}, protocolErr("malformed key %q", key)
		}
		if !ids[id] {
			return model.Decision{}, protocolErr("diff %d is not in this batch", id)
		}

		h := hints[id]
		if prefix == reasonPrefix {
			kind, ok := model.ParseReasonKind(value)
			if !ok || !kind.Valid() {
				return model.Decision{}, protocolErr("invalid reason %q for diff %d", value, id)
			}
			h.Reason = kind
		} else {
			h.Explanation = value
		}
		hints[id] = h
	}

	if len(hints) > 0 {
		return model.ApplyAndRetry(model.TargetedHints(hints)), nil
	}

	comment, err := stringField(sub, commentKey)
	if err != nil {
		return model.Decision{}, err
	}
	if comment != "" {
		return model.ApplyAndRetry(model.GlobalHint(comment)), nil
	}
	return model.ApplyAndRetry(model.NoCorrections()), nil
}

// stringField returns the trimmed string at key; a missing key is "".
func stringField(sub Submission, key string) (string, error) {
	v, ok := sub[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", protocolErr("field %q must be a string", key)
	}
	return strings.TrimSpace(s), nil
}

func sortedKeys(sub Submission) []string {
	keys := make([]string, 0, len(sub))
	for k := range sub {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func protocolErr(format string, args ...any) error {
	return &model.FeedbackProtocolError{Reason: fmt.Sprintf(format, args...)}
}
