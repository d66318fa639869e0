package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestReasonKindString(t *testing.T) {
	tests := []struct {
		kind ReasonKind
		want string
	}{
		{ReasonUnset, "pending"},
		{ReasonContradiction, "contradiction"},
		{ReasonMeaningChange, "meaning-change"},
		{ReasonNewAddition, "new-addition"},
		{ReasonError, "error"},
		{ReasonKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ReasonKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestParseReasonKind(t *testing.T) {
	tests := []struct {
		in   string
		want ReasonKind
		ok   bool
	}{
		{"Typo", ReasonTypo, true},
		{"  clarification ", ReasonClarification, true},
		{"Summarization/shortening", ReasonSummarization, true},
		{"Demonstration (example, visualization)", ReasonDemonstration, true},
		{"Meaning", ReasonMeaningChange, true},
		{"meaning change", ReasonMeaningChange, true},
		{"New_Addition", ReasonNewAddition, true},
		{"Inclusion", ReasonGeneralization, true},
		{"Clarification of a requirement", ReasonClarification, true},
		{"Pending Analysis", ReasonUnset, true},
		{"banana", ReasonUnset, false},
		{"", ReasonUnset, false},
	}
	for _, tt := range tests {
		got, ok := ParseReasonKind(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseReasonKind(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestReasonKindValid(t *testing.T) {
	if ReasonUnset.Valid() {
		t.Error("pending placeholder must not be a valid classifier output")
	}
	if ReasonError.Valid() {
		t.Error("error sentinel must not be a valid classifier output")
	}
	for _, k := range AllReasons() {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if n := len(AllReasons()); n != 11 {
		t.Errorf("expected 11 classifier reasons, got %d", n)
	}
}

func TestRunStateJSONRoundTrip(t *testing.T) {
	in := RunState{
		Name:   "demo",
		Domain: "Payments",
		Versions: []Version{
			{ID: 1, Content: "A", Filename: "v1.txt"},
			{ID: 2, Content: "B", Filename: "v2.txt", Provenance: &Provenance{CommitHash: "abcdef1234", Author: "Sam"}},
		},
		Records: []ChangeRecord{
			{DiffID: 7, OldVersionID: 1, NewVersionID: 2, Classification: Classification{Reason: ReasonTypo, Status: StatusClassified}},
			{DiffID: 3, OldVersionID: 1, NewVersionID: 2},
		},
		Corrections: TargetedHints(map[int]Hint{7: {Reason: ReasonMistake}}),
		Stage:       StageFeedback,
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out RunState
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got := out.DiffIDs(); len(got) != 2 || got[0] != 7 || got[1] != 3 {
		t.Errorf("record order not preserved: %v", got)
	}
	if out.Records[0].Classification.Reason != ReasonTypo {
		t.Errorf("reason lost: %v", out.Records[0].Classification.Reason)
	}
	if out.Records[1].Classification.Status != StatusPending {
		t.Errorf("status lost: %v", out.Records[1].Classification.Status)
	}
	if out.Stage != StageFeedback {
		t.Errorf("stage lost: %v", out.Stage)
	}
	if out.Corrections.Kind != CorrectionTargeted || out.Corrections.Targeted[7].Reason != ReasonMistake {
		t.Errorf("corrections lost: %+v", out.Corrections)
	}
	if out.Versions[1].Provenance.ShortHash() != "abcdef1" {
		t.Errorf("short hash = %q", out.Versions[1].Provenance.ShortHash())
	}
}

func TestTally(t *testing.T) {
	recs := []ChangeRecord{
		{Classification: Classification{Status: StatusPending}},
		{Classification: Classification{Status: StatusClassified}},
		{Classification: Classification{Status: StatusClassified}},
		{Classification: Classification{Status: StatusError}},
	}
	p, c, e := Tally(recs)
	if p != 1 || c != 2 || e != 1 {
		t.Errorf("Tally = %d/%d/%d, want 1/2/1", p, c, e)
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	inner := &FetchError{Source: "repo", Err: errors.New("unreachable")}
	err := &StageError{Stage: StageLoad, Ident: "repo", Err: inner}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatal("expected FetchError in chain")
	}
	if err.Error() != "stage load (repo): fetch repo: unreachable" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
