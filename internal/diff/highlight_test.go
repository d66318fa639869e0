package diff

import (
	"testing"
)

func TestHighlightDiff(t *testing.T) {
	text := "- The system shall store passwords.\n+ The system shall store hashed passwords."
	highlighted := HighlightDiff(text)

	if len(highlighted) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(highlighted))
	}
	if highlighted[1].Plain() != "+ The system shall store hashed passwords." {
		t.Errorf("plain text mismatch: %q", highlighted[1].Plain())
	}
	if highlighted[0].Tokens[0].Color == "" {
		t.Error("expected deleted line to carry a color")
	}
}

func TestHighlightDiffHunk(t *testing.T) {
	text := "@@ -1,2 +1,2 @@\n The system shall log in users.\n-Reports are emailed.\n+Reports are emailed to admins.\n"
	highlighted := HighlightDiff(text)

	// the trailing newline yields an empty final line
	if len(highlighted) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(highlighted))
	}
	for i, want := range []string{
		"@@ -1,2 +1,2 @@",
		" The system shall log in users.",
		"-Reports are emailed.",
		"+Reports are emailed to admins.",
		"",
	} {
		if got := highlighted[i].Plain(); got != want {
			t.Errorf("line %d: got %q, want %q", i, got, want)
		}
	}
}

func TestHighlightDiffEmpty(t *testing.T) {
	highlighted := HighlightDiff("")
	if len(highlighted) != 1 {
		t.Fatalf("expected 1 line, got %d", len(highlighted))
	}
	if highlighted[0].Plain() != "" {
		t.Errorf("expected empty line, got %q", highlighted[0].Plain())
	}
}

func TestPlainDiff(t *testing.T) {
	lines := plainDiff("a\n\nb")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[1].Tokens != nil || lines[2].Plain() != "b" {
		t.Errorf("unexpected lines %+v", lines)
	}
}
