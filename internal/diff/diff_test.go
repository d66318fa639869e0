package diff

import (
	"strings"
	"testing"
)

const sampleDiff = `diff --git a/versions/v1_aaaaaaa.txt b/versions/v2_bbbbbbb.txt
index abc1234..def5678 100644
--- a/versions/v1_aaaaaaa.txt
+++ b/versions/v2_bbbbbbb.txt
@@ -1,3 +1,4 @@
 The system shall log in users.
-The system shall store passwords.
+The system shall store hashed passwords.
+The system shall lock accounts after 5 failures.
 The system shall log out users.
@@ -10,2 +11,2 @@ Reporting
 Reports are generated daily.
-Reports are emailed.
+Reports are emailed to admins.
`

func TestParse(t *testing.T) {
	ds, err := Parse(sampleDiff)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(ds.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(ds.Files))
	}

	f := ds.Files[0]
	if len(f.Fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(f.Fragments))
	}
	if f.AddedLines != 3 {
		t.Errorf("expected 3 added lines, got %d", f.AddedLines)
	}
	if f.DeletedLines != 2 {
		t.Errorf("expected 2 deleted lines, got %d", f.DeletedLines)
	}

	files, added, deleted := ds.Stats()
	if files != 1 || added != 3 || deleted != 2 {
		t.Errorf("stats: got %d/%d/%d", files, added, deleted)
	}
}

func TestParseEmpty(t *testing.T) {
	ds, err := Parse("")
	if err != nil {
		t.Fatalf("Parse empty failed: %v", err)
	}
	if len(ds.Files) != 0 {
		t.Errorf("expected 0 files, got %d", len(ds.Files))
	}
}

func TestRawHunks(t *testing.T) {
	hunks := RawHunks(sampleDiff)
	if len(hunks) != 2 {
		t.Fatalf("expected 2 hunks, got %d", len(hunks))
	}

	want := "@@ -10,2 +11,2 @@ Reporting\n" +
		" Reports are generated daily.\n" +
		"-Reports are emailed.\n" +
		"+Reports are emailed to admins."
	if hunks[1] != want {
		t.Errorf("hunk mismatch:\n got: %q\nwant: %q", hunks[1], want)
	}
	if !strings.HasSuffix(hunks[0], " The system shall log out users.") {
		t.Errorf("first hunk should stop before the next header: %q", hunks[0])
	}
}

func TestRawHunksKeepsMarkersAndCarriageReturns(t *testing.T) {
	raw := "diff --git a/v1.txt b/v2.txt\n" +
		"--- a/v1.txt\n" +
		"+++ b/v2.txt\n" +
		"@@ -1,2 +1,2 @@\n" +
		" Users log in.\r\n" +
		"-Sessions expire.\n" +
		"\\ No newline at end of file\n" +
		"+Sessions expire after 30 minutes.\n" +
		"\\ No newline at end of file\n"

	ds, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(ds.Files) != 1 || len(ds.Files[0].Fragments) != 1 {
		t.Fatalf("expected 1 file with 1 fragment")
	}

	hunks := RawHunks(raw)
	if len(hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(hunks))
	}
	want := "@@ -1,2 +1,2 @@\n" +
		" Users log in.\r\n" +
		"-Sessions expire.\n" +
		"\\ No newline at end of file\n" +
		"+Sessions expire after 30 minutes.\n" +
		"\\ No newline at end of file"
	if hunks[0] != want {
		t.Errorf("hunk not verbatim:\n got: %q\nwant: %q", hunks[0], want)
	}
}

func TestRawHunksMultipleFiles(t *testing.T) {
	raw := "diff --git a/a.txt b/a.txt\n@@ -1 +1 @@\n-a\n+b\ndiff --git a/c.txt b/c.txt\nindex 1..2\n@@ -1 +1 @@\n-c\n+d\n"
	hunks := RawHunks(raw)
	if len(hunks) != 2 {
		t.Fatalf("expected 2 hunks, got %d", len(hunks))
	}
	if hunks[0] != "@@ -1 +1 @@\n-a\n+b" {
		t.Errorf("file header leaked into hunk: %q", hunks[0])
	}
}

func TestRawHunksEmpty(t *testing.T) {
	if hunks := RawHunks(""); hunks != nil {
		t.Errorf("expected no hunks, got %q", hunks)
	}
}
