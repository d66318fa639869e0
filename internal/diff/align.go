package diff

import (
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// OpTag is the kind of an alignment opcode.
type OpTag int

const (
	OpEqual OpTag = iota
	OpInsert
	OpDelete
	OpReplace
)

func (t OpTag) String() string {
	switch t {
	case OpEqual:
		return "equal"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	case OpReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Opcode describes how old[I1:I2] relates to new[J1:J2].
type Opcode struct {
	Tag    OpTag
	I1, I2 int
	J1, J2 int
}

// RequirementLines splits content into lines, dropping blank ones.
// Every remaining line is one requirement statement.
func RequirementLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Align computes opcodes over two line lists using a line-mode diff.
// Every maximal run of deletions and insertions between two equal runs
// becomes a single opcode, so a changed block is never split arbitrarily.
func Align(oldLines, newLines []string) []Opcode {
	dmp := diffmatchpatch.New()
	src, dst, _ := dmp.DiffLinesToRunes(joinLines(oldLines), joinLines(newLines))
	diffs := dmp.DiffMainRunes(src, dst, false)

	var ops []Opcode
	i, j := 0, 0
	del, ins := 0, 0

	flush := func() {
		if del == 0 && ins == 0 {
			return
		}
		tag := OpReplace
		switch {
		case del == 0:
			tag = OpInsert
		case ins == 0:
			tag = OpDelete
		}
		ops = append(ops, Opcode{Tag: tag, I1: i, I2: i + del, J1: j, J2: j + ins})
		i += del
		j += ins
		del, ins = 0, 0
	}

	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			ops = append(ops, Opcode{Tag: OpEqual, I1: i, I2: i + n, J1: j, J2: j + n})
			i += n
			j += n
		case diffmatchpatch.DiffDelete:
			del += n
		case diffmatchpatch.DiffInsert:
			ins += n
		}
	}
	flush()

	return ops
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
