package tui

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/charmbracelet/lipgloss"
	"github.com/sprite-ai/reqevo/internal/diff"
	"github.com/sprite-ai/reqevo/internal/model"
)

// renderedLine is a single line of diff output ready for display.
type renderedLine struct {
	OldNum  int // 0 means not applicable
	NewNum  int // 0 means not applicable
	Op      gitdiff.LineOp
	Content string // text after the op character
	IsHunk  bool

	// Syntax tokens for the whole line, prefix included
	Tokens []diff.Token
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// renderRecord turns a change record's diff text into display lines. Hunk
// records carry line numbers from their header; line-aligned records do not.
func renderRecord(r model.ChangeRecord) []renderedLine {
	if strings.TrimSpace(r.DiffText) == "" {
		return nil
	}

	text := strings.TrimRight(r.DiffText, "\n")
	raw := strings.Split(text, "\n")
	highlighted := diff.HighlightDiff(text)

	var lines []renderedLine
	oldLine, newLine := 0, 0

	for i, s := range raw {
		s = strings.TrimRight(s, "\r")
		rl := renderedLine{Op: gitdiff.OpContext}
		if i < len(highlighted) {
			rl.Tokens = highlighted[i].Tokens
		}

		if m := hunkHeaderRe.FindStringSubmatch(s); m != nil {
			oldLine, _ = strconv.Atoi(m[1])
			newLine, _ = strconv.Atoi(m[2])
			rl.IsHunk = true
			rl.Content = s
			lines = append(lines, rl)
			continue
		}

		if s != "" {
			switch s[0] {
			case '+':
				rl.Op = gitdiff.OpAdd
			case '-':
				rl.Op = gitdiff.OpDelete
			}
			if rl.Op != gitdiff.OpContext || s[0] == ' ' {
				rl.Content = s[1:]
			} else {
				rl.Content = s
			}
		}

		// "\ No newline at end of file" annotates the previous line
		if strings.HasPrefix(s, `\`) {
			lines = append(lines, rl)
			continue
		}

		if oldLine > 0 || newLine > 0 {
			switch rl.Op {
			case gitdiff.OpContext:
				rl.OldNum, rl.NewNum = oldLine, newLine
				oldLine++
				newLine++
			case gitdiff.OpDelete:
				rl.OldNum = oldLine
				oldLine++
			case gitdiff.OpAdd:
				rl.NewNum = newLine
				newLine++
			}
		}

		lines = append(lines, rl)
	}

	return lines
}

// renderHighlightedContent renders a context line with its syntax tokens.
func renderHighlightedContent(rl renderedLine) string {
	if len(rl.Tokens) == 0 {
		return " " + rl.Content
	}

	var b strings.Builder
	for _, tok := range rl.Tokens {
		if tok.Color != "" {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(tok.Color)).Render(tok.Text))
		} else {
			b.WriteString(tok.Text)
		}
	}
	return b.String()
}

func lineNum(n int) string {
	if n > 0 {
		return fmt.Sprintf("%4d", n)
	}
	return "    "
}

// styleLine applies styling to a rendered line for unified view.
func styleLine(rl renderedLine, width int) string {
	if rl.IsHunk {
		return hunkHeaderStyle.Width(width).Render(truncate(rl.Content, width))
	}

	lineNums := lineNumberStyle.Render(lineNum(rl.OldNum)) + " " + lineNumberStyle.Render(lineNum(rl.NewNum))
	maxContent := width - 12

	switch rl.Op {
	case gitdiff.OpAdd:
		return lineNums + " " + addedLineStyle.Render(truncate("+"+rl.Content, maxContent))
	case gitdiff.OpDelete:
		return lineNums + " " + deletedLineStyle.Render(truncate("-"+rl.Content, maxContent))
	}

	content := renderHighlightedContent(rl)
	if maxContent > 0 && lipgloss.Width(content) > maxContent {
		content = contextLineStyle.Render(truncate(" "+rl.Content, maxContent))
	}
	return lineNums + " " + content
}

// styleLineSplit renders a line for split (side-by-side) view.
func styleLineSplit(rl renderedLine, halfWidth int) (left, right string) {
	if rl.IsHunk {
		return hunkHeaderStyle.Width(halfWidth).Render(truncate(rl.Content, halfWidth)), ""
	}

	maxContent := halfWidth - 7
	content := truncate(rl.Content, maxContent)

	switch rl.Op {
	case gitdiff.OpDelete:
		left = lineNumberStyle.Render(lineNum(rl.OldNum)) + " " + deletedLineStyle.Render("-"+content)
		right = strings.Repeat(" ", halfWidth)
	case gitdiff.OpAdd:
		left = strings.Repeat(" ", halfWidth)
		right = lineNumberStyle.Render(lineNum(rl.NewNum)) + " " + addedLineStyle.Render("+"+content)
	default:
		left = lineNumberStyle.Render(lineNum(rl.OldNum)) + " " + contextLineStyle.Render(" "+content)
		right = lineNumberStyle.Render(lineNum(rl.NewNum)) + " " + contextLineStyle.Render(" "+content)
	}

	return left, right
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
