package diff

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Token is a coloured run of text. An empty Color means the default foreground.
type Token struct {
	Text  string
	Color string
}

// HighlightedLine is one line of diff text split into tokens.
type HighlightedLine struct {
	Tokens []Token
}

// Plain returns the line without colours.
func (hl HighlightedLine) Plain() string {
	var b strings.Builder
	for _, t := range hl.Tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// HighlightDiff colours change-record diff text with chroma's unified diff
// lexer and the dracula palette. It returns exactly one entry per line of text.
func HighlightDiff(text string) []HighlightedLine {
	n := strings.Count(text, "\n") + 1

	lexer := lexers.Get("diff")
	if lexer == nil {
		return plainDiff(text)
	}
	// the diff lexer's rules are newline-terminated
	src := text
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}
	iter, err := chroma.Coalesce(lexer).Tokenise(nil, src)
	if err != nil {
		return plainDiff(text)
	}
	style := styles.Get("dracula")

	out := make([]HighlightedLine, 0, n)
	for _, toks := range chroma.SplitTokensIntoLines(iter.Tokens()) {
		if len(out) == n {
			break
		}
		var hl HighlightedLine
		for _, tok := range toks {
			part := strings.TrimSuffix(tok.Value, "\n")
			if part == "" {
				continue
			}
			var color string
			if entry := style.Get(tok.Type); entry.Colour.IsSet() {
				color = entry.Colour.String()
			}
			hl.Tokens = append(hl.Tokens, Token{Text: part, Color: color})
		}
		out = append(out, hl)
	}
	for len(out) < n {
		out = append(out, HighlightedLine{})
	}
	return out
}

func plainDiff(text string) []HighlightedLine {
	lines := strings.Split(text, "\n")
	out := make([]HighlightedLine, len(lines))
	for i, line := range lines {
		if line != "" {
			out[i].Tokens = []Token{{Text: line}}
		}
	}
	return out
}
