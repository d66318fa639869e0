package llm

import (
	"regexp"
	"strings"
)

var (
	fencePattern         = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON returns the first JSON object in a model reply. Code fences are
// unwrapped and trailing commas removed. It returns "" when no object is found.
func ExtractJSON(content string) string {
	if m := fencePattern.FindStringSubmatch(content); len(m) > 1 {
		if obj := firstObject(m[1]); obj != "" {
			return trailingCommaPattern.ReplaceAllString(obj, "$1")
		}
	}
	obj := firstObject(content)
	if obj == "" {
		return ""
	}
	return trailingCommaPattern.ReplaceAllString(obj, "$1")
}

// firstObject scans for the first balanced {...}, ignoring braces inside strings.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
