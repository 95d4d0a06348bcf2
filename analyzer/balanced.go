package analyzer

import "strings"

// findBalanced locates the first open byte at or after start and returns
// the index range of its content (exclusive of the delimiters), counting
// nested open/close pairs and skipping quoted strings; other bracket kinds
// are not tracked. Returns ok=false if no balanced close byte is found. Used by both the PowerShell param()
// locator and the Python add_argument(...) call scanner, per spec.md §4.A's
// "balanced-parenthesis scanning" requirement.
func findBalanced(src string, start int, open, close byte) (contentStart, contentEnd int, ok bool) {
	i := strings.IndexByte(src[start:], open)
	if i < 0 {
		return 0, 0, false
	}
	i += start
	depth := 0
	var quote byte
	for p := i; p < len(src); p++ {
		c := src[p]
		if quote != 0 {
			if c == '\\' {
				p++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1, p, true
			}
		}
	}
	return 0, 0, false
}

// splitTopLevel splits s on sep at depth 0 with respect to (), [], {}
// and quoted strings, so "a(1,2), b" splits into ["a(1,2)", " b"].
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if c == sep && depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// unquote strips a single layer of matching ' or " quotes, if present.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
