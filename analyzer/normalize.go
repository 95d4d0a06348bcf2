package analyzer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// smartPunctuation maps Unicode smart-quote/dash/space code points to their
// ASCII equivalents, so the analyzer's heuristic parsers see plain
// punctuation regardless of what editor produced the script. Ported from
// the original implementation's SMART_PUNCTUATION_TRANSLATIONS table.
var smartPunctuation = map[rune]rune{
	'‘': '\'', // left single quote
	'’': '\'', // right single quote
	'‚': '\'', // single low-9
	'‛': '\'', // single high-reversed-9
	'“': '"',  // left double quote
	'”': '"',  // right double quote
	'„': '"',  // double low-9
	'‟': '"',  // double high-reversed-9
	'«': '"',  // left-pointing double angle
	'»': '"',  // right-pointing double angle
	'–': '-',  // en dash
	'—': '-',  // em dash
	'―': '-',  // horizontal bar
	'−': '-',  // minus sign
	' ': ' ',  // non-breaking space
}

// normalizeSource strips a UTF-8 BOM, applies Unicode NFC normalization so
// combining-mark variants of the same glyph compare equal, folds smart
// punctuation to ASCII, and unifies line endings to "\n" so the analyzers
// can use plain-text scanning without tripping over Windows/legacy-Mac line
// endings or editor autocorrect.
func normalizeSource(data []byte) string {
	s := strings.TrimPrefix(string(data), "\ufeff")
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := smartPunctuation[r]; ok {
			b.WriteRune(repl)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// looksBinary reports whether data contains a NUL byte in its first 8KB,
// the conventional binary-file heuristic.
func looksBinary(data []byte) bool {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	for i := 0; i < n; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}
