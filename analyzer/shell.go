package analyzer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bindkit/bindkit/model"
)

var (
	getoptsPattern  = regexp.MustCompile(`getopts\s+["']([^"']+)["']`)
	shellArgPattern = regexp.MustCompile(`\$([1-9])\b`)
)

// analyzeShell enumerates a getopts option string if present (spec.md
// §4.A), otherwise falls back to scanning $1..$9 positional references
// with help pulled from a trailing #-comment on the same line.
func analyzeShell(path, source string) model.ScriptInfo {
	info := model.ScriptInfo{
		FilePath: path,
		Kind:     model.KindShell,
		Strategy: model.StrategyShell,
	}

	if args, ok := extractGetopts(source); ok {
		info.Arguments = args
	} else {
		info.Arguments = extractShellPositional(source)
	}
	info.NeedsConfiguration = anyRequired(info.Arguments)
	info.IsExecutable = hasNonCommentContent(source, "#")

	return info
}

// extractGetopts parses a getopts "abc:d" option string: each letter is a
// flag; a ':' suffix on the preceding letter means it takes a value.
func extractGetopts(source string) ([]model.ArgumentSpec, bool) {
	m := getoptsPattern.FindStringSubmatch(source)
	if m == nil {
		return nil, false
	}
	optString := m[1]

	var args []model.ArgumentSpec
	runes := []rune(optString)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == ':' {
			continue
		}
		takesValue := i+1 < len(runes) && runes[i+1] == ':'
		args = append(args, model.ArgumentSpec{
			Name:     string(c),
			Required: false,
			TypeHint: boolOrString(takesValue),
		})
	}
	return args, true
}

func boolOrString(takesValue bool) model.ArgumentTypeHint {
	if takesValue {
		return model.TypeString
	}
	return model.TypeBool
}

func extractShellPositional(source string) []model.ArgumentSpec {
	lines := strings.Split(source, "\n")
	seen := map[int]bool{}
	var args []model.ArgumentSpec

	for _, line := range lines {
		for _, m := range shellArgPattern.FindAllStringSubmatchIndex(line, -1) {
			idx, err := strconv.Atoi(line[m[2]:m[3]])
			if err != nil || seen[idx] {
				continue
			}
			seen[idx] = true

			help := ""
			if h := strings.Index(line, "#"); h >= 0 {
				help = strings.TrimSpace(line[h+1:])
			}
			args = append(args, model.ArgumentSpec{
				Name:     fmt.Sprintf("$%d", idx),
				Required: true,
				TypeHint: model.TypeString,
				Help:     help,
			})
		}
	}
	return args
}
