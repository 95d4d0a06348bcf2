package analyzer

import (
	"regexp"
	"strings"

	"github.com/bindkit/bindkit/model"
)

var (
	paramBlockStart = regexp.MustCompile(`(?i)param\s*\(`)
	psVarPattern    = regexp.MustCompile(`\$(\w+)`)
	mandatoryAttr   = regexp.MustCompile(`(?i)\[Parameter\([^\]]*Mandatory\s*=\s*\$true[^\]]*\)\]`)
)

// analyzePowerShell locates a param(...) block with a balanced-parenthesis
// scan, then for each $Var inspects the preceding text for a
// [Parameter(Mandatory=$true)] attribute and a [Type] annotation, per
// spec.md §4.A.
func analyzePowerShell(path, source string) model.ScriptInfo {
	info := model.ScriptInfo{
		FilePath: path,
		Kind:     model.KindPowerShell,
		Strategy: model.StrategyPowerShell,
	}

	info.Arguments = extractPowerShellParams(source)
	info.NeedsConfiguration = anyRequired(info.Arguments)
	info.IsExecutable = hasNonCommentContent(source, "#")

	return info
}

func extractPowerShellParams(source string) []model.ArgumentSpec {
	loc := paramBlockStart.FindStringIndex(source)
	if loc == nil {
		return nil
	}
	_, contentEnd, ok := findBalanced(source, loc[0], '(', ')')
	if !ok {
		return nil
	}
	block := source[loc[1]:contentEnd]

	seen := map[string]bool{}
	var args []model.ArgumentSpec

	for _, m := range psVarPattern.FindAllStringSubmatchIndex(block, -1) {
		name := block[m[2]:m[3]]
		if seen[name] {
			continue
		}

		varStart := m[0]
		leading := block[:varStart]

		typeRe := regexp.MustCompile(`\[(\w+)\]\s*\$` + regexp.QuoteMeta(name))
		typeMatch := typeRe.FindStringSubmatch(block)
		if typeMatch == nil {
			// no type annotation / Parameter attribute found: likely a
			// positional token reference ($0, $1, ...), not a declared param.
			continue
		}
		seen[name] = true

		typeName := strings.ToLower(typeMatch[1])

		// Attributes bind to the parameter they precede, so the scan window
		// stops at the previous top-level comma (the end of the previous
		// parameter's declaration), capped at 200 characters.
		window := leading
		if i := lastTopLevelComma(window); i >= 0 {
			window = window[i+1:]
		}
		if len(window) > 200 {
			window = window[len(window)-200:]
		}
		mandatory := mandatoryAttr.MatchString(window)

		helpRe := regexp.MustCompile(`\$` + regexp.QuoteMeta(name) + `\s*(?:=\s*[^\n]*)?\s*#\s*(.+)`)
		help := ""
		if hm := helpRe.FindStringSubmatch(block); hm != nil {
			help = strings.TrimSpace(hm[1])
		}

		args = append(args, model.ArgumentSpec{
			Name:     name,
			Required: mandatory,
			TypeHint: psTypeHint(typeName),
			Help:     help,
		})
	}
	return args
}

// lastTopLevelComma returns the index of the last ',' in s outside any
// parens/brackets and quoted strings, or -1.
func lastTopLevelComma(s string) int {
	depth := 0
	last := -1
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				last = i
			}
		}
	}
	return last
}

func psTypeHint(t string) model.ArgumentTypeHint {
	switch t {
	case "int", "int32", "int64":
		return model.TypeInt
	case "double", "float", "single", "decimal":
		return model.TypeFloat
	case "bool", "switch", "boolean":
		return model.TypeBool
	default:
		return model.TypeString
	}
}

func anyRequired(args []model.ArgumentSpec) bool {
	for _, a := range args {
		if a.Required {
			return true
		}
	}
	return false
}

// hasNonCommentContent reports whether source has at least one non-blank,
// non-comment line, using commentPrefix (e.g. "#" or "REM"/"::") to
// recognize comment lines.
func hasNonCommentContent(source, commentPrefix string) bool {
	for _, line := range strings.Split(source, "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, commentPrefix) {
			continue
		}
		return true
	}
	return false
}
