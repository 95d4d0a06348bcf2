package analyzer

import (
	"regexp"
	"strings"

	"github.com/bindkit/bindkit/model"
)

var (
	mainBlockPattern = regexp.MustCompile(`if\s+__name__\s*==\s*['"]__main__['"]`)
	mainFuncPattern  = regexp.MustCompile(`(?m)^def\s+main\s*\(([^)]*)\)\s*:`)
	addArgumentCall  = regexp.MustCompile(`add_argument\s*\(`)
	simpleStatement  = regexp.MustCompile(`(?m)^\s*(import\s|from\s|#|"""|'''|$)`)
)

// analyzePython classifies a Python script: a guard/main-function check for
// executability, and argparse add_argument(...) calls (falling back to
// main()'s signature) for arguments, per spec.md §4.A.
func analyzePython(path, source string) model.ScriptInfo {
	info := model.ScriptInfo{
		FilePath: path,
		Kind:     model.KindPython,
	}

	hasGuard := mainBlockPattern.MatchString(source)
	mainSig, hasMain := findMainFunction(source)

	args := extractArgparseArguments(source)
	if len(args) == 0 && hasMain {
		args = argumentsFromSignature(mainSig)
	}
	info.Arguments = args

	info.Strategy = selectPythonStrategy(hasGuard, hasMain, len(args) > 0)
	info.IsExecutable = hasGuard || hasMain || hasExecutableStatement(source)
	info.NeedsConfiguration = needsConfiguration(args)

	return info
}

// selectPythonStrategy implements spec.md §4.A's strategy table:
// args -> Subprocess; else main func -> InProcessFunction;
// else guard -> Subprocess; else -> InProcessModule.
func selectPythonStrategy(hasGuard, hasMain, hasArgs bool) model.ExecutionStrategy {
	switch {
	case hasArgs:
		return model.StrategySubprocess
	case hasMain:
		return model.StrategyInProcessFunction
	case hasGuard:
		return model.StrategySubprocess
	default:
		return model.StrategyInProcessModule
	}
}

func findMainFunction(source string) (signature string, ok bool) {
	m := mainFuncPattern.FindStringSubmatch(source)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func hasExecutableStatement(source string) bool {
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if simpleStatement.MatchString(line) {
			continue
		}
		return true
	}
	return false
}

// argumentsFromSignature treats each positional parameter of main() as a
// required string argument, skipping "self".
func argumentsFromSignature(sig string) []model.ArgumentSpec {
	var args []model.ArgumentSpec
	for _, raw := range splitTopLevel(sig, ',') {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		// strip type annotation / default value, keep the bare parameter name
		if idx := strings.IndexAny(name, ":="); idx >= 0 {
			name = strings.TrimSpace(name[:idx])
		}
		name = strings.TrimPrefix(name, "*")
		name = strings.TrimPrefix(name, "*")
		if name == "" || name == "self" {
			continue
		}
		args = append(args, model.ArgumentSpec{
			Name:     name,
			Required: true,
			TypeHint: model.TypeString,
		})
	}
	return args
}

// extractArgparseArguments scans for `....add_argument(...)` calls and
// parses each call's argument list.
func extractArgparseArguments(source string) []model.ArgumentSpec {
	var args []model.ArgumentSpec
	for _, loc := range addArgumentCall.FindAllStringIndex(source, -1) {
		openParen := loc[1] - 1
		start, end, ok := findBalanced(source, openParen, '(', ')')
		if !ok {
			continue
		}
		if spec, ok := parseAddArgumentBody(source[start:end]); ok {
			args = append(args, spec)
		}
	}
	return args
}

// parseAddArgumentBody parses the content between the parens of an
// add_argument(...) call: a positional name literal followed by
// keyword=value pairs (required, default, help, type, choices).
func parseAddArgumentBody(body string) (model.ArgumentSpec, bool) {
	parts := splitTopLevel(body, ',')
	if len(parts) == 0 {
		return model.ArgumentSpec{}, false
	}

	nameTok := strings.TrimSpace(parts[0])
	if !strings.HasPrefix(nameTok, "'") && !strings.HasPrefix(nameTok, "\"") {
		return model.ArgumentSpec{}, false
	}
	rawName := strings.TrimLeft(unquote(nameTok), "-")
	if rawName == "" {
		return model.ArgumentSpec{}, false
	}

	spec := model.ArgumentSpec{Name: rawName, TypeHint: model.TypeString}

	for _, kw := range parts[1:] {
		kw = strings.TrimSpace(kw)
		eq := strings.Index(kw, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(kw[:eq])
		val := strings.TrimSpace(kw[eq+1:])

		switch key {
		case "required":
			spec.Required = val == "True"
		case "default":
			if val != "None" {
				spec.Default = unquote(val)
				spec.HasDefault = true
			}
		case "help":
			spec.Help = unquote(val)
		case "type":
			switch val {
			case "int":
				spec.TypeHint = model.TypeInt
			case "float":
				spec.TypeHint = model.TypeFloat
			case "bool":
				spec.TypeHint = model.TypeBool
			default:
				spec.TypeHint = model.TypeString
			}
		case "choices":
			spec.Choices = parseChoiceList(val)
		}
	}
	return spec, true
}

func parseChoiceList(val string) []string {
	val = strings.TrimSpace(val)
	if !strings.HasPrefix(val, "[") || !strings.HasSuffix(val, "]") {
		return nil
	}
	inner := val[1 : len(val)-1]
	var choices []string
	for _, item := range splitTopLevel(inner, ',') {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		choices = append(choices, unquote(item))
	}
	return choices
}

func needsConfiguration(args []model.ArgumentSpec) bool {
	for _, a := range args {
		if a.Required || !a.HasDefault {
			return true
		}
	}
	return false
}
