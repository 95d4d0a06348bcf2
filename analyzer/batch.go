package analyzer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bindkit/bindkit/model"
)

var (
	batchArgPattern = regexp.MustCompile(`%([1-9])`)
	remHelpPattern  = regexp.MustCompile(`(?i)^\s*(?:REM|::)\s*(.*)$`)
)

// analyzeBatch scans for %1..%9 positional references, per spec.md §4.A,
// pulling a help string from the nearest preceding REM comment line.
func analyzeBatch(path, source string) model.ScriptInfo {
	info := model.ScriptInfo{
		FilePath: path,
		Kind:     model.KindBatch,
		Strategy: model.StrategyBatch,
	}

	info.Arguments = extractBatchParams(source)
	info.NeedsConfiguration = anyRequired(info.Arguments)
	info.IsExecutable = hasNonCommentBatchContent(source)

	return info
}

func extractBatchParams(source string) []model.ArgumentSpec {
	lines := strings.Split(source, "\n")
	seen := map[int]bool{}
	var indices []int

	for _, line := range lines {
		for _, m := range batchArgPattern.FindAllStringSubmatch(line, -1) {
			idx, err := strconv.Atoi(m[1])
			if err != nil || seen[idx] {
				continue
			}
			seen[idx] = true
			indices = append(indices, idx)
		}
	}

	if len(indices) == 0 {
		return nil
	}

	var args []model.ArgumentSpec
	for _, idx := range indices {
		help := helpForBatchIndex(lines, idx)
		args = append(args, model.ArgumentSpec{
			Name:     fmt.Sprintf("%%%d", idx),
			Required: true,
			TypeHint: model.TypeString,
			Help:     help,
		})
	}
	return args
}

// helpForBatchIndex returns the text of the REM/:: comment line directly
// above the first use of %idx, skipping blank lines; any other line in
// between means there is no help text.
func helpForBatchIndex(lines []string, idx int) string {
	token := fmt.Sprintf("%%%d", idx)
	for i, line := range lines {
		if !strings.Contains(line, token) {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if m := remHelpPattern.FindStringSubmatch(lines[j]); m != nil {
				return strings.TrimSpace(m[1])
			}
			if strings.TrimSpace(lines[j]) == "" {
				continue
			}
			break
		}
		break
	}
	return ""
}

func hasNonCommentBatchContent(source string) bool {
	for _, line := range strings.Split(source, "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(t), "REM") || strings.HasPrefix(t, "::") {
			continue
		}
		if strings.HasPrefix(strings.ToLower(t), "@echo off") {
			continue
		}
		return true
	}
	return false
}
