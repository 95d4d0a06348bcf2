// Package analyzer implements BindKit's Script Analyzer (spec.md §4.A): it
// reads a script file, classifies it by extension, and statically extracts
// its declared arguments and execution strategy without running it.
package analyzer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bindkit/bindkit/model"
)

// Analyze reads path and returns its classification. Edge cases per
// spec.md §4.A: an empty file is not executable with AnalyzerError "empty";
// a file that looks binary is not executable with AnalyzerError "binary";
// an unrecognized extension yields AnalyzerError "unsupported" and
// KindUnknown; any other read failure is reported the same way.
func Analyze(path string) model.ScriptInfo {
	ext := strings.ToLower(filepath.Ext(path))
	kind := model.KindForExt(ext)

	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	if kind == model.KindUnknown {
		return model.ScriptInfo{
			FilePath:      path,
			Kind:          model.KindUnknown,
			DisplayName:   stem,
			AnalyzerError: "unsupported",
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.ScriptInfo{
			FilePath:      path,
			Kind:          kind,
			DisplayName:   stem,
			AnalyzerError: fmt.Sprintf("read: %v", err),
		}
	}

	if len(data) == 0 {
		return model.ScriptInfo{
			FilePath:      path,
			Kind:          kind,
			DisplayName:   stem,
			AnalyzerError: "empty",
		}
	}

	if looksBinary(data) {
		return model.ScriptInfo{
			FilePath:      path,
			Kind:          kind,
			DisplayName:   stem,
			AnalyzerError: "binary",
		}
	}

	source := normalizeSource(data)

	var info model.ScriptInfo
	switch kind {
	case model.KindPython:
		info = analyzePython(path, source)
	case model.KindPowerShell:
		info = analyzePowerShell(path, source)
	case model.KindBatch:
		info = analyzeBatch(path, source)
	case model.KindShell:
		info = analyzeShell(path, source)
	}

	info.DisplayName = stem
	info.CanonicalIdentifier = strings.ToLower(base)
	info.LegacyKeys = []string{strings.ToLower(stem)}

	return info
}
