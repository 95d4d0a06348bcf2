package analyzer

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bindkit/bindkit/model"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestAnalyzeUnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "script.rb", "puts 'hi'")
	info := Analyze(path)
	if info.Kind != model.KindUnknown {
		t.Fatalf("expected KindUnknown, got %v", info.Kind)
	}
	if info.AnalyzerError != "unsupported" {
		t.Fatalf("expected unsupported error, got %q", info.AnalyzerError)
	}
}

func TestAnalyzeEmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.py", "")
	info := Analyze(path)
	if info.AnalyzerError != "empty" {
		t.Fatalf("expected empty error, got %q", info.AnalyzerError)
	}
	if info.IsExecutable {
		t.Fatalf("empty file must not be executable")
	}
}

func TestAnalyzeBinaryFile(t *testing.T) {
	path := writeTemp(t, "bin.py", "import os\x00\x01\x02binary garbage")
	info := Analyze(path)
	if info.AnalyzerError != "binary" {
		t.Fatalf("expected binary error, got %q", info.AnalyzerError)
	}
}

// TestAnalyzerPurity covers spec.md §8 property 1: analyze(F) == analyze(F),
// and N concurrent analyses of the same file produce identical results.
func TestAnalyzerPurity(t *testing.T) {
	path := writeTemp(t, "hello.py", `import argparse

def main():
    parser = argparse.ArgumentParser()
    parser.add_argument('--name', required=True, help='your name')
    args = parser.parse_args()
    print(args.name)

if __name__ == "__main__":
    main()
`)

	first := Analyze(path)

	const n = 20
	var wg sync.WaitGroup
	results := make([]model.ScriptInfo, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = Analyze(path)
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r.CanonicalIdentifier != first.CanonicalIdentifier ||
			r.Strategy != first.Strategy ||
			len(r.Arguments) != len(first.Arguments) ||
			r.IsExecutable != first.IsExecutable {
			t.Fatalf("result %d diverged from first analysis: %+v vs %+v", i, r, first)
		}
	}
}

// TestPythonStrategySelectionMatrix covers spec.md §8 property 2: five of
// the eight (guard, main_fn, args) combinations map to the strategy table
// in §4.A.
func TestPythonStrategySelectionMatrix(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   model.ExecutionStrategy
	}{
		{
			name: "guard + main + args -> subprocess",
			source: `import argparse
def main():
    p = argparse.ArgumentParser()
    p.add_argument('--x')
if __name__ == "__main__":
    main()
`,
			want: model.StrategySubprocess,
		},
		{
			name: "main, no guard, no args -> in-process function",
			source: `def main():
    print("hi")
`,
			want: model.StrategyInProcessFunction,
		},
		{
			name: "guard, no main, no args -> subprocess",
			source: `print("hello")
if __name__ == "__main__":
    print("ran")
`,
			want: model.StrategySubprocess,
		},
		{
			name:   "no guard, no main, no args -> in-process module",
			source: `x = 1 + 1\nprint(x)`,
			want:   model.StrategyInProcessModule,
		},
		{
			name: "args present without guard or main -> subprocess",
			source: `import argparse
p = argparse.ArgumentParser()
p.add_argument('--y', type=int)
`,
			want: model.StrategySubprocess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, "script.py", tt.source)
			info := Analyze(path)
			if info.Strategy != tt.want {
				t.Errorf("strategy = %v, want %v (args=%d)", info.Strategy, tt.want, len(info.Arguments))
			}
		})
	}
}

func TestAnalyzePythonArgparseArguments(t *testing.T) {
	source := `import argparse

def main():
    parser = argparse.ArgumentParser()
    parser.add_argument('--name', required=True, help='the name')
    parser.add_argument('--count', type=int, default=1, help='how many')
    parser.add_argument('--mode', choices=['fast', 'slow'], default='fast')
    args = parser.parse_args()

if __name__ == "__main__":
    main()
`
	path := writeTemp(t, "args.py", source)
	info := Analyze(path)

	if len(info.Arguments) != 3 {
		t.Fatalf("expected 3 arguments, got %d: %+v", len(info.Arguments), info.Arguments)
	}

	byName := map[string]model.ArgumentSpec{}
	for _, a := range info.Arguments {
		byName[a.Name] = a
	}

	name, ok := byName["name"]
	if !ok || !name.Required || name.Help != "the name" {
		t.Errorf("name arg mismatch: %+v", name)
	}
	count, ok := byName["count"]
	if !ok || count.TypeHint != model.TypeInt || count.Default != "1" {
		t.Errorf("count arg mismatch: %+v", count)
	}
	mode, ok := byName["mode"]
	if !ok || len(mode.Choices) != 2 || mode.Choices[0] != "fast" || mode.Choices[1] != "slow" {
		t.Errorf("mode arg mismatch: %+v", mode)
	}
}

func TestAnalyzePythonMainSignatureFallback(t *testing.T) {
	source := `def main(input_path, output_path):
    pass
`
	path := writeTemp(t, "noargparse.py", source)
	info := Analyze(path)

	if len(info.Arguments) != 2 {
		t.Fatalf("expected 2 arguments from signature, got %d", len(info.Arguments))
	}
	if info.Arguments[0].Name != "input_path" || info.Arguments[1].Name != "output_path" {
		t.Errorf("unexpected argument names: %+v", info.Arguments)
	}
}

func TestAnalyzeSmartQuotesNormalized(t *testing.T) {
	// Smart quotes around the add_argument name literal must still parse,
	// per spec.md §4.A's "tolerate Unicode smart-quote substitutions".
	source := "import argparse\ndef main():\n    p = argparse.ArgumentParser()\n    p.add_argument(‘--name’, required=True)\n"
	path := writeTemp(t, "smart.py", source)
	info := Analyze(path)
	if len(info.Arguments) != 1 || info.Arguments[0].Name != "name" {
		t.Fatalf("expected one 'name' argument after normalization, got %+v", info.Arguments)
	}
}

func TestAnalyzePowerShellMandatoryParam(t *testing.T) {
	source := `param(
    [Parameter(Mandatory=$true)]
    [string]$Name,
    [int]$Count = 1
)

Write-Host "Hello $Name"
`
	path := writeTemp(t, "script.ps1", source)
	info := Analyze(path)

	if info.Strategy != model.StrategyPowerShell {
		t.Fatalf("expected PowerShell strategy, got %v", info.Strategy)
	}
	if len(info.Arguments) != 2 {
		t.Fatalf("expected 2 arguments, got %d: %+v", len(info.Arguments), info.Arguments)
	}

	byName := map[string]model.ArgumentSpec{}
	for _, a := range info.Arguments {
		byName[a.Name] = a
	}
	if !byName["Name"].Required {
		t.Errorf("Name should be mandatory")
	}
	if byName["Count"].Required {
		t.Errorf("Count should not be mandatory")
	}
	if byName["Count"].TypeHint != model.TypeInt {
		t.Errorf("Count should be TypeInt, got %v", byName["Count"].TypeHint)
	}
}

func TestAnalyzeBatchPositionalArgs(t *testing.T) {
	source := `@echo off
REM first argument: the input file
echo %1
REM second argument: output mode
echo %2
`
	path := writeTemp(t, "script.bat", source)
	info := Analyze(path)

	if info.Strategy != model.StrategyBatch {
		t.Fatalf("expected Batch strategy, got %v", info.Strategy)
	}
	if len(info.Arguments) != 2 {
		t.Fatalf("expected 2 positional arguments, got %d", len(info.Arguments))
	}
	if info.Arguments[0].Help != "first argument: the input file" {
		t.Errorf("unexpected help for %%1: %q", info.Arguments[0].Help)
	}
}

func TestAnalyzeShellGetopts(t *testing.T) {
	source := `#!/bin/bash
while getopts "ab:c" opt; do
  case $opt in
    a) ;;
    b) value=$OPTARG ;;
    c) ;;
  esac
done
`
	path := writeTemp(t, "script.sh", source)
	info := Analyze(path)

	if info.Strategy != model.StrategyShell {
		t.Fatalf("expected Shell strategy, got %v", info.Strategy)
	}
	if len(info.Arguments) != 3 {
		t.Fatalf("expected 3 getopts options, got %d: %+v", len(info.Arguments), info.Arguments)
	}
	byName := map[string]model.ArgumentSpec{}
	for _, a := range info.Arguments {
		byName[a.Name] = a
	}
	if byName["b"].TypeHint != model.TypeString {
		t.Errorf("b should take a value (TypeString), got %v", byName["b"].TypeHint)
	}
	if byName["a"].TypeHint != model.TypeBool {
		t.Errorf("a should be a bare flag (TypeBool), got %v", byName["a"].TypeHint)
	}
}

func TestAnalyzeShellPositionalFallback(t *testing.T) {
	source := `#!/bin/bash
echo $1 # the source file
echo $2 # the dest file
`
	path := writeTemp(t, "script.sh", source)
	info := Analyze(path)
	if len(info.Arguments) != 2 {
		t.Fatalf("expected 2 positional args, got %d", len(info.Arguments))
	}
	if info.Arguments[0].Help != "the source file" {
		t.Errorf("unexpected help: %q", info.Arguments[0].Help)
	}
}

func TestCanonicalIdentifierAndLegacyKeys(t *testing.T) {
	path := writeTemp(t, "My-Script.py", "x = 1\n")
	info := Analyze(path)
	if info.CanonicalIdentifier != "my-script.py" {
		t.Errorf("canonical identifier = %q, want %q", info.CanonicalIdentifier, "my-script.py")
	}
	if len(info.LegacyKeys) != 1 || info.LegacyKeys[0] != "my-script" {
		t.Errorf("legacy keys = %v, want [my-script]", info.LegacyKeys)
	}
}
