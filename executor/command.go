package executor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bindkit/bindkit/model"
)

// orderedFlagArgs renders args in the script's declared argument order as
// "--name value" pairs, skipping absent or empty values. Used by the
// Subprocess strategy's command line and the module driver's simulated argv.
func orderedFlagArgs(specs []model.ArgumentSpec, values map[string]string) []string {
	var out []string
	for _, spec := range specs {
		v, ok := values[spec.Name]
		if !ok || v == "" {
			continue
		}
		out = append(out, fmt.Sprintf("--%s", spec.Name), v)
	}
	return out
}

// orderedPositionalArgs renders args in declared order as bare positional
// values, for Batch's %1.. style.
func orderedPositionalArgs(specs []model.ArgumentSpec, values map[string]string) []string {
	var out []string
	for _, spec := range specs {
		v, ok := values[spec.Name]
		if !ok || v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// buildSubprocessCommand constructs `[python, path, --name, value, ...]`.
func buildSubprocessCommand(pythonPath string, script model.ScriptInfo, values map[string]string) []string {
	cmd := []string{pythonPath, script.FilePath}
	cmd = append(cmd, orderedFlagArgs(script.Arguments, values)...)
	return cmd
}

// buildPowerShellCommand constructs
// `[interp, -ExecutionPolicy, Bypass, -File, path, -Name, Value, ...]`.
func buildPowerShellCommand(interpPath string, script model.ScriptInfo, values map[string]string) []string {
	cmd := []string{interpPath, "-ExecutionPolicy", "Bypass", "-File", script.FilePath}
	for _, spec := range script.Arguments {
		v, ok := values[spec.Name]
		if !ok || v == "" {
			continue
		}
		cmd = append(cmd, fmt.Sprintf("-%s", spec.Name), v)
	}
	return cmd
}

// buildBatchCommand constructs `[cmd, /c, path, arg1, arg2, ...]`, positional.
func buildBatchCommand(cmdPath string, script model.ScriptInfo, values map[string]string) []string {
	cmd := []string{cmdPath, "/c", script.FilePath}
	cmd = append(cmd, orderedPositionalArgs(script.Arguments, values)...)
	return cmd
}

// buildShellCommand constructs the bash/WSL invocation. Single-letter
// argument names become "-x value"; multi-letter names are appended
// positionally, per spec.md §4.D. If resolved is a WSL pseudo-interpreter,
// the script path is translated to its WSL mount-point equivalent.
func buildShellCommand(resolved string, isWSL bool, distro string, script model.ScriptInfo, values map[string]string) []string {
	path := script.FilePath
	if isWSL {
		path = toWSLPath(path)
		cmd := []string{"wsl", "-d", distro, "--exec", "bash", path}
		return append(cmd, shellArgTokens(script.Arguments, values)...)
	}
	cmd := []string{resolved, path}
	return append(cmd, shellArgTokens(script.Arguments, values)...)
}

func shellArgTokens(specs []model.ArgumentSpec, values map[string]string) []string {
	var out []string
	for _, spec := range specs {
		v, ok := values[spec.Name]
		if !ok || v == "" {
			continue
		}
		if len(spec.Name) == 1 {
			out = append(out, fmt.Sprintf("-%s", spec.Name), v)
		} else {
			out = append(out, v)
		}
	}
	return out
}

// toWSLPath translates a Windows path (e.g. "C:\scripts\foo.sh") to its WSL
// mount-point equivalent ("/mnt/c/scripts/foo.sh"). Paths already in
// POSIX form are returned unchanged.
func toWSLPath(winPath string) string {
	if len(winPath) < 2 || winPath[1] != ':' {
		return filepath.ToSlash(winPath)
	}
	drive := strings.ToLower(string(winPath[0]))
	rest := strings.ReplaceAll(winPath[2:], `\`, "/")
	return fmt.Sprintf("/mnt/%s%s", drive, rest)
}
