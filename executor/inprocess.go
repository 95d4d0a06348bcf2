package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bindkit/bindkit/modcache"
	"github.com/bindkit/bindkit/model"
)

const defaultMainFunction = "main"

// functionDriverTemplate is the Python shim the host spawns for the
// InProcessFunction strategy. It loads the target script as a module
// (importlib), finds the target function, filters the provided arguments
// through inspect.signature so only matching parameters are passed (keyword
// for POSITIONAL_OR_KEYWORD, positional for POSITIONAL_ONLY), converts the
// return value per the None/dict/str/bool rules, and prints the converted
// result as a single JSON object for the stdout overlay to pick up.
const functionDriverTemplate = `import importlib.util
import inspect
import json
import sys

SCRIPT = %q
MODULE = %q
FUNC = %q


def _load():
    spec = importlib.util.spec_from_file_location(MODULE, SCRIPT)
    if spec is None or spec.loader is None:
        raise ImportError("could not load module spec for " + SCRIPT)
    module = importlib.util.module_from_spec(spec)
    sys.modules[MODULE] = module
    spec.loader.exec_module(module)
    return module


def _convert(result):
    if result is None:
        return {"success": True, "message": "Script executed successfully"}
    if isinstance(result, dict):
        out = dict(result)
        out["success"] = result.get("success", True)
        out["message"] = result.get("message", "Script executed successfully")
        return out
    if isinstance(result, str):
        return {"success": True, "message": result}
    if isinstance(result, bool):
        message = "Script executed successfully" if result else "Script execution failed"
        return {"success": result, "message": message}
    return {"success": True, "message": str(result)}


def _main():
    provided = json.loads(sys.argv[1]) if len(sys.argv) > 1 else {}
    module = _load()
    fn = getattr(module, FUNC, None)
    if fn is None:
        print(json.dumps({"success": False, "message": "Function '" + FUNC + "' not found in script"}))
        return 1
    sig = inspect.signature(fn)
    args = []
    kwargs = {}
    for name, param in sig.parameters.items():
        if name not in provided:
            continue
        if param.kind == inspect.Parameter.POSITIONAL_ONLY:
            args.append(provided[name])
        elif param.kind == inspect.Parameter.POSITIONAL_OR_KEYWORD:
            kwargs[name] = provided[name]
    print(json.dumps(_convert(fn(*args, **kwargs))))
    return 0


if __name__ == "__main__":
    try:
        sys.exit(_main())
    except Exception as exc:
        print(json.dumps({"success": False, "message": "Function execution failed: " + str(exc)}))
        sys.exit(1)
`

// moduleDriverTemplate is the shim for the InProcessModule strategy: it
// swaps in a simulated argv (script path plus the --name value pairs the
// host appended), executes the whole module, restores argv in a finally
// block, and reports the outcome as a single JSON object.
const moduleDriverTemplate = `import importlib.util
import json
import sys

SCRIPT = %q
MODULE = %q


def _main():
    original = list(sys.argv)
    sys.argv = [SCRIPT] + sys.argv[1:]
    try:
        spec = importlib.util.spec_from_file_location(MODULE, SCRIPT)
        if spec is None or spec.loader is None:
            print(json.dumps({"success": False, "message": "could not load module spec for " + SCRIPT}))
            return 1
        module = importlib.util.module_from_spec(spec)
        spec.loader.exec_module(module)
        print(json.dumps({"success": True, "message": "Script executed successfully"}))
        return 0
    finally:
        sys.argv = original


if __name__ == "__main__":
    try:
        sys.exit(_main())
    except Exception as exc:
        print(json.dumps({"success": False, "message": "Module execution failed: " + str(exc)}))
        sys.exit(1)
`

// loadedScript is the modcache.Module cached for the in-process strategies:
// the generated per-script driver that performs the import/inspect/call
// dance in the Python runtime. The driver is rebuilt when the script's
// mtime or strategy changes (the "reload" analogue); Teardown deletes it.
type loadedScript struct {
	ScriptPath string
	DriverPath string
	Strategy   model.ExecutionStrategy
	ModTime    time.Time
}

func (l *loadedScript) Teardown() {
	if l.DriverPath != "" {
		os.Remove(l.DriverPath)
	}
}

var moduleNameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]`)

// writeDriver materializes the strategy's driver for script as a temp file.
func writeDriver(script model.ScriptInfo, funcName string) (*loadedScript, error) {
	base := filepath.Base(script.FilePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	modName := moduleNameSanitizer.ReplaceAllString(stem, "_")
	if modName == "" {
		modName = "script"
	}

	var source string
	if script.Strategy == model.StrategyInProcessModule {
		source = fmt.Sprintf(moduleDriverTemplate, script.FilePath, modName)
	} else {
		source = fmt.Sprintf(functionDriverTemplate, script.FilePath, modName, funcName)
	}

	f, err := os.CreateTemp("", "bindkit-driver-*.py")
	if err != nil {
		return nil, fmt.Errorf("executor: create driver: %w", err)
	}
	if _, err := f.WriteString(source); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("executor: write driver: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("executor: close driver: %w", err)
	}

	l := &loadedScript{ScriptPath: script.FilePath, DriverPath: f.Name(), Strategy: script.Strategy}
	if info, statErr := os.Stat(script.FilePath); statErr == nil {
		l.ModTime = info.ModTime()
	}
	return l, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// loadOrRefresh returns the cached driver for script, rebuilding it if the
// script's mtime or strategy has changed since it was cached, or if it was
// never cached. If the rebuild fails, the stale cached driver (if still on
// disk) is returned instead, mirroring the original "reload; fall back to
// the cached module if reload fails" policy.
func loadOrRefresh(cache *modcache.Cache, script model.ScriptInfo, funcName string) (*loadedScript, error) {
	name := script.CanonicalIdentifier
	info, statErr := os.Stat(script.FilePath)

	if existing, ok := cache.Get(name); ok {
		cached := existing.(*loadedScript)
		current := cached.Strategy == script.Strategy && fileExists(cached.DriverPath) &&
			(statErr != nil || info.ModTime().Equal(cached.ModTime))
		if current {
			cache.Touch(name)
			return cached, nil
		}

		fresh, err := writeDriver(script, funcName)
		if err != nil {
			if cached.Strategy == script.Strategy && fileExists(cached.DriverPath) {
				cache.Touch(name)
				return cached, nil
			}
			return nil, err
		}
		cache.Put(name, fresh)
		return fresh, nil
	}

	fresh, err := writeDriver(script, funcName)
	if err != nil {
		return nil, err
	}
	cache.Put(name, fresh)
	return fresh, nil
}

// typedArgs converts the provided string values into JSON-typed values per
// each argument's declared type hint, so the function driver passes real
// ints/floats/bools rather than strings. Values with no declared spec pass
// through as strings; the driver's signature filter decides whether they
// reach the function.
func typedArgs(specs []model.ArgumentSpec, values map[string]string) map[string]any {
	byName := make(map[string]model.ArgumentSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}
	out := make(map[string]any, len(values))
	for name, v := range values {
		if v == "" {
			continue
		}
		spec, ok := byName[name]
		if !ok {
			out[name] = v
			continue
		}
		switch spec.TypeHint {
		case model.TypeInt:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				out[name] = n
				continue
			}
		case model.TypeFloat:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				out[name] = f
				continue
			}
		case model.TypeBool:
			if b, err := strconv.ParseBool(v); err == nil {
				out[name] = b
				continue
			}
		}
		out[name] = v
	}
	return out
}

// buildInProcessCommand constructs the driver invocation: the function
// driver takes the typed arguments as one JSON argv element, the module
// driver takes --name value pairs to splice into the simulated argv.
func buildInProcessCommand(pythonPath string, loaded *loadedScript, script model.ScriptInfo, args map[string]string) ([]string, error) {
	if script.Strategy == model.StrategyInProcessModule {
		return append([]string{pythonPath, loaded.DriverPath}, orderedFlagArgs(script.Arguments, args)...), nil
	}
	payload, err := json.Marshal(typedArgs(script.Arguments, args))
	if err != nil {
		return nil, fmt.Errorf("executor: encode arguments: %w", err)
	}
	return []string{pythonPath, loaded.DriverPath, string(payload)}, nil
}
