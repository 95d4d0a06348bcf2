// Package executor implements BindKit's Executor (spec.md §4.D): it
// validates arguments, dispatches to the execution strategy a script was
// classified with, enforces the timeout/terminate/kill ladder, and overlays
// any structured JSON the script printed onto the result.
package executor

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bindkit/bindkit/interpreter"
	"github.com/bindkit/bindkit/modcache"
	"github.com/bindkit/bindkit/model"
	"github.com/bindkit/bindkit/settings"
)

// ServiceStarter lets the Executor delegate the Service strategy to the
// Service Runtime (spec.md §4.E) without importing it directly, avoiding an
// import cycle.
type ServiceStarter interface {
	StartService(name, path string, args map[string]string) (model.ServiceHandle, error)
}

// Executor runs scripts according to their classified ExecutionStrategy.
type Executor struct {
	Store       settings.Store
	Interpreter *interpreter.Resolver
	Cache       *modcache.Cache
	Services    ServiceStarter

	PythonPath string // defaults to "python" on PATH if empty
}

const defaultTimeoutSeconds = 30

func (e *Executor) timeout() time.Duration {
	secs := e.Store.GetInt("execution/script_timeout_seconds", defaultTimeoutSeconds)
	return time.Duration(secs) * time.Second
}

func (e *Executor) pythonPath() string {
	if e.PythonPath != "" {
		return e.PythonPath
	}
	return "python"
}

// pythonEnv forces UTF-8 I/O so scripts with non-ASCII output don't crash
// on Windows consoles, per spec.md §4.D.
func pythonEnv() []string {
	env := os.Environ()
	env = append(env, "PYTHONIOENCODING=utf-8")
	hasUTF8 := false
	for _, kv := range env {
		if len(kv) >= 11 && kv[:11] == "PYTHONUTF8=" {
			hasUTF8 = true
			break
		}
	}
	if !hasUTF8 {
		env = append(env, "PYTHONUTF8=1")
	}
	return env
}

// Execute runs script with the given argument values, per spec.md §4.D.
func (e *Executor) Execute(ctx context.Context, script model.ScriptInfo, args map[string]string) model.ExecutionResult {
	if err := validateArguments(script.Arguments, args); err != nil {
		return model.ExecutionResult{Success: false, Error: err.Error()}
	}

	switch script.Strategy {
	case model.StrategySubprocess:
		return e.executeSubprocess(ctx, script, args)
	case model.StrategyInProcessFunction, model.StrategyInProcessModule:
		return e.executeInProcess(ctx, script, args)
	case model.StrategyService:
		return e.executeService(script, args)
	case model.StrategyPowerShell:
		return e.executePowerShell(ctx, script, args)
	case model.StrategyBatch:
		return e.executeBatch(ctx, script, args)
	case model.StrategyShell:
		return e.executeShell(ctx, script, args)
	default:
		return model.ExecutionResult{Success: false, Error: fmt.Sprintf("unsupported strategy %q", script.Strategy)}
	}
}

func (e *Executor) executeSubprocess(ctx context.Context, script model.ScriptInfo, args map[string]string) model.ExecutionResult {
	argv := buildSubprocessCommand(e.pythonPath(), script, args)
	return e.run(ctx, script, argv, pythonEnv())
}

// executeInProcess runs the script through its cached per-script driver
// (see inprocess.go): the function driver imports the module, filters the
// provided arguments through the target function's signature, calls it,
// and converts the return value; the module driver execs the whole module
// under a simulated argv. The driver reports the converted result as a
// single JSON object on stdout, which the shared overlay folds into the
// ExecutionResult.
func (e *Executor) executeInProcess(ctx context.Context, script model.ScriptInfo, args map[string]string) model.ExecutionResult {
	// Sweep is rate-limited internally to min(300s, ttl), so triggering it
	// on every in-process execute keeps stale entries bounded without a
	// dedicated timer.
	e.Cache.Sweep()
	loaded, err := loadOrRefresh(e.Cache, script, defaultMainFunction)
	if err != nil {
		return model.ExecutionResult{Success: false, Error: err.Error()}
	}

	argv, err := buildInProcessCommand(e.pythonPath(), loaded, script, args)
	if err != nil {
		return model.ExecutionResult{Success: false, Error: err.Error()}
	}
	return e.run(ctx, script, argv, pythonEnv())
}

func (e *Executor) executeService(script model.ScriptInfo, args map[string]string) model.ExecutionResult {
	if e.Services == nil {
		return model.ExecutionResult{Success: false, Error: "service runtime not configured"}
	}
	handle, err := e.Services.StartService(script.CanonicalIdentifier, script.FilePath, args)
	if err != nil {
		return model.ExecutionResult{Success: false, Error: err.Error()}
	}
	return model.ExecutionResult{Success: true, Message: fmt.Sprintf("started, pid=%d", handle.PID)}
}

func (e *Executor) executePowerShell(ctx context.Context, script model.ScriptInfo, args map[string]string) model.ExecutionResult {
	resolved, err := e.Interpreter.Resolve(interpreter.KindPowerShell)
	if err != nil {
		return model.ExecutionResult{Success: false, Error: err.Error()}
	}
	argv := buildPowerShellCommand(resolved.Path, script, args)
	return e.run(ctx, script, argv, os.Environ())
}

func (e *Executor) executeBatch(ctx context.Context, script model.ScriptInfo, args map[string]string) model.ExecutionResult {
	resolved, err := e.Interpreter.Resolve(interpreter.KindCmd)
	if err != nil {
		return model.ExecutionResult{Success: false, Error: err.Error()}
	}
	argv := buildBatchCommand(resolved.Path, script, args)
	return e.run(ctx, script, argv, os.Environ())
}

func (e *Executor) executeShell(ctx context.Context, script model.ScriptInfo, args map[string]string) model.ExecutionResult {
	resolved, err := e.Interpreter.Resolve(interpreter.KindBash)
	if err != nil {
		return model.ExecutionResult{Success: false, Error: err.Error()}
	}
	argv := buildShellCommand(resolved.Path, resolved.IsWSL, resolved.Distro, script, args)
	return e.run(ctx, script, argv, os.Environ())
}

// run spawns argv, applies the timeout ladder, and overlays JSON stdout
// onto the result, common to every subprocess-backed strategy.
func (e *Executor) run(ctx context.Context, script model.ScriptInfo, argv []string, env []string) model.ExecutionResult {
	res, err := runSubprocess(ctx, argv, env, e.timeout())
	if err != nil {
		return model.ExecutionResult{Success: false, Error: err.Error()}
	}

	if res.TimedOut {
		log.Printf("executor: %s timed out after %s", script.DisplayName, e.timeout())
		return model.ExecutionResult{
			Success:    false,
			Message:    fmt.Sprintf("Script execution timed out (%d seconds)", int(e.timeout().Seconds())),
			Output:     res.Stdout,
			Error:      res.Stderr,
			ReturnCode: &res.ReturnCode,
		}
	}

	success := res.ReturnCode == 0
	message, success, data := overlayJSON(res.Stdout, success)

	return model.ExecutionResult{
		Success:        success,
		Message:        message,
		Output:         res.Stdout,
		Error:          res.Stderr,
		ReturnCode:     &res.ReturnCode,
		StructuredData: data,
	}
}
