// Package interpreter implements BindKit's Interpreter Resolver (spec.md
// §4.B): locating the concrete executable used to run PowerShell, Bash, and
// Batch/Cmd scripts, with results cached until explicitly invalidated.
package interpreter

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/bindkit/bindkit/settings"
)

// Kind identifies which interpreter family a Resolver lookup targets.
type Kind int

const (
	KindPowerShell Kind = iota
	KindBash
	KindCmd
)

// Resolved describes a located interpreter. Path is either a plain
// executable path to exec directly, or (for WSL) a "wsl:<distro>"
// pseudo-path that the Executor recognizes and translates into a
// `wsl -d <distro> --exec bash <path>` invocation.
type Resolved struct {
	Path   string
	IsWSL  bool
	Distro string
}

// Resolver caches interpreter lookups by Kind until Invalidate is called,
// mirroring the original implementation's per-kind interpreter cache.
type Resolver struct {
	store settings.Store

	mu    sync.Mutex
	cache map[Kind]Resolved

	lookPath func(string) (string, error)
}

// New builds a Resolver backed by store for configured interpreter
// overrides (interpreters/powershell_path, interpreters/bash_path,
// interpreters/use_wsl, interpreters/wsl_distro).
func New(store settings.Store) *Resolver {
	return &Resolver{
		store:    store,
		cache:    make(map[Kind]Resolved),
		lookPath: exec.LookPath,
	}
}

// Invalidate clears the cached lookup for kind, forcing re-detection on the
// next Resolve call. Called after a settings change to an interpreter path.
func (r *Resolver) Invalidate(kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, kind)
}

// InvalidateAll clears every cached interpreter lookup.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[Kind]Resolved)
}

func (r *Resolver) Resolve(kind Kind) (Resolved, error) {
	r.mu.Lock()
	if cached, ok := r.cache[kind]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	resolved, err := r.detect(kind)
	if err != nil {
		return Resolved{}, err
	}

	r.mu.Lock()
	r.cache[kind] = resolved
	r.mu.Unlock()
	return resolved, nil
}

func (r *Resolver) detect(kind Kind) (Resolved, error) {
	switch kind {
	case KindPowerShell:
		return r.detectPowerShell()
	case KindBash:
		return r.detectBash()
	case KindCmd:
		return r.detectCmd()
	default:
		return Resolved{}, fmt.Errorf("interpreter: unknown kind %d", kind)
	}
}

// detectPowerShell prefers a configured override (if it exists on disk),
// then pwsh (PowerShell Core), then falls back to Windows PowerShell.
func (r *Resolver) detectPowerShell() (Resolved, error) {
	if custom := r.store.GetString("interpreters/powershell_path", ""); custom != "" {
		if _, err := os.Stat(custom); err == nil {
			return Resolved{Path: custom}, nil
		}
		log.Printf("interpreter: configured powershell_path %q does not exist, falling back", custom)
	}

	if p, err := r.lookPath("pwsh"); err == nil {
		log.Printf("interpreter: detected PowerShell Core at %s", p)
		return Resolved{Path: p}, nil
	}

	if p, err := r.lookPath("powershell"); err == nil {
		log.Printf("interpreter: detected Windows PowerShell at %s", p)
		return Resolved{Path: p}, nil
	}

	return Resolved{}, fmt.Errorf("interpreter: PowerShell not found; configure interpreters/powershell_path")
}

// detectBash prefers a configured override (if it exists on disk), then
// WSL (if enabled, which is the default), then a native bash on PATH.
func (r *Resolver) detectBash() (Resolved, error) {
	if custom := r.store.GetString("interpreters/bash_path", ""); custom != "" {
		if _, err := os.Stat(custom); err == nil {
			return Resolved{Path: custom}, nil
		}
		log.Printf("interpreter: configured bash_path %q does not exist, falling back", custom)
	}

	if r.store.GetBool("interpreters/use_wsl", true) {
		if _, err := r.lookPath("wsl"); err == nil {
			distro := r.store.GetString("interpreters/wsl_distro", "Ubuntu")
			log.Printf("interpreter: using WSL distro %q for bash", distro)
			return Resolved{Path: fmt.Sprintf("wsl:%s", distro), IsWSL: true, Distro: distro}, nil
		}
	}

	if p, err := r.lookPath("bash"); err == nil {
		log.Printf("interpreter: detected native bash at %s", p)
		return Resolved{Path: p}, nil
	}

	return Resolved{}, fmt.Errorf("interpreter: bash not found; install WSL or configure interpreters/bash_path")
}

// detectCmd prefers cmd on PATH, then %SystemRoot%\System32\cmd.exe, which
// is always present on a real Windows install.
func (r *Resolver) detectCmd() (Resolved, error) {
	if p, err := r.lookPath("cmd"); err == nil {
		return Resolved{Path: p}, nil
	}

	systemRoot := os.Getenv("SystemRoot")
	if systemRoot == "" {
		systemRoot = `C:\Windows`
	}
	fallback := filepath.Join(systemRoot, "System32", "cmd.exe")
	if _, err := os.Stat(fallback); err == nil {
		return Resolved{Path: fallback}, nil
	}

	log.Printf("interpreter: cmd.exe not found (unexpected on Windows)")
	return Resolved{}, fmt.Errorf("interpreter: cmd.exe not found")
}
