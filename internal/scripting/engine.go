package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/blengine/engine/internal/core/ecs"
	"github.com/blengine/engine/internal/prefab"
)

// APIVersion is exposed to scripts as the API_VERSION global.
const APIVersion = 1

// Engine wraps a single gopher-lua VM bound to a registry. Calls into the VM
// are serialized, so hooks may be invoked from any goroutine.
type Engine struct {
	mu      sync.Mutex
	vm      *lua.LState
	reg     *ecs.Registry
	prefabs *prefab.Library
	log     *zap.Logger
	onError func(hook string, err error)
}

// NewEngine creates a Lua engine with the ecs API installed and loads the
// scripts under scriptsDir: core/ first, then the top level, each in file
// name order. A missing directory is skipped.
func NewEngine(scriptsDir string, reg *ecs.Registry, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(APIVersion))

	e := &Engine{vm: vm, reg: reg, log: log}
	e.installAPI()

	if scriptsDir == "" {
		return e, nil
	}
	for _, dir := range []string{filepath.Join(scriptsDir, "core"), scriptsDir} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// SetPrefabs makes lib available to scripts through ecs.spawn.
func (e *Engine) SetPrefabs(lib *prefab.Library) {
	e.mu.Lock()
	e.prefabs = lib
	e.mu.Unlock()
}

// SetErrorHandler registers fn to be told about failing hooks.
func (e *Engine) SetErrorHandler(fn func(hook string, err error)) {
	e.mu.Lock()
	e.onError = fn
	e.mu.Unlock()
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.DoString(src)
}

// HasHook reports whether a global function called name is defined.
func (e *Engine) HasHook(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// CallHook calls the global Lua function name with numeric arguments. An
// undefined hook is not an error. Script errors are logged, reported to the
// error handler and returned.
func (e *Engine) CallHook(name string, args ...float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return nil
	}
	lArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		lArgs[i] = lua.LNumber(a)
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lArgs...); err != nil {
		e.log.Error("lua hook error", zap.String("hook", name), zap.Error(err))
		if e.onError != nil {
			e.onError(name, err)
		}
		return fmt.Errorf("lua hook %s: %w", name, err)
	}
	return nil
}

// GlobalNumber reads a numeric global, for tests and diagnostics.
func (e *Engine) GlobalNumber(name string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.vm.GetGlobal(name).(lua.LNumber)
	return float64(n), ok
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
