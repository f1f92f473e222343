package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sasha-s/go-deadlock"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for server hook scripts. An LState is
// not goroutine-safe and packet handlers run in parallel, so every call into
// the VM is serialised by mu.
type Engine struct {
	mu  deadlock.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory: core/ first, then the feature directories. Missing directories
// are skipped.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	for _, sub := range []string{"core", "login", "world"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			e.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return &Engine{vm: vm, log: log}
}

// LoadString runs a chunk of Lua source in the engine's global scope.
func (e *Engine) LoadString(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.DoString(src)
}

func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
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
	e.mu.Lock()
	defer e.mu.Unlock()
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

// LoginDecision is returned by the on_login_start hook.
type LoginDecision struct {
	Allowed bool
	Reason  string
}

// OnLoginStart calls the Lua on_login_start(name, uuid) hook. The hook returns
// a boolean and an optional reason string. Without a hook, or when the hook
// errors, every login is allowed.
func (e *Engine) OnLoginStart(name, uuid string) LoginDecision {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("on_login_start")
	if fn == lua.LNil {
		return LoginDecision{Allowed: true}
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, lua.LString(name), lua.LString(uuid)); err != nil {
		e.log.Error("lua on_login_start error", zap.Error(err))
		return LoginDecision{Allowed: true}
	}

	allowed := e.vm.Get(-2)
	reason := e.vm.Get(-1)
	e.vm.Pop(2)

	d := LoginDecision{Allowed: lua.LVAsBool(allowed)}
	if s, ok := reason.(lua.LString); ok {
		d.Reason = string(s)
	}
	return d
}

// MOTD calls the Lua server_motd(online) hook and returns its string, or
// fallback when the hook is absent or does not return a string.
func (e *Engine) MOTD(online int, fallback string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("server_motd")
	if fn == lua.LNil {
		return fallback
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(online)); err != nil {
		e.log.Error("lua server_motd error", zap.Error(err))
		return fallback
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	if s, ok := ret.(lua.LString); ok {
		return string(s)
	}
	return fallback
}
