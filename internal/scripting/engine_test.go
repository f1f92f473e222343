package scripting

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNoHooksAllowsEverything(t *testing.T) {
	e, err := NewEngine(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, LoginDecision{Allowed: true}, e.OnLoginStart("Steve", "id"))
	assert.Equal(t, "fallback", e.MOTD(0, "fallback"))
}

func TestLoginHookFromDir(t *testing.T) {
	dir := t.TempDir()
	login := filepath.Join(dir, "login")
	require.NoError(t, os.MkdirAll(login, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(login, "bans.lua"), []byte(`
local banned = { Griefer = true }
function on_login_start(name, uuid)
  if banned[name] then
    return false, "You are banned"
  end
  return true
end
`), 0o644))

	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, LoginDecision{Allowed: false, Reason: "You are banned"}, e.OnLoginStart("Griefer", "x"))
	assert.Equal(t, LoginDecision{Allowed: true}, e.OnLoginStart("Alex", "y"))
}

func TestBrokenScriptFailsLoad(t *testing.T) {
	dir := t.TempDir()
	core := filepath.Join(dir, "core")
	require.NoError(t, os.MkdirAll(core, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(core, "bad.lua"), []byte("function ("), 0o644))

	_, err := NewEngine(dir, zap.NewNop())
	assert.Error(t, err)
}

func TestHookErrorFallsBack(t *testing.T) {
	e := newEngine(zap.NewNop())
	defer e.Close()
	require.NoError(t, e.LoadString(`
function on_login_start(name) error("boom") end
function server_motd(online) return 42 end
`))

	assert.True(t, e.OnLoginStart("a", "b").Allowed)
	assert.Equal(t, "fb", e.MOTD(1, "fb"))
}

func TestMOTDHookConcurrent(t *testing.T) {
	e := newEngine(zap.NewNop())
	defer e.Close()
	require.NoError(t, e.LoadString(`function server_motd(online) return "online: " .. online end`))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "online: 3", e.MOTD(3, ""))
		}()
	}
	wg.Wait()
}
