//go:build !windows

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Use-Tusk/shellgate/internal/config"
	"github.com/Use-Tusk/shellgate/internal/logstore"
	"github.com/Use-Tusk/shellgate/internal/validate"
)

func intPtr(i int) *int    { return &i }
func boolPtr(b bool) *bool { return &b }

func testConfig(dir string) *config.Config {
	return &config.Config{
		Global: config.GlobalConfig{
			Security: config.SecurityConfig{CommandTimeout: intPtr(10)},
			Paths:    config.PathsConfig{AllowedPaths: []string{dir}},
		},
		Shells: map[string]*config.ShellConfig{
			config.ShellCmd:        {Enabled: boolPtr(false)},
			config.ShellPowerShell: {Enabled: boolPtr(false)},
			config.ShellGitBash:    {Enabled: boolPtr(false)},
			config.ShellBash:       {Enabled: boolPtr(false)},
			config.ShellWSL:        {Enabled: boolPtr(true)},
			"sh": {
				Enabled:    boolPtr(true),
				Kind:       config.KindPosix,
				Executable: config.ExecutableConfig{Command: "sh", Args: []string{"-c"}},
			},
		},
	}
}

func TestManager_ExecuteCommand(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(testConfig(dir), nil, Options{})
	require.NoError(t, m.Initialize())
	defer m.Cleanup()

	res, err := m.ExecuteCommand(context.Background(), "sh", "echo hello", dir, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Output)

	entry, err := m.Output(context.Background(), res.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", entry.Output)

	_, err = m.ExecuteCommand(context.Background(), "sh", "ls | wc -l", dir, 0)
	assert.ErrorIs(t, err, validate.ErrOperatorBlocked)

	_, err = m.ExecuteCommand(context.Background(), config.ShellBash, "ls", dir, 0)
	assert.ErrorIs(t, err, validate.ErrShellNotFound)
}

func TestManager_ConcurrentExecutions(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(testConfig(dir), nil, Options{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.ExecuteCommand(context.Background(), "sh", "echo hi", dir, 0)
			if assert.NoError(t, err) {
				assert.Equal(t, "hi\n", res.Output)
			}
		}()
	}
	wg.Wait()
}

func TestManager_ValidateDirectories(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(testConfig(dir), nil, Options{})

	paths := []string{dir, filepath.Join(dir, "sub"), "/etc", dir + "/../x", `C:\work`}

	report, err := m.ValidateDirectories(paths, "sh")
	require.NoError(t, err)
	assert.Equal(t, []string{dir, filepath.Join(dir, "sub")}, report.Valid)
	assert.Equal(t, []string{"/etc", dir + "/../x", `C:\work`}, report.Invalid)

	_, err = m.ValidateDirectories(paths, "missing")
	assert.ErrorIs(t, err, validate.ErrShellNotFound)
}

func TestManager_ValidateDirectoriesAnyShell(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Shells[config.ShellWSL].Overrides = &config.ShellOverride{
		Paths: config.PathsConfig{AllowedPaths: []string{"/mnt/c/work"}},
		WSL:   &config.WSLConfig{InheritGlobalPaths: boolPtr(false)},
	}
	m := NewManager(cfg, nil, Options{})

	report, err := m.ValidateDirectories([]string{`C:\work\repo`, dir, "/srv"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{`C:\work\repo`, dir}, report.Valid)
	assert.Equal(t, []string{"/srv"}, report.Invalid)
}

func TestManager_ResolvedConfig(t *testing.T) {
	dir := t.TempDir()
	cli := &config.CLIOverrides{CommandTimeout: 7}
	m := NewManager(testConfig(dir), cli, Options{})

	snap, err := m.ResolvedConfig()
	require.NoError(t, err)
	require.Contains(t, snap, "sh")
	require.Contains(t, snap, config.ShellWSL)
	assert.Equal(t, 7, snap["sh"].Security.CommandTimeout)
	assert.Nil(t, snap["sh"].WSL)
	assert.NotNil(t, snap[config.ShellWSL].WSL)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mountPoint":"/mnt/"`)

	ids, err := m.Shells()
	require.NoError(t, err)
	assert.Equal(t, []string{config.ShellWSL, "sh"}, ids)
}

func TestManager_ConfigError(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Global.Security.MaxCommandLength = intPtr(0)
	m := NewManager(cfg, nil, Options{})

	err := m.Initialize()
	var cerr *config.ConfigError
	require.True(t, errors.As(err, &cerr), "got %v", err)
	assert.Equal(t, "security.maxCommandLength", cerr.Field)
}

func TestManager_SQLiteStore(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Global.Logging.StorePath = filepath.Join(t.TempDir(), "exec.db")

	m := NewManager(cfg, nil, Options{})
	res, err := m.ExecuteCommand(context.Background(), "sh", "echo stored", dir, 0)
	require.NoError(t, err)

	entry, err := m.Output(context.Background(), res.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "stored\n", entry.Output)
	m.Cleanup()

	reopened, err := logstore.NewSQLiteStore(cfg.Global.Logging.StorePath)
	require.NoError(t, err)
	defer reopened.Close()
	entry, err = reopened.Get(context.Background(), res.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "stored\n", entry.Output)
}
