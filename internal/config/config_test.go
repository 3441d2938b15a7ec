package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "default config",
			config:  *Default(),
			wantErr: false,
		},
		{
			name: "zero max command length",
			config: Config{Global: GlobalConfig{Security: SecurityConfig{
				MaxCommandLength: intPtr(0),
			}}},
			wantErr: true,
		},
		{
			name: "zero timeout",
			config: Config{Global: GlobalConfig{Security: SecurityConfig{
				CommandTimeout: intPtr(0),
			}}},
			wantErr: true,
		},
		{
			name: "empty blocked command",
			config: Config{Global: GlobalConfig{Restrictions: RestrictionsConfig{
				BlockedCommands: []string{"rm", ""},
			}}},
			wantErr: true,
		},
		{
			name: "empty blocked operator",
			config: Config{Global: GlobalConfig{Restrictions: RestrictionsConfig{
				BlockedOperators: []string{""},
			}}},
			wantErr: true,
		},
		{
			name: "empty allowed path",
			config: Config{Global: GlobalConfig{Paths: PathsConfig{
				AllowedPaths: []string{""},
			}}},
			wantErr: true,
		},
		{
			name: "unknown kind",
			config: Config{Shells: map[string]*ShellConfig{
				"zsh": {Kind: "amiga"},
			}},
			wantErr: true,
		},
		{
			name: "relative mount point",
			config: Config{Shells: map[string]*ShellConfig{
				"wsl": {WSLConfig: &WSLConfig{MountPoint: "mnt"}},
			}},
			wantErr: true,
		},
		{
			name: "override with negative timeout",
			config: Config{Shells: map[string]*ShellConfig{
				"bash": {Overrides: &ShellOverride{Security: SecurityConfig{CommandTimeout: intPtr(-1)}}},
			}},
			wantErr: true,
		},
		{
			name: "explicit empty lists are valid",
			config: Config{Global: GlobalConfig{Restrictions: RestrictionsConfig{
				BlockedCommands:  []string{},
				BlockedArguments: []string{},
				BlockedOperators: []string{},
			}}},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigErrorIsTyped(t *testing.T) {
	cfg := Config{Global: GlobalConfig{Security: SecurityConfig{CommandTimeout: intPtr(0)}}}
	err := cfg.Validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if cfgErr.Field != "security.commandTimeout" {
		t.Errorf("Field = %q, want security.commandTimeout", cfgErr.Field)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg == nil {
		t.Fatal("Default() returned nil")
	}
	if *cfg.Global.Security.MaxCommandLength != DefaultMaxCommandLength {
		t.Errorf("MaxCommandLength = %d, want %d", *cfg.Global.Security.MaxCommandLength, DefaultMaxCommandLength)
	}
	if *cfg.Global.Security.CommandTimeout != DefaultCommandTimeout {
		t.Errorf("CommandTimeout = %d, want %d", *cfg.Global.Security.CommandTimeout, DefaultCommandTimeout)
	}
	if !slices.Equal(cfg.Global.Restrictions.BlockedOperators, DefaultBlockedOperators) {
		t.Errorf("BlockedOperators = %v", cfg.Global.Restrictions.BlockedOperators)
	}
	for _, id := range []string{ShellCmd, ShellPowerShell, ShellGitBash, ShellBash, ShellWSL} {
		if _, ok := cfg.Shells[id]; !ok {
			t.Errorf("default config missing shell %q", id)
		}
	}

	// Mutating the defaults must not leak into package-level lists.
	cfg.Global.Restrictions.BlockedCommands[0] = "changed"
	if DefaultBlockedCommands[0] == "changed" {
		t.Error("Default() shares the DefaultBlockedCommands backing array")
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name        string
		file        string
		content     string
		wantNil     bool
		wantErr     bool
		checkConfig func(*testing.T, *Config)
	}{
		{
			name:    "nonexistent file",
			file:    "",
			wantNil: true,
		},
		{
			name:    "empty file",
			file:    "empty.json",
			content: "",
			wantNil: true,
		},
		{
			name:    "whitespace only file",
			file:    "whitespace.json",
			content: "   \n\t  ",
			wantNil: true,
		},
		{
			name: "jsonc with comments",
			file: "valid.json",
			content: `{
				// global settings
				"global": {"security": {"commandTimeout": 5}},
				"shells": {"bash": {"enabled": true}}, // trailing comma below
			}`,
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.Global.Security.CommandTimeout == nil || *cfg.Global.Security.CommandTimeout != 5 {
					t.Errorf("CommandTimeout = %v, want 5", cfg.Global.Security.CommandTimeout)
				}
				if !cfg.Shells["bash"].IsEnabled() {
					t.Error("expected bash enabled")
				}
			},
		},
		{
			name: "toml",
			file: "valid.toml",
			content: `
[global.restrictions]
blockedCommands = ["rm", "del"]

[shells.wsl]
enabled = true

[shells.wsl.wslConfig]
mountPoint = "/win/"
`,
			checkConfig: func(t *testing.T, cfg *Config) {
				if !slices.Equal(cfg.Global.Restrictions.BlockedCommands, []string{"rm", "del"}) {
					t.Errorf("BlockedCommands = %v", cfg.Global.Restrictions.BlockedCommands)
				}
				if cfg.Shells["wsl"].WSLConfig == nil || cfg.Shells["wsl"].WSLConfig.MountPoint != "/win/" {
					t.Errorf("wsl mount point not decoded: %+v", cfg.Shells["wsl"])
				}
			},
		},
		{
			name: "yaml",
			file: "valid.yaml",
			content: `
global:
  paths:
    allowedPaths: ["/srv", "/home/me"]
shells:
  zsh:
    enabled: true
    kind: posix
    executable:
      command: zsh
      args: ["-c"]
`,
			checkConfig: func(t *testing.T, cfg *Config) {
				if len(cfg.Global.Paths.AllowedPaths) != 2 {
					t.Errorf("AllowedPaths = %v", cfg.Global.Paths.AllowedPaths)
				}
				if cfg.Shells["zsh"].Kind != KindPosix {
					t.Errorf("Kind = %q, want posix", cfg.Shells["zsh"].Kind)
				}
			},
		},
		{
			name:    "legacy includeDefaultWSL is accepted",
			file:    "legacy.json",
			content: `{"includeDefaultWSL": true}`,
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.IncludeDefaultWSL == nil || !*cfg.IncludeDefaultWSL {
					t.Error("includeDefaultWSL should be decoded")
				}
			},
		},
		{
			name:    "invalid JSON",
			file:    "invalid.json",
			content: "{invalid json}",
			wantErr: true,
		},
		{
			name:    "invalid timeout",
			file:    "timeout.json",
			content: `{"global":{"security":{"commandTimeout":0}}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, "nonexistent.json")
			if tt.file != "" {
				path = filepath.Join(tmpDir, tt.file)
				if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
					t.Fatal(err)
				}
			}

			cfg, err := Load(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantNil && cfg != nil {
				t.Errorf("Load() expected nil config, got %+v", cfg)
				return
			}
			if tt.checkConfig != nil {
				if cfg == nil {
					t.Fatal("Load() returned nil config")
				}
				tt.checkConfig(t, cfg)
			}
		})
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if filepath.Base(path) != ".shellgate.json" {
		t.Errorf("DefaultConfigPath() = %q, want .shellgate.json basename", path)
	}
}

func TestMerge(t *testing.T) {
	t.Run("nil both", func(t *testing.T) {
		result := Merge(nil, nil)
		if result == nil {
			t.Fatal("expected non-nil result")
		}
	})

	t.Run("nil base clears extends", func(t *testing.T) {
		override := &Config{Extends: "strict", Global: GlobalConfig{Paths: PathsConfig{AllowedPaths: []string{"/a"}}}}
		result := Merge(nil, override)
		if result.Extends != "" {
			t.Errorf("Extends = %q, want empty", result.Extends)
		}
		if len(result.Global.Paths.AllowedPaths) != 1 {
			t.Errorf("AllowedPaths = %v", result.Global.Paths.AllowedPaths)
		}
	})

	t.Run("slices append with dedup", func(t *testing.T) {
		base := &Config{Global: GlobalConfig{Restrictions: RestrictionsConfig{BlockedCommands: []string{"rm", "del"}}}}
		override := &Config{Global: GlobalConfig{Restrictions: RestrictionsConfig{BlockedCommands: []string{"del", "format"}}}}
		result := Merge(base, override)
		want := []string{"rm", "del", "format"}
		if !slices.Equal(result.Global.Restrictions.BlockedCommands, want) {
			t.Errorf("BlockedCommands = %v, want %v", result.Global.Restrictions.BlockedCommands, want)
		}
	})

	t.Run("pointer fields override when set", func(t *testing.T) {
		base := &Config{Global: GlobalConfig{Security: SecurityConfig{CommandTimeout: intPtr(30), MaxCommandLength: intPtr(100)}}}
		override := &Config{Global: GlobalConfig{Security: SecurityConfig{CommandTimeout: intPtr(5)}}}
		result := Merge(base, override)
		if *result.Global.Security.CommandTimeout != 5 {
			t.Errorf("CommandTimeout = %d, want 5", *result.Global.Security.CommandTimeout)
		}
		if *result.Global.Security.MaxCommandLength != 100 {
			t.Errorf("MaxCommandLength = %d, want 100", *result.Global.Security.MaxCommandLength)
		}
	})

	t.Run("shells merged per key", func(t *testing.T) {
		base := &Config{Shells: map[string]*ShellConfig{
			"wsl":  {Enabled: boolPtr(false), WSLConfig: &WSLConfig{MountPoint: "/mnt/"}},
			"bash": {Enabled: boolPtr(true)},
		}}
		override := &Config{Shells: map[string]*ShellConfig{
			"wsl": {Enabled: boolPtr(true), WSLConfig: &WSLConfig{InheritGlobalPaths: boolPtr(true)}},
		}}
		result := Merge(base, override)
		wsl := result.Shells["wsl"]
		if !wsl.IsEnabled() {
			t.Error("wsl should be enabled")
		}
		if wsl.WSLConfig.MountPoint != "/mnt/" || wsl.WSLConfig.InheritGlobalPaths == nil {
			t.Errorf("WSLConfig = %+v", wsl.WSLConfig)
		}
		if !result.Shells["bash"].IsEnabled() {
			t.Error("bash should be kept from base")
		}
	})
}

func TestApplyDefaults(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		cfg := ApplyDefaults(nil)
		if cfg.Global.Security.CommandTimeout == nil {
			t.Fatal("expected default timeout")
		}
	})

	t.Run("explicit empty list is kept", func(t *testing.T) {
		cfg := ApplyDefaults(&Config{Global: GlobalConfig{Restrictions: RestrictionsConfig{
			BlockedCommands: []string{},
		}}})
		if cfg.Global.Restrictions.BlockedCommands == nil || len(cfg.Global.Restrictions.BlockedCommands) != 0 {
			t.Errorf("BlockedCommands = %v, want explicit empty", cfg.Global.Restrictions.BlockedCommands)
		}
		if !slices.Equal(cfg.Global.Restrictions.BlockedOperators, DefaultBlockedOperators) {
			t.Errorf("BlockedOperators = %v, want defaults", cfg.Global.Restrictions.BlockedOperators)
		}
	})

	t.Run("user shell merged onto default shell", func(t *testing.T) {
		cfg := ApplyDefaults(&Config{Shells: map[string]*ShellConfig{
			ShellWSL: {Enabled: boolPtr(true)},
			"zsh":    {Enabled: boolPtr(true), Kind: KindPosix, Executable: ExecutableConfig{Command: "zsh", Args: []string{"-c"}}},
		}})
		if !cfg.Shells[ShellWSL].IsEnabled() {
			t.Error("wsl should be enabled")
		}
		if _, ok := cfg.Shells[ShellGitBash]; !ok {
			t.Error("gitbash default entry missing")
		}
		if cfg.Shells["zsh"].Executable.Command != "zsh" {
			t.Error("custom shell lost")
		}
	})
}

func TestCLIOverrides(t *testing.T) {
	t.Run("force single shell", func(t *testing.T) {
		cfg := Default()
		o := &CLIOverrides{Shell: ShellWSL, MaxOutputLines: 50}
		o.Apply(cfg)
		for id, sh := range cfg.Shells {
			if sh.IsEnabled() != (id == ShellWSL) {
				t.Errorf("shell %q enabled = %v", id, sh.IsEnabled())
			}
		}
		if *cfg.Global.Logging.MaxOutputLines != 50 {
			t.Errorf("MaxOutputLines = %d, want 50", *cfg.Global.Logging.MaxOutputLines)
		}
	})

	t.Run("apply does not mutate shared shell configs", func(t *testing.T) {
		shared := &ShellConfig{Enabled: boolPtr(true)}
		cfg := &Config{Shells: map[string]*ShellConfig{"bash": shared, "cmd": shared}}
		(&CLIOverrides{Shell: "bash"}).Apply(cfg)
		if !*shared.Enabled {
			t.Error("shared ShellConfig was mutated")
		}
	})

	t.Run("empty overrides", func(t *testing.T) {
		if (&CLIOverrides{}).AsOverride() != nil {
			t.Error("expected nil override")
		}
	})

	t.Run("override fields", func(t *testing.T) {
		ov := (&CLIOverrides{AllowedDirs: []string{"/srv"}, InitialDir: "/srv", MountPoint: "/win/", CommandTimeout: 3}).AsOverride()
		if ov == nil {
			t.Fatal("expected override")
		}
		if !slices.Equal(ov.Paths.AllowedPaths, []string{"/srv"}) || *ov.Paths.InitialDir != "/srv" {
			t.Errorf("paths = %+v", ov.Paths)
		}
		if ov.WSL == nil || ov.WSL.MountPoint != "/win/" {
			t.Errorf("WSL = %+v", ov.WSL)
		}
		if *ov.Security.CommandTimeout != 3 {
			t.Errorf("CommandTimeout = %d", *ov.Security.CommandTimeout)
		}
	})
}

func TestKind(t *testing.T) {
	tests := []struct {
		kind                      Kind
		valid, windows, unix, wsl bool
	}{
		{KindWindows, true, true, false, false},
		{KindMixed, true, false, true, false},
		{KindPosix, true, false, true, false},
		{KindWSL, true, false, true, true},
		{"dos", false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if tt.kind.Valid() != tt.valid || tt.kind.IsWindows() != tt.windows ||
				tt.kind.IsUnix() != tt.unix || tt.kind.IsWSL() != tt.wsl {
				t.Errorf("classification of %q is wrong", tt.kind)
			}
		})
	}
}
