package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/Use-Tusk/shellgate/internal/config"
)

func TestList(t *testing.T) {
	templates := List()
	if len(templates) != 4 {
		t.Fatalf("expected 4 presets, got %d: %v", len(templates), templates)
	}

	want := []string{"default", "development", "strict", "wsl-dev"}
	for i, tmpl := range templates {
		if tmpl.Name != want[i] {
			t.Errorf("template[%d] = %q, want %q", i, tmpl.Name, want[i])
		}
		if tmpl.Description == "" || tmpl.Description == "No description available" {
			t.Errorf("template %q has no description", tmpl.Name)
		}
	}
}

func TestLoad(t *testing.T) {
	for _, tmpl := range List() {
		t.Run(tmpl.Name, func(t *testing.T) {
			cfg, err := Load(tmpl.Name)
			if err != nil {
				t.Fatalf("failed to load template %q: %v", tmpl.Name, err)
			}
			if cfg == nil {
				t.Fatalf("template %q returned nil config", tmpl.Name)
			}
			if cfg.Extends != "" {
				t.Errorf("template %q: extends should be cleared, got %q", tmpl.Name, cfg.Extends)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("template %q does not validate: %v", tmpl.Name, err)
			}
		})
	}
}

func TestLoadWithExtension(t *testing.T) {
	cfg, err := Load("strict.jsonc")
	if err != nil {
		t.Fatalf("failed to load with extension: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
}

func TestLoadNotFound(t *testing.T) {
	if _, err := Load("nonexistent-template"); err == nil {
		t.Error("expected error for nonexistent template")
	}
}

func TestExists(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"default", true},
		{"strict", true},
		{"strict.jsonc", true},
		{"wsl-dev", true},
		{"nonexistent", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Exists(tt.name); got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestDefaultMatchesBuiltins(t *testing.T) {
	cfg, err := Load("default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sec := cfg.Global.Security
	if sec.MaxCommandLength == nil || *sec.MaxCommandLength != config.DefaultMaxCommandLength {
		t.Errorf("maxCommandLength = %v, want %d", sec.MaxCommandLength, config.DefaultMaxCommandLength)
	}
	if sec.CommandTimeout == nil || *sec.CommandTimeout != config.DefaultCommandTimeout {
		t.Errorf("commandTimeout = %v, want %d", sec.CommandTimeout, config.DefaultCommandTimeout)
	}
	r := cfg.Global.Restrictions
	if !slices.Equal(r.BlockedCommands, config.DefaultBlockedCommands) {
		t.Errorf("blockedCommands = %v", r.BlockedCommands)
	}
	if !slices.Equal(r.BlockedArguments, config.DefaultBlockedArguments) {
		t.Errorf("blockedArguments = %v", r.BlockedArguments)
	}
	if !slices.Equal(r.BlockedOperators, config.DefaultBlockedOperators) {
		t.Errorf("blockedOperators = %v", r.BlockedOperators)
	}
}

func TestStrictExtendsDefault(t *testing.T) {
	cfg, err := Load("strict")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := *cfg.Global.Security.CommandTimeout; got != 15 {
		t.Errorf("commandTimeout = %d, want 15", got)
	}
	// Inherited from default.
	if cfg.Global.Security.AllowCommandChaining == nil || *cfg.Global.Security.AllowCommandChaining {
		t.Error("strict should inherit allowCommandChaining=false")
	}
	if cfg.Global.Logging.MaxOutputLines == nil || *cfg.Global.Logging.MaxOutputLines != 20 {
		t.Error("strict should inherit maxOutputLines from default")
	}

	cmds := cfg.Global.Restrictions.BlockedCommands
	for _, want := range []string{"format", "curl", "rm -rf"} {
		if !slices.Contains(cmds, want) {
			t.Errorf("blockedCommands missing %q: %v", want, cmds)
		}
	}
	ops := cfg.Global.Restrictions.BlockedOperators
	for _, want := range []string{"&", "`", ">", "$("} {
		if !slices.Contains(ops, want) {
			t.Errorf("blockedOperators missing %q: %v", want, ops)
		}
	}
}

func TestDevelopmentAllowsChaining(t *testing.T) {
	cfg, err := Load("development")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !*cfg.Global.Security.AllowCommandChaining {
		t.Error("development should allow chaining")
	}
	if !slices.Equal(cfg.Global.Restrictions.BlockedOperators, []string{"`"}) {
		t.Errorf("blockedOperators = %v, want [`]", cfg.Global.Restrictions.BlockedOperators)
	}
}

func TestWSLDevChain(t *testing.T) {
	cfg, err := Load("wsl-dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wsl := cfg.Shells["wsl"]
	if !wsl.IsEnabled() {
		t.Fatal("wsl-dev should enable the wsl shell")
	}
	if wsl.WSLConfig == nil || wsl.WSLConfig.MountPoint != "/mnt/" {
		t.Errorf("unexpected wslConfig: %+v", wsl.WSLConfig)
	}
	if *cfg.Global.Security.CommandTimeout != 120 {
		t.Error("wsl-dev should inherit commandTimeout from development")
	}
}

func TestResolveExtends(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		result, err := ResolveExtends(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != nil {
			t.Error("expected nil result for nil input")
		}
	})

	t.Run("no extends", func(t *testing.T) {
		cfg := &config.Config{
			Global: config.GlobalConfig{
				Paths: config.PathsConfig{AllowedPaths: []string{"/work"}},
			},
		}
		result, err := ResolveExtends(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != cfg {
			t.Error("expected same config when no extends")
		}
	})

	t.Run("extends preset", func(t *testing.T) {
		cfg := &config.Config{
			Extends: "strict",
			Global: config.GlobalConfig{
				Paths: config.PathsConfig{AllowedPaths: []string{"/work"}},
				Restrictions: config.RestrictionsConfig{
					BlockedCommands: []string{"terraform"},
				},
			},
		}
		result, err := ResolveExtends(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Extends != "" {
			t.Error("extends should be cleared after resolution")
		}
		if !slices.Equal(result.Global.Paths.AllowedPaths, []string{"/work"}) {
			t.Errorf("allowedPaths = %v", result.Global.Paths.AllowedPaths)
		}
		cmds := result.Global.Restrictions.BlockedCommands
		if !slices.Contains(cmds, "terraform") || !slices.Contains(cmds, "curl") || !slices.Contains(cmds, "format") {
			t.Errorf("blockedCommands should combine the whole chain: %v", cmds)
		}
	})

	t.Run("extends nonexistent template", func(t *testing.T) {
		cfg := &config.Config{Extends: "nonexistent-template"}
		if _, err := ResolveExtends(cfg); err == nil {
			t.Error("expected error for nonexistent template")
		}
	})
}

func TestIsFileRef(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"strict", false},
		{"wsl-dev", false},
		{"/etc/shellgate/base.jsonc", true},
		{"./base.toml", true},
		{"../shared/base.yaml", true},
		{"configs/base.jsonc", true},
		{"C:\\path\\to\\config.jsonc", true},
		{".\\base.jsonc", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := isFileRef(tt.input); got != tt.want {
				t.Errorf("isFileRef(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtendsFilePath(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("absolute jsonc", func(t *testing.T) {
		base := `{
			// base for the team
			"global": {
				"security": {"commandTimeout": 45},
				"paths": {"allowedPaths": ["/srv"]}
			}
		}`
		basePath := filepath.Join(tmpDir, "base.jsonc")
		if err := os.WriteFile(basePath, []byte(base), 0o600); err != nil {
			t.Fatalf("failed to write base config: %v", err)
		}

		cfg := &config.Config{
			Extends: basePath,
			Global: config.GlobalConfig{
				Paths: config.PathsConfig{AllowedPaths: []string{"/work"}},
			},
		}
		result, err := ResolveExtendsWithBaseDir(cfg, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *result.Global.Security.CommandTimeout != 45 {
			t.Errorf("commandTimeout = %d, want 45", *result.Global.Security.CommandTimeout)
		}
		if !slices.Equal(result.Global.Paths.AllowedPaths, []string{"/srv", "/work"}) {
			t.Errorf("allowedPaths = %v", result.Global.Paths.AllowedPaths)
		}
	})

	t.Run("relative toml", func(t *testing.T) {
		subDir := filepath.Join(tmpDir, "configs")
		if err := os.MkdirAll(subDir, 0o750); err != nil {
			t.Fatalf("failed to create subdir: %v", err)
		}
		base := "[global.security]\nallowCommandChaining = true\n"
		if err := os.WriteFile(filepath.Join(subDir, "base.toml"), []byte(base), 0o600); err != nil {
			t.Fatalf("failed to write base config: %v", err)
		}

		cfg := &config.Config{Extends: "./configs/base.toml"}
		result, err := ResolveExtendsWithBaseDir(cfg, tmpDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Global.Security.AllowCommandChaining == nil || !*result.Global.Security.AllowCommandChaining {
			t.Error("should inherit allowCommandChaining from base.toml")
		}
	})

	t.Run("yaml extending preset", func(t *testing.T) {
		base := "extends: strict\nglobal:\n  logging:\n    maxOutputLines: 5\n"
		basePath := filepath.Join(tmpDir, "team.yaml")
		if err := os.WriteFile(basePath, []byte(base), 0o600); err != nil {
			t.Fatalf("failed to write base config: %v", err)
		}

		cfg := &config.Config{Extends: basePath}
		result, err := ResolveExtendsWithBaseDir(cfg, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *result.Global.Logging.MaxOutputLines != 5 {
			t.Errorf("maxOutputLines = %d, want 5", *result.Global.Logging.MaxOutputLines)
		}
		if *result.Global.Security.CommandTimeout != 15 {
			t.Error("should inherit commandTimeout from strict through team.yaml")
		}
	})

	t.Run("nonexistent file", func(t *testing.T) {
		cfg := &config.Config{Extends: "/nonexistent/path/config.jsonc"}
		if _, err := ResolveExtendsWithBaseDir(cfg, ""); err == nil {
			t.Error("expected error for nonexistent file")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		emptyPath := filepath.Join(tmpDir, "empty.jsonc")
		if err := os.WriteFile(emptyPath, []byte("  \n"), 0o600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		cfg := &config.Config{Extends: emptyPath}
		if _, err := ResolveExtendsWithBaseDir(cfg, ""); err == nil {
			t.Error("expected error for empty extends file")
		}
	})

	t.Run("circular", func(t *testing.T) {
		a := filepath.Join(tmpDir, "a.jsonc")
		b := filepath.Join(tmpDir, "b.jsonc")
		if err := os.WriteFile(a, []byte(`{"extends": "./b.jsonc"}`), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(b, []byte(`{"extends": "./a.jsonc"}`), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg := &config.Config{Extends: a}
		if _, err := ResolveExtendsWithBaseDir(cfg, ""); err == nil {
			t.Error("expected error for circular extends")
		}
	})

	t.Run("invalid config in file", func(t *testing.T) {
		bad := filepath.Join(tmpDir, "bad.jsonc")
		if err := os.WriteFile(bad, []byte(`{"global": {"restrictions": {"blockedCommands": [""]}}}`), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg := &config.Config{Extends: bad}
		if _, err := ResolveExtendsWithBaseDir(cfg, ""); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestExtendsChainTooDeep(t *testing.T) {
	dir := t.TempDir()
	for i := range maxChain + 2 {
		body := "{}"
		if i < maxChain+1 {
			body = fmt.Sprintf(`{"extends": "./c%d.jsonc"}`, i+1)
		}
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("c%d.jsonc", i)), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	cfg := &config.Config{Extends: "./c0.jsonc"}
	if _, err := ResolveExtendsWithBaseDir(cfg, dir); err == nil || !strings.Contains(err.Error(), "too deep") {
		t.Errorf("error = %v, want chain too deep", err)
	}

	short := &config.Config{Extends: fmt.Sprintf("./c%d.jsonc", maxChain-2)}
	if _, err := ResolveExtendsWithBaseDir(short, dir); err != nil {
		t.Errorf("short chain: error = %v", err)
	}
}
