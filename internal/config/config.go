// Package config defines the configuration types and loading for shellgate.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Default security values used when neither the config file nor a preset sets them.
const (
	DefaultMaxCommandLength = 2000
	DefaultCommandTimeout   = 30
	DefaultMaxOutputLines   = 20
	DefaultMountPoint       = "/mnt/"
)

// Config is the main configuration for shellgate.
type Config struct {
	Extends string                  `json:"extends,omitempty" toml:"extends,omitempty" yaml:"extends,omitempty"`
	Global  GlobalConfig            `json:"global" toml:"global" yaml:"global"`
	Shells  map[string]*ShellConfig `json:"shells,omitempty" toml:"shells,omitempty" yaml:"shells,omitempty"`

	// IncludeDefaultWSL is a legacy switch. It is decoded so old files keep
	// loading, and is otherwise ignored.
	IncludeDefaultWSL *bool `json:"includeDefaultWSL,omitempty" toml:"includeDefaultWSL,omitempty" yaml:"includeDefaultWSL,omitempty"`
}

// GlobalConfig holds settings applied to every shell unless overridden.
type GlobalConfig struct {
	Security     SecurityConfig     `json:"security" toml:"security" yaml:"security"`
	Restrictions RestrictionsConfig `json:"restrictions" toml:"restrictions" yaml:"restrictions"`
	Paths        PathsConfig        `json:"paths" toml:"paths" yaml:"paths"`
	Logging      LoggingConfig      `json:"logging" toml:"logging" yaml:"logging"`
}

// SecurityConfig defines execution limits. Nil fields are unset and fall
// through to the next layer.
type SecurityConfig struct {
	MaxCommandLength          *int  `json:"maxCommandLength,omitempty" toml:"maxCommandLength,omitempty" yaml:"maxCommandLength,omitempty"`
	CommandTimeout            *int  `json:"commandTimeout,omitempty" toml:"commandTimeout,omitempty" yaml:"commandTimeout,omitempty"` // seconds
	EnableInjectionProtection *bool `json:"enableInjectionProtection,omitempty" toml:"enableInjectionProtection,omitempty" yaml:"enableInjectionProtection,omitempty"`
	RestrictWorkingDirectory  *bool `json:"restrictWorkingDirectory,omitempty" toml:"restrictWorkingDirectory,omitempty" yaml:"restrictWorkingDirectory,omitempty"`
	AllowCommandChaining      *bool `json:"allowCommandChaining,omitempty" toml:"allowCommandChaining,omitempty" yaml:"allowCommandChaining,omitempty"`
}

// RestrictionsConfig defines blocked commands, arguments and operators.
// A nil slice is absent; an empty non-nil slice is an explicit empty list.
type RestrictionsConfig struct {
	BlockedCommands  []string `json:"blockedCommands,omitempty" toml:"blockedCommands,omitempty" yaml:"blockedCommands,omitempty"`
	BlockedArguments []string `json:"blockedArguments,omitempty" toml:"blockedArguments,omitempty" yaml:"blockedArguments,omitempty"`
	BlockedOperators []string `json:"blockedOperators,omitempty" toml:"blockedOperators,omitempty" yaml:"blockedOperators,omitempty"`
}

// PathsConfig defines the allowed working directories.
type PathsConfig struct {
	AllowedPaths []string `json:"allowedPaths,omitempty" toml:"allowedPaths,omitempty" yaml:"allowedPaths,omitempty"`
	InitialDir   *string  `json:"initialDir,omitempty" toml:"initialDir,omitempty" yaml:"initialDir,omitempty"`
}

// LoggingConfig defines how much output is returned to callers.
type LoggingConfig struct {
	MaxOutputLines *int   `json:"maxOutputLines,omitempty" toml:"maxOutputLines,omitempty" yaml:"maxOutputLines,omitempty"`
	StorePath      string `json:"storePath,omitempty" toml:"storePath,omitempty" yaml:"storePath,omitempty"` // empty = in-memory
}

// ExecutableConfig is the program and fixed arguments used to start a shell.
type ExecutableConfig struct {
	Command string   `json:"command" toml:"command" yaml:"command"`
	Args    []string `json:"args" toml:"args" yaml:"args"`
}

// WSLConfig defines how a WSL-mounted shell sees Windows drives.
type WSLConfig struct {
	MountPoint         string `json:"mountPoint,omitempty" toml:"mountPoint,omitempty" yaml:"mountPoint,omitempty"`
	InheritGlobalPaths *bool  `json:"inheritGlobalPaths,omitempty" toml:"inheritGlobalPaths,omitempty" yaml:"inheritGlobalPaths,omitempty"`
}

// ShellOverride has the shape of GlobalConfig and is layered on top of it
// for a single shell.
type ShellOverride struct {
	Security     SecurityConfig     `json:"security" toml:"security" yaml:"security"`
	Restrictions RestrictionsConfig `json:"restrictions" toml:"restrictions" yaml:"restrictions"`
	Paths        PathsConfig        `json:"paths" toml:"paths" yaml:"paths"`
	WSL          *WSLConfig         `json:"wslConfig,omitempty" toml:"wslConfig,omitempty" yaml:"wslConfig,omitempty"`
}

// ShellConfig is the per-shell section of the config file.
type ShellConfig struct {
	Enabled    *bool            `json:"enabled,omitempty" toml:"enabled,omitempty" yaml:"enabled,omitempty"`
	Kind       Kind             `json:"kind,omitempty" toml:"kind,omitempty" yaml:"kind,omitempty"` // required for custom shells
	Executable ExecutableConfig `json:"executable" toml:"executable" yaml:"executable"`
	Overrides  *ShellOverride   `json:"overrides,omitempty" toml:"overrides,omitempty" yaml:"overrides,omitempty"`
	WSLConfig  *WSLConfig       `json:"wslConfig,omitempty" toml:"wslConfig,omitempty" yaml:"wslConfig,omitempty"`
}

// IsEnabled reports whether the shell is switched on. Unset means disabled.
func (s *ShellConfig) IsEnabled() bool {
	return s != nil && s.Enabled != nil && *s.Enabled
}

// ConfigError is a fatal configuration defect found at startup.
type ConfigError struct {
	Shell  string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Shell == "" {
		return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration for shell %q: %s: %s", e.Shell, e.Field, e.Reason)
}

// DefaultBlockedCommands are blocked for every shell unless the config
// clears them with an explicit empty list.
var DefaultBlockedCommands = []string{
	"format",
	"shutdown",
	"restart",
	"reboot",
	"reg",
	"regedit",
	"net",
	"netsh",
	"takeown",
	"icacls",
	"mkfs",
	"diskpart",
}

// DefaultBlockedArguments are argument tokens that commonly hand control to
// another interpreter or escalate.
var DefaultBlockedArguments = []string{
	"--exec",
	"-e",
	"/c",
	"-enc",
	"-encodedcommand",
	"-command",
	"--interactive",
	"-i",
	"--login",
	"--system",
}

// DefaultBlockedOperators are shell metacharacters blocked by default.
var DefaultBlockedOperators = []string{"&", "|", ";", "`"}

// Default returns the default configuration. The host-native shells are
// enabled; the others are present but disabled.
func Default() *Config {
	var allowed []string
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		allowed = append(allowed, home)
	}
	if allowed == nil {
		allowed = []string{}
	}

	return &Config{
		Global: GlobalConfig{
			Security: SecurityConfig{
				MaxCommandLength:          intPtr(DefaultMaxCommandLength),
				CommandTimeout:            intPtr(DefaultCommandTimeout),
				EnableInjectionProtection: boolPtr(true),
				RestrictWorkingDirectory:  boolPtr(true),
				AllowCommandChaining:      boolPtr(false),
			},
			Restrictions: RestrictionsConfig{
				BlockedCommands:  slices.Clone(DefaultBlockedCommands),
				BlockedArguments: slices.Clone(DefaultBlockedArguments),
				BlockedOperators: slices.Clone(DefaultBlockedOperators),
			},
			Paths: PathsConfig{
				AllowedPaths: allowed,
			},
			Logging: LoggingConfig{
				MaxOutputLines: intPtr(DefaultMaxOutputLines),
			},
		},
		Shells: defaultShells(),
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shellgate.json"
	}
	return filepath.Join(home, ".shellgate.json")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Global.Security.validate(""); err != nil {
		return err
	}
	if err := c.Global.Restrictions.validate("global.restrictions"); err != nil {
		return err
	}
	if slices.Contains(c.Global.Paths.AllowedPaths, "") {
		return errors.New("global.paths.allowedPaths contains empty path")
	}
	if n := c.Global.Logging.MaxOutputLines; n != nil && *n < 1 {
		return &ConfigError{Field: "logging.maxOutputLines", Reason: "must be at least 1"}
	}

	for id, sh := range c.Shells {
		if sh == nil {
			continue
		}
		if strings.TrimSpace(id) == "" {
			return errors.New("shells contains an empty identifier")
		}
		if sh.Kind != "" && !sh.Kind.Valid() {
			return &ConfigError{Shell: id, Field: "kind", Reason: fmt.Sprintf("unknown kind %q", sh.Kind)}
		}
		if err := sh.WSLConfig.validate(id); err != nil {
			return err
		}
		if sh.Overrides == nil {
			continue
		}
		if err := sh.Overrides.Security.validate(id); err != nil {
			return err
		}
		if err := sh.Overrides.Restrictions.validate("shells." + id + ".overrides.restrictions"); err != nil {
			return err
		}
		if slices.Contains(sh.Overrides.Paths.AllowedPaths, "") {
			return fmt.Errorf("shells.%s.overrides.paths.allowedPaths contains empty path", id)
		}
		if err := sh.Overrides.WSL.validate(id); err != nil {
			return err
		}
	}

	return nil
}

func (s *SecurityConfig) validate(shell string) error {
	if s.MaxCommandLength != nil && *s.MaxCommandLength <= 0 {
		return &ConfigError{Shell: shell, Field: "security.maxCommandLength", Reason: "must be greater than 0"}
	}
	if s.CommandTimeout != nil && *s.CommandTimeout < 1 {
		return &ConfigError{Shell: shell, Field: "security.commandTimeout", Reason: "must be at least 1 second"}
	}
	return nil
}

func (r *RestrictionsConfig) validate(prefix string) error {
	if slices.Contains(r.BlockedCommands, "") {
		return fmt.Errorf("%s.blockedCommands contains empty command", prefix)
	}
	if slices.Contains(r.BlockedArguments, "") {
		return fmt.Errorf("%s.blockedArguments contains empty argument", prefix)
	}
	if slices.Contains(r.BlockedOperators, "") {
		return fmt.Errorf("%s.blockedOperators contains empty operator", prefix)
	}
	return nil
}

func (w *WSLConfig) validate(shell string) error {
	if w == nil || w.MountPoint == "" {
		return nil
	}
	if !strings.HasPrefix(w.MountPoint, "/") {
		return &ConfigError{Shell: shell, Field: "wslConfig.mountPoint", Reason: fmt.Sprintf("%q must be an absolute POSIX path", w.MountPoint)}
	}
	return nil
}

// Merge combines a base config with an override config, used to resolve
// "extends" chains. Values in override take precedence. Slice fields are
// appended (base + override). The Extends field is cleared in the result.
func Merge(base, override *Config) *Config {
	if base == nil {
		if override == nil {
			return Default()
		}
		result := *override
		result.Extends = ""
		return &result
	}
	if override == nil {
		result := *base
		result.Extends = ""
		return &result
	}

	result := &Config{
		Global: GlobalConfig{
			Security:     mergeSecurity(base.Global.Security, override.Global.Security),
			Restrictions: mergeRestrictions(base.Global.Restrictions, override.Global.Restrictions),
			Paths: PathsConfig{
				AllowedPaths: mergeStrings(base.Global.Paths.AllowedPaths, override.Global.Paths.AllowedPaths),
				InitialDir:   mergeOptional(base.Global.Paths.InitialDir, override.Global.Paths.InitialDir),
			},
			Logging: LoggingConfig{
				MaxOutputLines: mergeOptional(base.Global.Logging.MaxOutputLines, override.Global.Logging.MaxOutputLines),
				StorePath:      mergeString(base.Global.Logging.StorePath, override.Global.Logging.StorePath),
			},
		},
		IncludeDefaultWSL: mergeOptional(base.IncludeDefaultWSL, override.IncludeDefaultWSL),
	}

	if len(base.Shells)+len(override.Shells) > 0 {
		result.Shells = make(map[string]*ShellConfig, len(base.Shells)+len(override.Shells))
		for id, sh := range base.Shells {
			result.Shells[id] = sh
		}
		for id, sh := range override.Shells {
			result.Shells[id] = mergeShell(result.Shells[id], sh)
		}
	}

	return result
}

func mergeShell(base, override *ShellConfig) *ShellConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}
	result := &ShellConfig{
		Enabled:    mergeOptional(base.Enabled, override.Enabled),
		Kind:       base.Kind,
		Executable: base.Executable,
		Overrides:  base.Overrides,
		WSLConfig:  mergeWSL(base.WSLConfig, override.WSLConfig),
	}
	if override.Kind != "" {
		result.Kind = override.Kind
	}
	if override.Executable.Command != "" {
		result.Executable = override.Executable
	}
	if base.Overrides != nil && override.Overrides != nil {
		result.Overrides = &ShellOverride{
			Security:     mergeSecurity(base.Overrides.Security, override.Overrides.Security),
			Restrictions: mergeRestrictions(base.Overrides.Restrictions, override.Overrides.Restrictions),
			Paths: PathsConfig{
				AllowedPaths: mergeStrings(base.Overrides.Paths.AllowedPaths, override.Overrides.Paths.AllowedPaths),
				InitialDir:   mergeOptional(base.Overrides.Paths.InitialDir, override.Overrides.Paths.InitialDir),
			},
			WSL: mergeWSL(base.Overrides.WSL, override.Overrides.WSL),
		}
	} else if override.Overrides != nil {
		result.Overrides = override.Overrides
	}
	return result
}

func mergeWSL(base, override *WSLConfig) *WSLConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}
	return &WSLConfig{
		MountPoint:         mergeString(base.MountPoint, override.MountPoint),
		InheritGlobalPaths: mergeOptional(base.InheritGlobalPaths, override.InheritGlobalPaths),
	}
}

func mergeSecurity(base, override SecurityConfig) SecurityConfig {
	return SecurityConfig{
		MaxCommandLength:          mergeOptional(base.MaxCommandLength, override.MaxCommandLength),
		CommandTimeout:            mergeOptional(base.CommandTimeout, override.CommandTimeout),
		EnableInjectionProtection: mergeOptional(base.EnableInjectionProtection, override.EnableInjectionProtection),
		RestrictWorkingDirectory:  mergeOptional(base.RestrictWorkingDirectory, override.RestrictWorkingDirectory),
		AllowCommandChaining:      mergeOptional(base.AllowCommandChaining, override.AllowCommandChaining),
	}
}

func mergeRestrictions(base, override RestrictionsConfig) RestrictionsConfig {
	return RestrictionsConfig{
		BlockedCommands:  mergeStrings(base.BlockedCommands, override.BlockedCommands),
		BlockedArguments: mergeStrings(base.BlockedArguments, override.BlockedArguments),
		BlockedOperators: mergeStrings(base.BlockedOperators, override.BlockedOperators),
	}
}

// mergeStrings appends two string slices, removing duplicates.
func mergeStrings(base, override []string) []string {
	if len(base) == 0 {
		return override
	}
	if len(override) == 0 {
		return base
	}

	seen := make(map[string]bool, len(base))
	result := make([]string, 0, len(base)+len(override))

	for _, s := range base {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range override {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}

// mergeOptional returns override if non-nil, otherwise base.
func mergeOptional[T any](base, override *T) *T {
	if override != nil {
		return override
	}
	return base
}

// mergeString returns override if non-empty, otherwise base.
func mergeString(base, override string) string {
	if override != "" {
		return override
	}
	return base
}

func intPtr(v int) *int          { return &v }
func boolPtr(v bool) *bool       { return &v }
func stringPtr(v string) *string { return &v }
