package config

import "runtime"

// Kind is the path dialect and invocation family of a shell.
type Kind string

const (
	KindWindows Kind = "windows" // cmd.exe, PowerShell
	KindMixed   Kind = "mixed"   // Git Bash / MSYS
	KindPosix   Kind = "posix"   // native bash, sh, zsh
	KindWSL     Kind = "wsl"     // WSL distribution with Windows drives mounted
)

// Built-in shell identifiers.
const (
	ShellCmd        = "cmd"
	ShellPowerShell = "powershell"
	ShellGitBash    = "gitbash"
	ShellBash       = "bash"
	ShellWSL        = "wsl"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindWindows, KindMixed, KindPosix, KindWSL:
		return true
	}
	return false
}

// IsWindows reports whether paths use the native Windows dialect.
func (k Kind) IsWindows() bool { return k == KindWindows }

// IsUnix reports whether paths use forward-slash POSIX-style dialects.
func (k Kind) IsUnix() bool { return k == KindPosix || k == KindMixed || k == KindWSL }

// IsWSL reports whether paths are resolved through a drive mount point.
func (k Kind) IsWSL() bool { return k == KindWSL }

func defaultShells() map[string]*ShellConfig {
	native := runtime.GOOS == "windows"
	return map[string]*ShellConfig{
		ShellCmd:        {Enabled: boolPtr(native)},
		ShellPowerShell: {Enabled: boolPtr(native)},
		ShellGitBash:    {Enabled: boolPtr(false)},
		ShellBash:       {Enabled: boolPtr(!native)},
		ShellWSL:        {Enabled: boolPtr(false)},
	}
}

// ApplyDefaults fills every unset field of cfg from Default. Fields that
// are set, including explicitly empty lists, are kept as they are.
func ApplyDefaults(cfg *Config) *Config {
	def := Default()
	if cfg == nil {
		return def
	}
	result := *cfg

	sec := &result.Global.Security
	sec.MaxCommandLength = mergeOptional(def.Global.Security.MaxCommandLength, sec.MaxCommandLength)
	sec.CommandTimeout = mergeOptional(def.Global.Security.CommandTimeout, sec.CommandTimeout)
	sec.EnableInjectionProtection = mergeOptional(def.Global.Security.EnableInjectionProtection, sec.EnableInjectionProtection)
	sec.RestrictWorkingDirectory = mergeOptional(def.Global.Security.RestrictWorkingDirectory, sec.RestrictWorkingDirectory)
	sec.AllowCommandChaining = mergeOptional(def.Global.Security.AllowCommandChaining, sec.AllowCommandChaining)

	res := &result.Global.Restrictions
	if res.BlockedCommands == nil {
		res.BlockedCommands = def.Global.Restrictions.BlockedCommands
	}
	if res.BlockedArguments == nil {
		res.BlockedArguments = def.Global.Restrictions.BlockedArguments
	}
	if res.BlockedOperators == nil {
		res.BlockedOperators = def.Global.Restrictions.BlockedOperators
	}

	if result.Global.Paths.AllowedPaths == nil {
		result.Global.Paths.AllowedPaths = def.Global.Paths.AllowedPaths
	}
	result.Global.Logging.MaxOutputLines = mergeOptional(def.Global.Logging.MaxOutputLines, result.Global.Logging.MaxOutputLines)

	shells := make(map[string]*ShellConfig, len(def.Shells)+len(result.Shells))
	for id, sh := range def.Shells {
		shells[id] = sh
	}
	for id, sh := range result.Shells {
		shells[id] = mergeShell(shells[id], sh)
	}
	result.Shells = shells

	return &result
}
