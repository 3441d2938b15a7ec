// Package resolve merges the global configuration, per-shell overrides and
// command-line overrides into one ResolvedShellConfig per enabled shell.
package resolve

import (
	"slices"
	"strings"

	"github.com/Use-Tusk/shellgate/internal/config"
)

// Resolve layers override and then cli on top of global.
//
// Security values and blockedOperators, allowedPaths and initialDir are
// replaced by the later layer when it sets them. blockedCommands and
// blockedArguments are appended, global first, except that an explicitly
// empty list clears everything accumulated so far.
//
// The returned config has no identity (ID, Kind, Executable) and its
// allowed paths are not yet normalized; All fills those in.
func Resolve(global config.GlobalConfig, override, cli *config.ShellOverride) (*config.ResolvedShellConfig, error) {
	acc := newAccumulator(global)
	acc.apply(override)
	acc.apply(cli)
	return acc.finish("")
}

type accumulator struct {
	security     config.SecurityConfig
	restrictions config.ResolvedRestrictions
	allowed      []string
	ownAllowed   []string // allowed paths set by a layer above global, nil if none
	initialDir   string
	wsl          *config.WSLConfig
	maxOutput    int
}

func newAccumulator(global config.GlobalConfig) *accumulator {
	acc := &accumulator{
		security: global.Security,
		restrictions: config.ResolvedRestrictions{
			BlockedCommands:  dedupFold(nil, global.Restrictions.BlockedCommands),
			BlockedArguments: dedupFold(nil, global.Restrictions.BlockedArguments),
			BlockedOperators: cloneNonNil(global.Restrictions.BlockedOperators),
		},
		allowed:   cloneNonNil(global.Paths.AllowedPaths),
		maxOutput: config.DefaultMaxOutputLines,
	}
	if global.Paths.InitialDir != nil {
		acc.initialDir = *global.Paths.InitialDir
	}
	if n := global.Logging.MaxOutputLines; n != nil {
		acc.maxOutput = *n
	}
	return acc
}

func (a *accumulator) apply(o *config.ShellOverride) {
	if o == nil {
		return
	}

	s := o.Security
	a.security.MaxCommandLength = pick(a.security.MaxCommandLength, s.MaxCommandLength)
	a.security.CommandTimeout = pick(a.security.CommandTimeout, s.CommandTimeout)
	a.security.EnableInjectionProtection = pick(a.security.EnableInjectionProtection, s.EnableInjectionProtection)
	a.security.RestrictWorkingDirectory = pick(a.security.RestrictWorkingDirectory, s.RestrictWorkingDirectory)
	a.security.AllowCommandChaining = pick(a.security.AllowCommandChaining, s.AllowCommandChaining)

	r := o.Restrictions
	a.restrictions.BlockedCommands = appendOrClear(a.restrictions.BlockedCommands, r.BlockedCommands)
	a.restrictions.BlockedArguments = appendOrClear(a.restrictions.BlockedArguments, r.BlockedArguments)
	if r.BlockedOperators != nil {
		a.restrictions.BlockedOperators = slices.Clone(r.BlockedOperators)
	}

	if o.Paths.AllowedPaths != nil {
		a.allowed = slices.Clone(o.Paths.AllowedPaths)
		a.ownAllowed = slices.Clone(o.Paths.AllowedPaths)
	}
	if o.Paths.InitialDir != nil {
		a.initialDir = *o.Paths.InitialDir
	}

	if o.WSL != nil {
		a.wsl = layerWSL(a.wsl, o.WSL)
	}
}

func (a *accumulator) finish(shellID string) (*config.ResolvedShellConfig, error) {
	maxLen := config.DefaultMaxCommandLength
	if a.security.MaxCommandLength != nil {
		maxLen = *a.security.MaxCommandLength
	}
	timeout := config.DefaultCommandTimeout
	if a.security.CommandTimeout != nil {
		timeout = *a.security.CommandTimeout
	}
	if maxLen <= 0 {
		return nil, &config.ConfigError{Shell: shellID, Field: "security.maxCommandLength", Reason: "must be greater than 0"}
	}
	if timeout < 1 {
		return nil, &config.ConfigError{Shell: shellID, Field: "security.commandTimeout", Reason: "must be at least 1 second"}
	}

	rc := &config.ResolvedShellConfig{
		ID: shellID,
		Security: config.ResolvedSecurity{
			MaxCommandLength:          maxLen,
			CommandTimeout:            timeout,
			EnableInjectionProtection: boolValue(a.security.EnableInjectionProtection, true),
			RestrictWorkingDirectory:  boolValue(a.security.RestrictWorkingDirectory, true),
			AllowCommandChaining:      boolValue(a.security.AllowCommandChaining, false),
		},
		Restrictions: config.ResolvedRestrictions{
			BlockedCommands:  cloneNonNil(a.restrictions.BlockedCommands),
			BlockedArguments: cloneNonNil(a.restrictions.BlockedArguments),
			BlockedOperators: cloneNonNil(a.restrictions.BlockedOperators),
		},
		Paths: config.ResolvedPaths{
			AllowedPaths: cloneNonNil(a.allowed),
			InitialDir:   a.initialDir,
		},
		MaxOutputLines: a.maxOutput,
	}
	if a.wsl != nil {
		rc.WSL = &config.ResolvedWSL{
			MountPoint:         a.wsl.MountPoint,
			InheritGlobalPaths: boolValue(a.wsl.InheritGlobalPaths, true),
		}
		if rc.WSL.MountPoint == "" {
			rc.WSL.MountPoint = config.DefaultMountPoint
		}
	}
	return rc, nil
}

// overlay returns def with every field set in user replacing it. It builds
// the per-shell layer out of a personality's defaults and the user's
// override section.
func overlay(def, user *config.ShellOverride) *config.ShellOverride {
	if def == nil {
		return user
	}
	if user == nil {
		return def
	}
	out := *def
	out.Security.MaxCommandLength = pick(def.Security.MaxCommandLength, user.Security.MaxCommandLength)
	out.Security.CommandTimeout = pick(def.Security.CommandTimeout, user.Security.CommandTimeout)
	out.Security.EnableInjectionProtection = pick(def.Security.EnableInjectionProtection, user.Security.EnableInjectionProtection)
	out.Security.RestrictWorkingDirectory = pick(def.Security.RestrictWorkingDirectory, user.Security.RestrictWorkingDirectory)
	out.Security.AllowCommandChaining = pick(def.Security.AllowCommandChaining, user.Security.AllowCommandChaining)
	if user.Restrictions.BlockedCommands != nil {
		out.Restrictions.BlockedCommands = user.Restrictions.BlockedCommands
	}
	if user.Restrictions.BlockedArguments != nil {
		out.Restrictions.BlockedArguments = user.Restrictions.BlockedArguments
	}
	if user.Restrictions.BlockedOperators != nil {
		out.Restrictions.BlockedOperators = user.Restrictions.BlockedOperators
	}
	if user.Paths.AllowedPaths != nil {
		out.Paths.AllowedPaths = user.Paths.AllowedPaths
	}
	out.Paths.InitialDir = pick(def.Paths.InitialDir, user.Paths.InitialDir)
	out.WSL = layerWSL(def.WSL, user.WSL)
	return &out
}

func layerWSL(base, next *config.WSLConfig) *config.WSLConfig {
	if next == nil {
		return base
	}
	if base == nil {
		c := *next
		return &c
	}
	out := *base
	if next.MountPoint != "" {
		out.MountPoint = next.MountPoint
	}
	out.InheritGlobalPaths = pick(base.InheritGlobalPaths, next.InheritGlobalPaths)
	return &out
}

// appendOrClear applies one layer of an appending list. nil leaves acc
// untouched and an explicit empty list clears it.
func appendOrClear(acc, next []string) []string {
	if next == nil {
		return acc
	}
	if len(next) == 0 {
		return []string{}
	}
	return dedupFold(acc, next)
}

// dedupFold appends next to acc, dropping case-insensitive duplicates and
// keeping the first spelling seen.
func dedupFold(acc, next []string) []string {
	out := make([]string, 0, len(acc)+len(next))
	seen := make(map[string]bool, len(acc)+len(next))
	for _, list := range [][]string{acc, next} {
		for _, s := range list {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

func pick[T any](base, next *T) *T {
	if next != nil {
		return next
	}
	return base
}

func boolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func cloneNonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
