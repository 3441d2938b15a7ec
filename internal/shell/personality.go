// Package shell defines the per-kind shell personalities and the registry
// that maps shell identifiers to them.
package shell

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Use-Tusk/shellgate/internal/config"
	"github.com/Use-Tusk/shellgate/internal/pathnorm"
)

// Personality is everything that differs between shell kinds. Callers
// dispatch on a Personality, never on the shell identifier.
type Personality interface {
	ID() string
	Kind() config.Kind
	DisplayName() string
	Executable() config.ExecutableConfig

	// Defaults is the override fragment layered between the global config
	// and the user's per-shell override.
	Defaults() Defaults

	// BlockedCommands are the shell's own blocked commands. They are part
	// of Defaults as well.
	BlockedCommands() []string

	// ValidatePath reports whether p has the shape this shell accepts for a
	// working directory.
	ValidatePath(p string, mountPoint string) bool

	// NativePath converts an accepted path into the shell's own dialect.
	NativePath(p string, mountPoint string) (string, error)

	// Syntax is the command language the shell reads.
	Syntax() Syntax

	// ValidateCommand checks that the command can be handed to the shell.
	ValidateCommand(command string) error

	// Invocation builds the process to spawn.
	Invocation(req InvocationRequest) (*Invocation, error)
}

// Defaults are the values a personality contributes before user overrides.
type Defaults struct {
	Override config.ShellOverride
	WSL      *config.ResolvedWSL
}

type base struct {
	id          string
	displayName string
	executable  config.ExecutableConfig
	blocked     []string
}

func (b *base) ID() string          { return b.id }
func (b *base) DisplayName() string { return b.displayName }

func (b *base) Executable() config.ExecutableConfig {
	return config.ExecutableConfig{Command: b.executable.Command, Args: slices.Clone(b.executable.Args)}
}

func (b *base) BlockedCommands() []string { return slices.Clone(b.blocked) }

func (b *base) Defaults() Defaults {
	var d Defaults
	if b.blocked != nil {
		d.Override.Restrictions.BlockedCommands = slices.Clone(b.blocked)
	}
	return d
}

// windowsShell covers cmd.exe and PowerShell.
type windowsShell struct {
	base
	syntax Syntax
}

func (s *windowsShell) Kind() config.Kind { return config.KindWindows }

func (s *windowsShell) ValidatePath(p, _ string) bool {
	return pathnorm.HasDrive(p) || pathnorm.IsUNC(p)
}

func (s *windowsShell) NativePath(p, _ string) (string, error) {
	return pathnorm.Canonical(p, config.KindWindows), nil
}

func (s *windowsShell) Syntax() Syntax { return s.syntax }

func (s *windowsShell) ValidateCommand(command string) error {
	return checkQuotes(command, s.syntax)
}

func (s *windowsShell) Invocation(req InvocationRequest) (*Invocation, error) {
	return stringInvocation(req, req.WorkDir), nil
}

// mixedShell is Git Bash: POSIX syntax on top of Windows drives.
type mixedShell struct{ base }

func (s *mixedShell) Kind() config.Kind { return config.KindMixed }

func (s *mixedShell) ValidatePath(p, _ string) bool {
	return pathnorm.IsPosixShape(p) || pathnorm.HasDrive(p)
}

func (s *mixedShell) NativePath(p, _ string) (string, error) {
	return pathnorm.Canonical(p, config.KindMixed), nil
}

func (s *mixedShell) Syntax() Syntax { return SyntaxPOSIX }

func (s *mixedShell) ValidateCommand(command string) error {
	return parsePosix(command)
}

func (s *mixedShell) Invocation(req InvocationRequest) (*Invocation, error) {
	return mixedInvocation(req)
}

// posixShell is a native bash/sh/zsh.
type posixShell struct{ base }

func (s *posixShell) Kind() config.Kind { return config.KindPosix }

func (s *posixShell) ValidatePath(p, _ string) bool {
	return pathnorm.IsPosixShape(p)
}

func (s *posixShell) NativePath(p, _ string) (string, error) {
	return pathnorm.Canonical(p, config.KindPosix), nil
}

func (s *posixShell) Syntax() Syntax { return SyntaxPOSIX }

func (s *posixShell) ValidateCommand(command string) error {
	return parsePosix(command)
}

func (s *posixShell) Invocation(req InvocationRequest) (*Invocation, error) {
	return posixInvocation(req)
}

// wslShell runs commands inside a WSL distribution.
type wslShell struct {
	base
	mount config.ResolvedWSL
}

func (s *wslShell) Kind() config.Kind { return config.KindWSL }

func (s *wslShell) Defaults() Defaults {
	d := s.base.Defaults()
	mount := s.mount
	d.WSL = &mount
	return d
}

func (s *wslShell) ValidatePath(p, _ string) bool {
	return pathnorm.IsPosixShape(p) || pathnorm.HasDrive(p)
}

func (s *wslShell) NativePath(p, mountPoint string) (string, error) {
	if pathnorm.HasDrive(p) || pathnorm.IsUNC(p) {
		mounted, err := pathnorm.WindowsToMounted(p, mountPoint)
		if err != nil {
			return "", err
		}
		p = mounted
	}
	return pathnorm.Canonical(p, config.KindWSL), nil
}

func (s *wslShell) Syntax() Syntax { return SyntaxPOSIX }

func (s *wslShell) ValidateCommand(command string) error {
	return parsePosix(command)
}

func (s *wslShell) Invocation(req InvocationRequest) (*Invocation, error) {
	return wslInvocation(req)
}

// New returns the personality variant for kind.
func New(id string, kind config.Kind, displayName string, exe config.ExecutableConfig, blocked []string) (Personality, error) {
	if displayName == "" {
		displayName = id
	}
	b := base{id: id, displayName: displayName, executable: exe, blocked: blocked}
	switch kind {
	case config.KindWindows:
		return &windowsShell{base: b, syntax: windowsSyntax(exe.Command)}, nil
	case config.KindMixed:
		return &mixedShell{b}, nil
	case config.KindPosix:
		return &posixShell{b}, nil
	case config.KindWSL:
		return &wslShell{base: b, mount: config.ResolvedWSL{MountPoint: config.DefaultMountPoint, InheritGlobalPaths: true}}, nil
	default:
		return nil, fmt.Errorf("unknown shell kind %q", kind)
	}
}

// FromConfig builds the personality of a custom shell declared in the
// config file. Custom shells must name their kind and executable.
func FromConfig(id string, sc *config.ShellConfig) (Personality, error) {
	if sc == nil {
		return nil, &config.ConfigError{Shell: id, Field: "shell", Reason: "missing configuration"}
	}
	if sc.Kind == "" {
		return nil, &config.ConfigError{Shell: id, Field: "kind", Reason: "custom shells must declare a kind"}
	}
	if strings.TrimSpace(sc.Executable.Command) == "" {
		return nil, &config.ConfigError{Shell: id, Field: "executable.command", Reason: "must not be empty"}
	}
	return New(id, sc.Kind, id, sc.Executable, nil)
}
