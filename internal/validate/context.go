// Package validate checks commands and working directories against a
// shell's resolved configuration before anything is spawned.
package validate

import (
	"github.com/Use-Tusk/shellgate/internal/config"
	"github.com/Use-Tusk/shellgate/internal/resolve"
	"github.com/Use-Tusk/shellgate/internal/shell"
)

// Context is everything validation needs for one shell. The classification
// flags are derived from the personality's kind only.
type Context struct {
	ShellID     string
	Kind        config.Kind
	IsWindows   bool
	IsUnix      bool
	IsWSL       bool
	Syntax      shell.Syntax
	Personality shell.Personality
	Config      *config.ResolvedShellConfig
}

// BuildContext returns the validation context of an enabled shell.
func BuildContext(registry *shell.Registry, set *resolve.Set, id string) (*Context, error) {
	p, ok := registry.Get(id)
	if !ok {
		return nil, newError(CodeShellNotFound, id, "shell %q is not registered", id)
	}
	rc, ok := set.Get(id)
	if !ok {
		return nil, newError(CodeShellNotFound, id, "shell %q is not enabled", id)
	}
	return NewContext(id, p, rc), nil
}

// NewContext builds a context from a personality and its resolved config.
func NewContext(id string, p shell.Personality, rc *config.ResolvedShellConfig) *Context {
	kind := p.Kind()
	return &Context{
		ShellID:     id,
		Kind:        kind,
		IsWindows:   kind.IsWindows(),
		IsUnix:      kind.IsUnix(),
		IsWSL:       kind.IsWSL(),
		Syntax:      p.Syntax(),
		Personality: p,
		Config:      rc,
	}
}

// MountPoint returns the WSL mount point, or "" for other shells.
func (c *Context) MountPoint() string {
	if c.Config == nil || c.Config.WSL == nil {
		return ""
	}
	return c.Config.WSL.MountPoint
}
