package resolve

import (
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/Use-Tusk/shellgate/internal/config"
	"github.com/Use-Tusk/shellgate/internal/pathnorm"
	"github.com/Use-Tusk/shellgate/internal/shell"
)

// Set is the resolved configuration of every enabled shell. It is built once
// at startup and read concurrently afterwards.
type Set struct {
	shells map[string]*config.ResolvedShellConfig
	order  []string
}

// Get returns the resolved config of an enabled shell.
func (s *Set) Get(id string) (*config.ResolvedShellConfig, bool) {
	if s == nil {
		return nil, false
	}
	rc, ok := s.shells[id]
	return rc, ok
}

// IDs returns the enabled shell identifiers in resolution order.
func (s *Set) IDs() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.order)
}

// Len returns the number of enabled shells.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Snapshot returns a deep copy of every resolved config, keyed by shell.
func (s *Set) Snapshot() map[string]config.ResolvedShellConfig {
	out := make(map[string]config.ResolvedShellConfig, s.Len())
	for _, id := range s.IDs() {
		out[id] = clone(s.shells[id])
	}
	return out
}

func clone(rc *config.ResolvedShellConfig) config.ResolvedShellConfig {
	c := *rc
	c.Executable.Args = slices.Clone(rc.Executable.Args)
	c.Restrictions.BlockedCommands = slices.Clone(rc.Restrictions.BlockedCommands)
	c.Restrictions.BlockedArguments = slices.Clone(rc.Restrictions.BlockedArguments)
	c.Restrictions.BlockedOperators = slices.Clone(rc.Restrictions.BlockedOperators)
	c.Paths.AllowedPaths = slices.Clone(rc.Paths.AllowedPaths)
	if rc.WSL != nil {
		w := *rc.WSL
		c.WSL = &w
	}
	return c
}

// All resolves every enabled shell in cfg. Shells that are not in the
// registry are built from their config section and registered. cli may be
// nil. Any defect is returned as a *config.ConfigError.
func All(cfg *config.Config, registry *shell.Registry, cli *config.CLIOverrides, logger *slog.Logger) (*Set, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg = config.ApplyDefaults(cfg)
	cli.Apply(cfg)
	cliLayer := cli.AsOverride()

	var custom []string
	for id := range cfg.Shells {
		if _, ok := registry.Get(id); !ok {
			custom = append(custom, id)
		}
	}
	sort.Strings(custom)

	set := &Set{shells: make(map[string]*config.ResolvedShellConfig)}
	for _, id := range append(registry.IDs(), custom...) {
		sc := cfg.Shells[id]
		if !sc.IsEnabled() {
			continue
		}

		p, ok := registry.Get(id)
		if !ok {
			var err error
			p, err = shell.FromConfig(id, sc)
			if err != nil {
				return nil, err
			}
			registry.Register(p)
		}

		rc, err := resolveShell(cfg.Global, p, sc, cliLayer, logger)
		if err != nil {
			return nil, err
		}
		set.shells[id] = rc
		set.order = append(set.order, id)
		logger.Info("resolved shell",
			"shell", id,
			"kind", rc.Kind,
			"executable", rc.Executable.Command,
			"allowedPaths", strings.Join(rc.Paths.AllowedPaths, ","),
		)
	}

	if set.Len() == 0 {
		return nil, &config.ConfigError{Field: "shells", Reason: "no shell is enabled"}
	}
	return set, nil
}

func resolveShell(global config.GlobalConfig, p shell.Personality, sc *config.ShellConfig, cli *config.ShellOverride, logger *slog.Logger) (*config.ResolvedShellConfig, error) {
	id := p.ID()

	exe := p.Executable()
	if sc.Executable.Command != "" {
		exe = config.ExecutableConfig{Command: sc.Executable.Command, Args: slices.Clone(sc.Executable.Args)}
	}
	if strings.TrimSpace(exe.Command) == "" {
		return nil, &config.ConfigError{Shell: id, Field: "executable.command", Reason: "must not be empty"}
	}
	if exe.Args == nil {
		exe.Args = []string{}
	}

	defaults := p.Defaults()
	defLayer := defaults.Override
	if defaults.WSL != nil {
		defLayer.WSL = &config.WSLConfig{
			MountPoint:         defaults.WSL.MountPoint,
			InheritGlobalPaths: &defaults.WSL.InheritGlobalPaths,
		}
	}
	defLayer.WSL = layerWSL(defLayer.WSL, sc.WSLConfig)
	shellLayer := overlay(&defLayer, sc.Overrides)

	acc := newAccumulator(global)
	acc.apply(shellLayer)
	acc.apply(cli)
	rc, err := acc.finish(id)
	if err != nil {
		return nil, err
	}

	rc.Kind = p.Kind()
	rc.DisplayName = p.DisplayName()
	rc.Executable = exe
	if !rc.Kind.IsWSL() {
		rc.WSL = nil
	} else if rc.WSL == nil {
		rc.WSL = &config.ResolvedWSL{MountPoint: config.DefaultMountPoint, InheritGlobalPaths: true}
	}

	rc.Paths.AllowedPaths = pathnorm.ResolveAllowedPaths(rc.Kind, cloneNonNil(global.Paths.AllowedPaths), acc.ownAllowed, rc.WSL, logger)
	if rc.Paths.AllowedPaths == nil {
		rc.Paths.AllowedPaths = []string{}
	}
	return rc, nil
}
