package config

// CLIOverrides are settings supplied on the command line. They are applied
// after the config file and presets, with the same replace/append rules as
// a per-shell override.
type CLIOverrides struct {
	Shell            string
	AllowedDirs      []string
	InitialDir       string
	MountPoint       string
	CommandTimeout   int
	MaxCommandLength int
	MaxOutputLines   int
}

// Apply mutates the file-level parts of cfg: forcing a single enabled shell
// and the global output limit.
func (o *CLIOverrides) Apply(cfg *Config) {
	if o == nil || cfg == nil {
		return
	}
	if o.Shell != "" {
		if cfg.Shells == nil {
			cfg.Shells = make(map[string]*ShellConfig)
		}
		for id, sh := range cfg.Shells {
			if sh == nil {
				sh = &ShellConfig{}
			}
			updated := *sh
			updated.Enabled = boolPtr(id == o.Shell)
			cfg.Shells[id] = &updated
		}
		if _, ok := cfg.Shells[o.Shell]; !ok {
			cfg.Shells[o.Shell] = &ShellConfig{Enabled: boolPtr(true)}
		}
	}
	if o.MaxOutputLines > 0 {
		cfg.Global.Logging.MaxOutputLines = intPtr(o.MaxOutputLines)
	}
}

// AsOverride returns the per-shell part of the CLI overrides, or nil when
// nothing was given.
func (o *CLIOverrides) AsOverride() *ShellOverride {
	if o == nil {
		return nil
	}
	var ov ShellOverride
	set := false
	if len(o.AllowedDirs) > 0 {
		ov.Paths.AllowedPaths = append([]string(nil), o.AllowedDirs...)
		set = true
	}
	if o.InitialDir != "" {
		ov.Paths.InitialDir = stringPtr(o.InitialDir)
		set = true
	}
	if o.CommandTimeout != 0 {
		ov.Security.CommandTimeout = intPtr(o.CommandTimeout)
		set = true
	}
	if o.MaxCommandLength != 0 {
		ov.Security.MaxCommandLength = intPtr(o.MaxCommandLength)
		set = true
	}
	if o.MountPoint != "" {
		ov.WSL = &WSLConfig{MountPoint: o.MountPoint}
		set = true
	}
	if !set {
		return nil
	}
	return &ov
}
