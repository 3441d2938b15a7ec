// Package templates holds the configuration presets compiled into the
// binary and applies "extends" chains across presets and config files.
package templates

import (
	"cmp"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Use-Tusk/shellgate/internal/config"
)

//go:embed *.jsonc
var presets embed.FS

const (
	presetSuffix = ".jsonc"
	maxChain     = 10
)

// Template names a preset.
type Template struct {
	Name        string
	Description string
}

var descriptions = map[string]string{
	"default":     "Built-in defaults: no chaining, common destructive commands blocked",
	"strict":      "Shorter limits, network tools and redirection blocked",
	"development": "Pipes and chains allowed, longer timeout and output",
	"wsl-dev":     "Like 'development' with the WSL shell enabled and Windows paths inherited",
}

// List returns the presets by name.
func List() []Template {
	files, err := fs.Glob(presets, "*"+presetSuffix)
	if err != nil {
		return nil
	}
	out := make([]Template, 0, len(files))
	for _, f := range files {
		name := strings.TrimSuffix(f, presetSuffix)
		out = append(out, Template{Name: name, Description: cmp.Or(descriptions[name], "No description available")})
	}
	slices.SortFunc(out, func(a, b Template) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Exists reports whether name is a preset. The suffix is optional.
func Exists(name string) bool {
	_, err := fs.Stat(presets, presetFile(name))
	return err == nil
}

// Load returns a preset with its extends chain applied.
func Load(name string) (*config.Config, error) {
	return new(chain).preset(name)
}

// ResolveExtends is ResolveExtendsWithBaseDir from the current directory.
func ResolveExtends(cfg *config.Config) (*config.Config, error) {
	return ResolveExtendsWithBaseDir(cfg, "")
}

// ResolveExtendsWithBaseDir layers cfg over the config it extends, and so
// on down the chain. A reference is a file when it holds a separator or
// starts with a dot, and a preset name otherwise. Relative files are found
// from baseDir, or from the current directory when baseDir is empty; a
// file's own extends is found from that file's directory.
func ResolveExtendsWithBaseDir(cfg *config.Config, baseDir string) (*config.Config, error) {
	return new(chain).extend(cfg, baseDir)
}

func isFileRef(ref string) bool {
	return strings.ContainsAny(ref, `/\`) || strings.HasPrefix(ref, ".")
}

func presetFile(name string) string {
	return strings.TrimSuffix(name, presetSuffix) + presetSuffix
}

// chain follows one extends chain. Every preset or file may appear once.
type chain struct {
	seen map[string]bool
}

func (c *chain) visit(key, ref string) error {
	if c.seen[key] {
		return fmt.Errorf("circular extends detected: %q", ref)
	}
	if len(c.seen) > maxChain {
		return fmt.Errorf("extends chain too deep (max %d)", maxChain)
	}
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	c.seen[key] = true
	return nil
}

func (c *chain) extend(cfg *config.Config, dir string) (*config.Config, error) {
	if cfg == nil || cfg.Extends == "" {
		return cfg, nil
	}
	var (
		base *config.Config
		err  error
	)
	if isFileRef(cfg.Extends) {
		base, err = c.file(cfg.Extends, dir)
	} else {
		base, err = c.preset(cfg.Extends)
		if err != nil {
			err = fmt.Errorf("failed to load base template %q: %w", cfg.Extends, err)
		}
	}
	if err != nil {
		return nil, err
	}
	return config.Merge(base, cfg), nil
}

func (c *chain) preset(name string) (*config.Config, error) {
	file := presetFile(name)
	if err := c.visit("preset:"+file, name); err != nil {
		return nil, err
	}
	data, err := presets.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("template %q not found", strings.TrimSuffix(name, presetSuffix))
	}
	cfg, err := config.Decode(file, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %q: %w", name, err)
	}
	return c.extend(cfg, "")
}

func (c *chain) file(ref, dir string) (*config.Config, error) {
	path := ref
	if !filepath.IsAbs(path) {
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to resolve path %q: %w", ref, err)
			}
			dir = wd
		}
		path = filepath.Join(dir, path)
	}
	path = filepath.Clean(path)
	if err := c.visit("file:"+path, ref); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // the user names their own config files
	switch {
	case os.IsNotExist(err):
		return nil, fmt.Errorf("extends file not found: %q", ref)
	case err != nil:
		return nil, fmt.Errorf("failed to read extends file %q: %w", ref, err)
	case strings.TrimSpace(string(data)) == "":
		return nil, fmt.Errorf("extends file is empty: %q", ref)
	}

	cfg, err := config.Decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("invalid extends file %q: %w", ref, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in extends file %q: %w", ref, err)
	}
	return c.extend(cfg, filepath.Dir(path))
}
