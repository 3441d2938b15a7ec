package validate

import (
	"slices"
	"strings"

	"github.com/Use-Tusk/shellgate/internal/pathnorm"
)

// cdCommands change the working directory of the commands after them.
var cdCommands = []string{"cd", "chdir", "pushd", "set-location", "sl", "push-location"}

// WorkingDirectory checks that path has the shape the shell accepts and,
// when working directories are restricted, that it lies inside the
// allow-list. It returns the path in the shell's own dialect.
func WorkingDirectory(path string, c *Context) (string, error) {
	return WorkingDirectoryFrom(path, "", c)
}

// WorkingDirectoryFrom is WorkingDirectory with relative paths resolved
// against base.
func WorkingDirectoryFrom(path, base string, c *Context) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", newError(CodeInvalidPathFormat, path, "empty path")
	}

	mount := c.MountPoint()
	if !c.Personality.ValidatePath(path, mount) {
		return "", newError(CodeInvalidPathFormat, path, "%q is not a valid %s path for shell %q", path, c.Kind, c.ShellID)
	}
	native, err := c.Personality.NativePath(path, mount)
	if err != nil {
		return "", newError(CodeInvalidPathFormat, path, "%q cannot be used by shell %q: %v", path, c.ShellID, err)
	}

	if !pathnorm.IsAbsolute(native, c.Kind) && base != "" {
		nativeBase, err := c.Personality.NativePath(base, mount)
		if err == nil {
			native = pathnorm.Join(nativeBase, native, c.Kind)
		}
	}

	if c.Config.Security.RestrictWorkingDirectory && !pathnorm.IsPathAllowed(native, c.Config.Paths.AllowedPaths, c.Kind) {
		return "", newError(CodePathNotAllowed, native, "%q is outside the allowed paths: %s", native, strings.Join(c.Config.Paths.AllowedPaths, ", "))
	}
	return native, nil
}

// maxTrackedDirs bounds the directories a command line's cd commands may
// lead to.
const maxTrackedDirs = 64

// chainDirectories validates every cd in a command line, wherever it is
// nested. A cd may fail and leave the directory unchanged, so every
// directory the line can be in is tracked and each relative target is
// checked from all of them.
func chainDirectories(s *script, workDir string, c *Context) error {
	if len(s.calls) < 2 {
		return nil
	}
	dirs := []string{workDir}
	for _, cl := range s.calls {
		if !slices.Contains(cdCommands, cl.name()) {
			continue
		}
		switch {
		case s.cdPath || slices.ContainsFunc(cl.words, func(w word) bool { return strings.Contains(w.text, "CDPATH") }):
			return newError(CodeInvalidPathFormat, cl.source, "%q cannot be followed when CDPATH is set", cl.source)
		case cl.inFunc:
			return newError(CodeInvalidPathFormat, cl.source, "%q changes directory inside a function", cl.source)
		}

		target, ok := cdTarget(cl.words[1:], c)
		switch {
		case !ok, target.text == "", target.text == "-", strings.HasPrefix(target.text, "~"):
			return newError(CodeInvalidPathFormat, cl.source, "%q must name its target directory explicitly", cl.source)
		case !target.static:
			return newError(CodeInvalidPathFormat, target.text, "directory in %q is only known at run time", cl.source)
		}

		var err error
		if dirs, err = followCd(target.text, dirs, cl.repeated, c); err != nil {
			return err
		}
	}
	return nil
}

// followCd adds the directories a cd to target leads to from dirs. A cd
// that runs repeatedly and climbs with ".." is followed until no new
// directory appears.
func followCd(target string, dirs []string, repeated bool, c *Context) ([]string, error) {
	if pathnorm.IsAbsolute(target, c.Kind) || pathnorm.HasDrive(target) {
		dir, err := WorkingDirectory(target, c)
		if err != nil {
			return nil, err
		}
		return addDir(dirs, dir, c)
	}
	if !c.IsWindows && !pathnorm.IsPosixShape(target) {
		target = "./" + target
	}
	repeated = repeated && climbs(target)

	for from := 0; from < len(dirs); {
		n := len(dirs)
		for _, d := range dirs[from:n] {
			t := target
			if c.IsWindows {
				t = pathnorm.Join(d, target, c.Kind)
			}
			dir, err := WorkingDirectoryFrom(t, d, c)
			if err != nil {
				return nil, err
			}
			if dirs, err = addDir(dirs, dir, c); err != nil {
				return nil, err
			}
		}
		if !repeated {
			break
		}
		from = n
	}
	return dirs, nil
}

func addDir(dirs []string, dir string, c *Context) ([]string, error) {
	key := pathnorm.Key(dir, c.Kind)
	if slices.ContainsFunc(dirs, func(d string) bool { return pathnorm.Key(d, c.Kind) == key }) {
		return dirs, nil
	}
	if len(dirs) >= maxTrackedDirs {
		return nil, newError(CodeInvalidPathFormat, dir, "the command can change into more than %d directories", maxTrackedDirs)
	}
	return append(dirs, dir), nil
}

func climbs(target string) bool {
	return slices.Contains(strings.FieldsFunc(target, func(r rune) bool { return r == '/' || r == '\\' }), "..")
}

func cdTarget(args []word, c *Context) (word, bool) {
	for _, a := range args {
		if strings.HasPrefix(a.text, "-") && a.text != "-" {
			continue
		}
		if c.IsWindows && strings.EqualFold(a.text, "/d") {
			continue
		}
		return a, true
	}
	return word{}, false
}
