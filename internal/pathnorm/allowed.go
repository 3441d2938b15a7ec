package pathnorm

import (
	"log/slog"
	"strings"

	"github.com/Use-Tusk/shellgate/internal/config"
)

// IsPathAllowed reports whether candidate equals or is a strict descendant
// of one of allowed. Comparison is case-insensitive, ignores trailing
// separators and respects segment boundaries ("/data2" is not under "/data").
func IsPathAllowed(candidate string, allowed []string, kind config.Kind) bool {
	c := Key(candidate, kind)
	for _, a := range allowed {
		k := Key(a, kind)
		if c == k || isDescendant(c, k, kind) {
			return true
		}
	}
	return false
}

// ResolveAllowedPaths builds the allow-list for one shell. The shell's own
// list is used when set; otherwise the global list. When mount has
// InheritGlobalPaths, every global path is converted to its mounted form
// and appended. Unconvertible paths are skipped with a warning. The result
// is passed through Minimize.
func ResolveAllowedPaths(kind config.Kind, global, own []string, mount *config.ResolvedWSL, logger *slog.Logger) []string {
	inherit := kind.IsWSL() && mount != nil && mount.InheritGlobalPaths

	var paths []string
	switch {
	case own != nil:
		paths = append(paths, own...)
	case !inherit:
		paths = append(paths, global...)
	}

	if inherit {
		for _, g := range global {
			conv, err := WindowsToMounted(g, mount.MountPoint)
			if err != nil {
				if logger != nil {
					logger.Warn("skipping inherited allowed path", "path", g, "error", err)
				}
				continue
			}
			paths = append(paths, conv)
		}
	}

	return Minimize(paths, kind)
}

// Minimize canonicalizes paths, drops case-insensitive duplicates and drops
// any entry that lies under another entry. Order of the survivors is kept.
// Minimize(Minimize(x)) == Minimize(x).
func Minimize(paths []string, kind config.Kind) []string {
	canon := make([]string, 0, len(paths))
	keys := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		c := Canonical(p, kind)
		k := strings.ToLower(c)
		if seen[k] {
			continue
		}
		seen[k] = true
		canon = append(canon, c)
		keys = append(keys, k)
	}

	result := make([]string, 0, len(canon))
	for i, k := range keys {
		covered := false
		for j, other := range keys {
			if i != j && isDescendant(k, other, kind) {
				covered = true
				break
			}
		}
		if !covered {
			result = append(result, canon[i])
		}
	}
	return result
}

// isDescendant reports whether child is strictly below parent. Both must
// already be canonical keys.
func isDescendant(child, parent string, kind config.Kind) bool {
	if child == parent {
		return false
	}
	sep := separatorFor(parent, kind)
	if separatorFor(child, kind) != sep {
		return false
	}
	if !strings.HasSuffix(parent, sep) {
		parent += sep
	}
	return strings.HasPrefix(child, parent)
}
