// Package pathnorm canonicalizes and compares paths across the Windows,
// POSIX, Git-Bash and WSL dialects. Everything here is textual; the
// filesystem is never consulted.
package pathnorm

import (
	"strings"

	"github.com/Use-Tusk/shellgate/internal/config"
)

// Canonical returns p in the canonical form for kind: repeated separators
// collapsed, "." and ".." resolved, trailing separators removed. Windows
// kind uses backslashes, every other kind forward slashes. The mixed kind
// additionally rewrites "/c/..." to "C:\...". Case is preserved; use Key
// for comparisons.
func Canonical(p string, kind config.Kind) string {
	switch kind {
	case config.KindWindows:
		return canonicalWindows(p)
	case config.KindMixed:
		s := strings.ReplaceAll(p, `\`, "/")
		if drive, rest, ok := splitMixedDrive(s); ok {
			return canonicalWindows(drive + ":/" + rest)
		}
		if HasDrive(s) || IsUNC(s) {
			return canonicalWindows(s)
		}
		return canonicalPosix(s)
	default:
		return canonicalPosix(strings.ReplaceAll(p, `\`, "/"))
	}
}

// Key returns the case-folded canonical form used for comparisons.
func Key(p string, kind config.Kind) string {
	return strings.ToLower(Canonical(p, kind))
}

// Join resolves rel against base in the dialect of kind. Absolute rel
// values are returned in canonical form unchanged.
func Join(base, rel string, kind config.Kind) string {
	if IsAbsolute(rel, kind) || base == "" {
		return Canonical(rel, kind)
	}
	return Canonical(base+separatorFor(Canonical(base, kind), kind)+rel, kind)
}

// IsAbsolute reports whether p is absolute in the dialect of kind.
func IsAbsolute(p string, kind config.Kind) bool {
	switch kind {
	case config.KindWindows:
		return HasDrive(p) || IsUNC(p)
	case config.KindMixed:
		return HasDrive(p) || IsUNC(p) || strings.HasPrefix(p, "/")
	default:
		return strings.HasPrefix(p, "/")
	}
}

// HasDrive reports whether p starts with a drive letter followed by a
// separator or the end of the string ("C:", "C:\x", "c:/x").
func HasDrive(p string) bool {
	if len(p) < 2 || !isLetter(p[0]) || p[1] != ':' {
		return false
	}
	return len(p) == 2 || p[2] == '\\' || p[2] == '/'
}

// IsUNC reports whether p is a UNC path (\\server\share or //server/share).
func IsUNC(p string) bool {
	return strings.HasPrefix(p, `\\`) || strings.HasPrefix(p, "//")
}

// IsMixedDrive reports whether p uses the Git-Bash drive form "/c" or "/c/...".
func IsMixedDrive(p string) bool {
	_, _, ok := splitMixedDrive(p)
	return ok
}

// IsPosixShape reports whether p is "/", "./" or "../" led, or is "." or "..".
func IsPosixShape(p string) bool {
	switch {
	case p == "." || p == "..":
		return true
	case strings.HasPrefix(p, "/"), strings.HasPrefix(p, "./"), strings.HasPrefix(p, "../"):
		return true
	}
	return false
}

func splitMixedDrive(p string) (drive, rest string, ok bool) {
	if len(p) < 2 || p[0] != '/' || !isLetter(p[1]) {
		return "", "", false
	}
	if len(p) == 2 {
		return strings.ToUpper(p[1:2]), "", true
	}
	if p[2] != '/' {
		return "", "", false
	}
	return strings.ToUpper(p[1:2]), p[3:], true
}

func canonicalWindows(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)

	var prefix, rest string
	rooted := true
	switch {
	case strings.HasPrefix(p, `\\`):
		parts := splitNonEmpty(p, '\\')
		if len(parts) < 2 {
			return `\\` + strings.Join(parts, `\`)
		}
		prefix = `\\` + parts[0] + `\` + parts[1]
		rest = strings.Join(parts[2:], `\`)
	case HasDrive(p):
		prefix = strings.ToUpper(p[:1]) + ":"
		rest = p[2:]
	case strings.HasPrefix(p, `\`):
		rest = p
	default:
		rooted = false
		rest = p
	}

	segs := resolveDots(splitNonEmpty(rest, '\\'), rooted)
	joined := strings.Join(segs, `\`)

	switch {
	case strings.HasPrefix(prefix, `\\`):
		if joined == "" {
			return prefix
		}
		return prefix + `\` + joined
	case rooted:
		return prefix + `\` + joined
	case joined == "":
		return "."
	default:
		return joined
	}
}

func canonicalPosix(p string) string {
	rooted := strings.HasPrefix(p, "/")
	segs := resolveDots(splitNonEmpty(p, '/'), rooted)
	joined := strings.Join(segs, "/")
	switch {
	case rooted:
		return "/" + joined
	case joined == "":
		return "."
	default:
		return joined
	}
}

func resolveDots(segs []string, rooted bool) []string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		switch s {
		case ".":
		case "..":
			switch {
			case len(out) > 0 && out[len(out)-1] != "..":
				out = out[:len(out)-1]
			case rooted:
				// ".." above the root stays at the root
			default:
				out = append(out, "..")
			}
		default:
			out = append(out, s)
		}
	}
	return out
}

func splitNonEmpty(s string, sep byte) []string {
	parts := strings.Split(s, string(sep))
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// separatorFor returns the separator used by a canonical path.
func separatorFor(canon string, kind config.Kind) string {
	switch kind {
	case config.KindWindows:
		return `\`
	case config.KindMixed:
		if HasDrive(canon) || strings.HasPrefix(canon, `\\`) {
			return `\`
		}
	}
	return "/"
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
