package validate

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IsCommandBlocked reports whether line matches an entry of blocked.
// Entries of several words match the whole line exactly or as a prefix
// followed by a space ("rm -rf /" blocks "rm -rf / now", not "rm -rf /tmp").
// Single-word entries match the executable name. Matching ignores case.
func IsCommandBlocked(line string, blocked []string) bool {
	_, ok := blockedEntry(Tokenize(line), blocked)
	return ok
}

// blockedEntry matches the words of one simple command.
func blockedEntry(words []string, blocked []string) (string, bool) {
	if len(words) == 0 {
		return "", false
	}
	exe := ExecutableName(words[0])
	normalized := exe
	for _, w := range words[1:] {
		normalized += " " + strings.ToLower(w)
	}

	for _, entry := range blocked {
		want := normalizeCommand(entry)
		if want == "" {
			continue
		}
		if !strings.Contains(want, " ") {
			if exe == want {
				return entry, true
			}
			continue
		}
		if normalized == want || strings.HasPrefix(normalized, want+" ") {
			return entry, true
		}
	}
	return "", false
}

// IsArgumentBlocked reports whether any of args equals a blocked entry,
// ignoring case. Entries containing *, ? or [ are glob patterns.
func IsArgumentBlocked(args []string, blocked []string) bool {
	_, _, ok := blockedArgument(args, blocked)
	return ok
}

func blockedArgument(args []string, blocked []string) (arg, entry string, ok bool) {
	for _, a := range args {
		la := strings.ToLower(a)
		for _, b := range blocked {
			lb := strings.ToLower(strings.TrimSpace(b))
			if lb == "" {
				continue
			}
			if la == lb || (isGlob(lb) && globMatch(lb, la)) {
				return a, b, true
			}
		}
	}
	return "", "", false
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// globMatch matches an argument against a pattern. Arguments are not paths,
// so unless the pattern itself has a slash a wildcard also matches across
// slashes ("--exec=*" blocks "--exec=/bin/sh").
func globMatch(pattern, arg string) bool {
	if !strings.Contains(pattern, "/") {
		arg = strings.ReplaceAll(arg, "/", "\x00")
	}
	ok, err := doublestar.Match(pattern, arg)
	return err == nil && ok
}
