package validate

import (
	"path/filepath"
	"slices"
	"strings"
)

// executableExts are stripped from executable names before comparison.
var executableExts = []string{".exe", ".cmd", ".bat", ".com", ".ps1"}

// Tokenize splits a line on whitespace, respecting single and double
// quotes. Quotes are removed; "key=value" stays one token. It reads blocked
// command entries and ad hoc input; command lines to run go through the
// shell's own grammar instead.
func Tokenize(line string) []string {
	var tokens []string
	var current strings.Builder
	var inSingleQuote, inDoubleQuote, quoted bool

	flush := func() {
		if current.Len() > 0 || quoted {
			tokens = append(tokens, current.String())
			current.Reset()
		}
		quoted = false
	}

	for _, c := range line {
		switch {
		case c == '\'' && !inDoubleQuote:
			inSingleQuote = !inSingleQuote
			quoted = true
		case c == '"' && !inSingleQuote:
			inDoubleQuote = !inDoubleQuote
			quoted = true
		case (c == ' ' || c == '\t' || c == '\n' || c == '\r') && !inSingleQuote && !inDoubleQuote:
			flush()
		default:
			current.WriteRune(c)
		}
	}
	flush()

	return tokens
}

// ExecutableName returns the bare, lower-cased program name of a command
// token: "C:\Windows\System32\FORMAT.COM" becomes "format".
func ExecutableName(token string) string {
	name := strings.ToLower(strings.TrimSpace(token))
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	ext := filepath.Ext(name)
	if slices.Contains(executableExts, ext) && len(name) > len(ext) {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// normalizeCommand lower-cases a command and reduces its first token to the
// executable name, for prefix matching.
func normalizeCommand(command string) string {
	tokens := Tokenize(strings.ToLower(command))
	if len(tokens) == 0 {
		return ""
	}
	tokens[0] = ExecutableName(tokens[0])
	return strings.Join(tokens, " ")
}
