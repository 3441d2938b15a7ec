package shell

import (
	"errors"
	"path"
	"strings"
	"unicode/utf8"
)

// Syntax is the command language a shell reads.
type Syntax int

const (
	// SyntaxPOSIX is bash and its relatives.
	SyntaxPOSIX Syntax = iota
	// SyntaxCmd is cmd.exe: double quotes only, caret escapes.
	SyntaxCmd
	// SyntaxPowerShell quotes with both quote characters and escapes with
	// a backtick.
	SyntaxPowerShell
)

func (s Syntax) String() string {
	switch s {
	case SyntaxCmd:
		return "cmd"
	case SyntaxPowerShell:
		return "powershell"
	default:
		return "posix"
	}
}

// windowsSyntax guesses the language of a Windows shell from its executable.
func windowsSyntax(command string) Syntax {
	name := strings.ToLower(path.Base(strings.ReplaceAll(command, `\`, "/")))
	switch strings.TrimSuffix(name, ".exe") {
	case "powershell", "pwsh":
		return SyntaxPowerShell
	default:
		return SyntaxCmd
	}
}

// QuoteAt reports the quote character starting at s[i] in syntax syn and
// its length in bytes. PowerShell accepts typographic quotes as well.
func QuoteAt(s string, i int, syn Syntax) (byte, int) {
	c := s[i]
	switch {
	case c == '"':
		return '"', 1
	case syn != SyntaxPowerShell:
		return 0, 0
	case c == '\'':
		return '\'', 1
	case c < utf8.RuneSelf:
		return 0, 0
	}
	r, n := utf8.DecodeRuneInString(s[i:])
	switch r {
	case '‘', '’', '‚', '‛':
		return '\'', n
	case '“', '”', '„':
		return '"', n
	}
	return 0, 0
}

var (
	errUnterminatedDouble = errors.New("unterminated double quote")
	errUnterminatedSingle = errors.New("unterminated single quote")
)

// checkQuotes reports an unterminated quote in a cmd or PowerShell line.
func checkQuotes(command string, syn Syntax) error {
	var open byte
	for i := 0; i < len(command); i++ {
		c := command[i]
		if syn == SyntaxPowerShell && c == '`' && open != '\'' {
			i++
			continue
		}
		if syn == SyntaxCmd && c == '^' && open == 0 {
			i++
			continue
		}
		q, n := QuoteAt(command, i, syn)
		if q == 0 {
			continue
		}
		i += n - 1
		switch {
		case open == 0:
			open = q
		case q == open:
			open = 0
		}
	}
	switch open {
	case '"':
		return errUnterminatedDouble
	case '\'':
		return errUnterminatedSingle
	}
	return nil
}
