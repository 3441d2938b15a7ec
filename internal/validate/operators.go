package validate

import (
	"slices"

	"github.com/Use-Tusk/shellgate/internal/config"
	"github.com/Use-Tusk/shellgate/internal/shell"
)

// ShellOperators rejects a command line containing a blocked operator. An
// operator is blocked when it, or its first character, is listed. When
// chaining is not allowed, every command separator is blocked whatever the
// list says. Windows lines are read as cmd.
func ShellOperators(line string, kind config.Kind, blocked []string, allowChaining bool) error {
	syn := shell.SyntaxPOSIX
	if kind.IsWindows() {
		syn = shell.SyntaxCmd
	}
	s, err := parseScript(line, syn)
	if err != nil {
		return newError(CodeMalformedCommand, line, "%v", err)
	}
	return checkOperators(s.operators, blocked, allowChaining)
}

func checkOperators(ops []operator, blocked []string, allowChaining bool) error {
	for _, o := range ops {
		if !allowChaining && o.separator {
			return newError(CodeOperatorBlocked, displayOp(o.op), "command chaining is not allowed: found %q", displayOp(o.op))
		}
		if !o.compound && operatorListed(o.op, blocked) {
			return newError(CodeOperatorBlocked, displayOp(o.op), "operator %q is blocked", displayOp(o.op))
		}
	}
	return nil
}

func operatorListed(op string, blocked []string) bool {
	if slices.Contains(blocked, op) || slices.Contains(blocked, op[:1]) {
		return true
	}
	switch op {
	case "$(":
		return slices.Contains(blocked, "`")
	case "\n":
		return slices.Contains(blocked, ";")
	}
	return false
}

func displayOp(op string) string {
	if op == "\n" {
		return `\n`
	}
	return op
}
