package validate

import (
	"strings"
	"unicode/utf8"
)

// Command runs the full validation pipeline for one request and returns the
// working directory in the shell's dialect. The checks run in a fixed order
// and the first failure is the only one reported: length, operators,
// command names, arguments, shell syntax, then directories (the request's
// and every cd target in the line). The line is read with the grammar of
// the shell that will run it.
func Command(c *Context, line, workDir string) (string, error) {
	return CommandFrom(c, line, workDir, "")
}

// CommandFrom is Command with a relative workDir resolved against base.
func CommandFrom(c *Context, line, workDir, base string) (string, error) {
	sec := c.Config.Security
	rst := c.Config.Restrictions

	if n := utf8.RuneCountInString(line); n > sec.MaxCommandLength {
		return "", newError(CodeCommandTooLong, "", "command is %d characters, the limit is %d", n, sec.MaxCommandLength)
	}
	if strings.TrimSpace(line) == "" {
		return "", newError(CodeEmptyCommand, "", "command is empty")
	}

	parsed, perr := parseScript(line, c.Syntax)
	if sec.EnableInjectionProtection {
		if perr != nil {
			return "", newError(CodeMalformedCommand, line, "%v", perr)
		}
		if err := checkOperators(parsed.operators, rst.BlockedOperators, sec.AllowCommandChaining); err != nil {
			return "", err
		}
	}
	if perr != nil {
		return "", newError(CodeMalformedCommand, line, "%v", perr)
	}

	for _, cl := range parsed.calls {
		if sec.EnableInjectionProtection && !cl.words[0].static {
			return "", newError(CodeCommandBlocked, cl.source, "the command run by %q is only known at run time", cl.source)
		}
		if entry, ok := blockedEntry(cl.texts(), rst.BlockedCommands); ok {
			return "", newError(CodeCommandBlocked, entry, "command %q is blocked by %q", cl.source, entry)
		}
	}

	for _, cl := range parsed.calls {
		if arg, entry, ok := blockedArgument(cl.texts()[1:], rst.BlockedArguments); ok {
			return "", newError(CodeArgumentBlocked, arg, "argument %q is blocked by %q", arg, entry)
		}
	}

	if err := c.Personality.ValidateCommand(line); err != nil {
		return "", newError(CodeMalformedCommand, line, "%v", err)
	}

	if strings.TrimSpace(workDir) == "" {
		return "", newError(CodeWorkingDirectoryUndefined, "", "no working directory was given and none is configured")
	}
	dir, err := WorkingDirectoryFrom(workDir, base, c)
	if err != nil {
		return "", err
	}
	if err := chainDirectories(parsed, dir, c); err != nil {
		return "", err
	}
	return dir, nil
}
