package shell

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/google/shlex"
	"mvdan.cc/sh/v3/syntax"

	"github.com/Use-Tusk/shellgate/internal/config"
	"github.com/Use-Tusk/shellgate/internal/pathnorm"
)

// OriginalPathEnv carries the working directory exactly as requested into a
// WSL process, before any mount conversion.
const OriginalPathEnv = "SHELLGATE_WSL_ORIGINAL_PATH"

// InvocationRequest is a validated command ready to be turned into a process.
type InvocationRequest struct {
	Executable   config.ExecutableConfig
	Command      string
	WorkDir      string // validated, in the shell's own dialect
	RequestedDir string // as the caller wrote it
	MountPoint   string
}

// Invocation is the process to spawn.
type Invocation struct {
	Path string
	Args []string
	Dir  string   // host working directory, empty to inherit
	Env  []string // extra KEY=VALUE entries appended to the environment
}

// Argv returns Path followed by Args.
func (i *Invocation) Argv() []string {
	return append([]string{i.Path}, i.Args...)
}

// stringInvocation passes the whole command line as the last argument:
// cmd /c "<line>", powershell -Command "<line>", bash -c "<line>".
func stringInvocation(req InvocationRequest, dir string) *Invocation {
	args := slices.Clone(req.Executable.Args)
	args = append(args, req.Command)
	return &Invocation{Path: req.Executable.Command, Args: args, Dir: dir}
}

// posixInvocation splits a plain command into argv and hands the shell a
// script rebuilt from the quoted words, so every argument keeps the
// boundaries it was split on. Commands that are not plain go as written.
func posixInvocation(req InvocationRequest) (*Invocation, error) {
	argv, ok := SimpleArgv(req.Command)
	if !ok {
		return stringInvocation(req, req.WorkDir), nil
	}
	words := make([]string, len(argv))
	for i, a := range argv {
		quoted, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			return nil, fmt.Errorf("quoting argument %q: %w", a, err)
		}
		words[i] = quoted
	}
	rebuilt := req
	rebuilt.Command = strings.Join(words, " ")
	return stringInvocation(rebuilt, req.WorkDir), nil
}

// mixedInvocation runs Git Bash from the Windows side. Drive paths become
// the host directory; POSIX-only paths such as /usr are entered with cd.
func mixedInvocation(req InvocationRequest) (*Invocation, error) {
	if req.WorkDir == "" || pathnorm.HasDrive(req.WorkDir) || pathnorm.IsUNC(req.WorkDir) {
		return stringInvocation(req, req.WorkDir), nil
	}
	quoted, err := syntax.Quote(req.WorkDir, syntax.LangBash)
	if err != nil {
		return nil, fmt.Errorf("quoting working directory: %w", err)
	}
	scripted := req
	scripted.Command = "cd " + quoted + " && " + req.Command
	return stringInvocation(scripted, ""), nil
}

// wslInvocation starts the command through wsl.exe. The Linux-side
// directory is passed with --cd. A command made only of literal words is
// split into argv and run directly after -e; anything else goes through
// "bash -c".
func wslInvocation(req InvocationRequest) (*Invocation, error) {
	var args []string
	if req.WorkDir != "" {
		args = append(args, "--cd", req.WorkDir)
	}
	args = append(args, req.Executable.Args...)

	if argv, ok := SimpleArgv(req.Command); ok {
		args = append(args, argv...)
	} else {
		args = append(args, "bash", "-c", req.Command)
	}

	inv := &Invocation{Path: req.Executable.Command, Args: args}

	if runtime.GOOS == "windows" {
		if host, ok := pathnorm.MountedToWindows(req.WorkDir, req.MountPoint); ok {
			inv.Dir = host
		}
	}

	if req.RequestedDir != "" {
		inv.Env = append(inv.Env, OriginalPathEnv+"="+req.RequestedDir)
		wslenv := OriginalPathEnv
		if existing := os.Getenv("WSLENV"); existing != "" {
			wslenv = existing + ":" + OriginalPathEnv
		}
		inv.Env = append(inv.Env, "WSLENV="+wslenv)
	}

	return inv, nil
}

// SimpleArgv returns the words of command when it is a single plain
// command whose words are all literal: no expansions, globs, operators,
// assignments or redirections. Such commands can be run without a shell.
func SimpleArgv(command string) ([]string, bool) {
	f, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(command), "")
	if err != nil || len(f.Stmts) != 1 {
		return nil, false
	}
	st := f.Stmts[0]
	if st.Negated || st.Background || st.Coprocess || len(st.Redirs) > 0 {
		return nil, false
	}
	call, ok := st.Cmd.(*syntax.CallExpr)
	if !ok || len(call.Assigns) > 0 || len(call.Args) == 0 {
		return nil, false
	}
	for _, w := range call.Args {
		if !literalWord(w) {
			return nil, false
		}
	}

	argv, err := shlex.Split(command)
	if err != nil || len(argv) != len(call.Args) {
		return nil, false
	}
	return argv, true
}

func literalWord(w *syntax.Word) bool {
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			if strings.ContainsAny(p.Value, `*?[~\`) {
				return false
			}
		case *syntax.SglQuoted:
			if p.Dollar || strings.Contains(p.Value, `\`) {
				return false
			}
		case *syntax.DblQuoted:
			if p.Dollar {
				return false
			}
			for _, dp := range p.Parts {
				lit, ok := dp.(*syntax.Lit)
				if !ok || strings.Contains(lit.Value, `\`) {
					return false
				}
			}
		default:
			return false
		}
	}
	return true
}

// parsePosix rejects commands a POSIX shell would fail to parse, such as
// unterminated quotes.
func parsePosix(command string) error {
	if _, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(command), ""); err != nil {
		return fmt.Errorf("malformed command: %w", err)
	}
	return nil
}
