package validate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Use-Tusk/shellgate/internal/shell"
)

// maxNesting bounds shell invocations inside shell invocations.
const maxNesting = 4

// word is one argument of a simple command with its quoting removed.
type word struct {
	text string
	// static is false when the shell expands the word at run time:
	// variables, substitutions, globs, tildes.
	static bool
}

// call is one simple command.
type call struct {
	words    []word
	source   string
	repeated bool // inside a loop or a script block
	inFunc   bool
}

func (cl call) name() string { return ExecutableName(cl.words[0].text) }

func (cl call) texts() []string {
	out := make([]string, len(cl.words))
	for i, w := range cl.words {
		out[i] = w.text
	}
	return out
}

type operator struct {
	op  string
	pos int
	// separator marks operators that run another command after or
	// alongside the current one.
	separator bool
	// compound marks a grouping construct. It counts as chaining but is
	// never matched against the blocked operator list.
	compound bool
}

// script is a parsed command line: every operator and every simple
// command, including those of nested shell invocations.
type script struct {
	operators []operator
	calls     []call
	cdPath    bool // CDPATH is assigned somewhere
}

func (s *script) op(op string, pos int, separator bool) {
	s.operators = append(s.operators, operator{op: op, pos: pos, separator: separator})
}

func (s *script) compound(keyword string, pos int) {
	s.operators = append(s.operators, operator{op: keyword, pos: pos, separator: true, compound: true})
}

func parseScript(line string, syn shell.Syntax) (*script, error) {
	return parseLevel(line, syn, 0)
}

func parseLevel(line string, syn shell.Syntax, depth int) (*script, error) {
	if depth > maxNesting {
		return nil, fmt.Errorf("shell invocations are nested more than %d deep", maxNesting)
	}
	var (
		parsed *script
		err    error
	)
	if syn == shell.SyntaxPOSIX {
		parsed, err = parsePOSIX(line)
	} else {
		parsed, err = scanWindows(line, syn, false)
	}
	if err != nil {
		return nil, err
	}

	out := &script{operators: parsed.operators, cdPath: parsed.cdPath}
	for _, cl := range parsed.calls {
		if err := out.addCall(cl, depth); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// addCall records cl followed by whatever it runs on its behalf: the
// command behind a wrapper such as env or nohup, or the script handed to a
// nested shell.
func (s *script) addCall(cl call, depth int) error {
	s.calls = append(s.calls, cl)
	if inner, ok := wrappedCall(cl); ok {
		return s.addCall(inner, depth)
	}

	text, syn, static, ok := nestedScript(cl)
	if !ok {
		return nil
	}
	if !static {
		// Only known at run time: recorded as a call with a dynamic name.
		s.calls = append(s.calls, call{words: []word{{text: text}}, source: cl.source, repeated: cl.repeated, inFunc: cl.inFunc})
		return nil
	}
	nested, err := parseLevel(text, syn, depth+1)
	if err != nil {
		return err
	}
	s.operators = append(s.operators, nested.operators...)
	s.cdPath = s.cdPath || nested.cdPath
	for _, ic := range nested.calls {
		ic.repeated = ic.repeated || cl.repeated
		ic.inFunc = ic.inFunc || cl.inFunc
		s.calls = append(s.calls, ic)
	}
	return nil
}

// wrappers run their arguments as a command.
var wrappers = map[string]bool{
	"builtin": true,
	"command": true,
	"exec":    true,
	"env":     true,
	"nohup":   true,
	"nice":    true,
	"time":    true,
	"timeout": true,
	"stdbuf":  true,
	"xargs":   true,
	"call":    true,
	"start":   true,
}

// optionValues are wrapper options followed by a separate value.
var optionValues = map[string][]string{
	"env":     {"-u", "-C", "--unset", "--chdir"},
	"nice":    {"-n", "--adjustment"},
	"timeout": {"-s", "-k", "--signal", "--kill-after"},
	"xargs":   {"-I", "-n", "-L", "-P", "-d", "-a", "-s", "-E"},
	"wsl":     {"-d", "-u", "--distribution", "--user", "--cd"},
	"stdbuf":  {"-i", "-o", "-e"},
}

// wrappedCall returns the command a wrapper runs: "env X=1 sudo id" runs
// "sudo id". cmd's "for ... do cmd" and "wsl -e cmd" are wrappers too.
func wrappedCall(cl call) (call, bool) {
	if len(cl.words) < 2 {
		return call{}, false
	}
	name := cl.name()
	rest := cl.words[1:]
	inner := call{source: cl.source, repeated: cl.repeated, inFunc: cl.inFunc}

	switch {
	case name == "for":
		i := slices.IndexFunc(rest, func(w word) bool { return strings.EqualFold(w.text, "do") })
		if i < 0 || i == len(rest)-1 {
			return call{}, false
		}
		inner.words = rest[i+1:]
		inner.repeated = true
		return inner, true
	case name == "wsl":
		rest = skipOptions(name, rest)
		if len(rest) < 2 || (rest[0].text != "-e" && rest[0].text != "--exec") {
			return call{}, false
		}
		inner.words = rest[1:]
		return inner, true
	case !wrappers[name]:
		return call{}, false
	}

	seenDuration := false
	for len(rest) > 0 {
		t := rest[0].text
		switch {
		case strings.HasPrefix(t, "-") && t != "-":
			if slices.Contains(optionValues[name], t) && len(rest) > 1 {
				rest = rest[1:]
			}
		case name == "env" && strings.Contains(t, "="):
		case (name == "start" || name == "call") && strings.HasPrefix(t, "/"):
		case name == "timeout" && !seenDuration && t != "" && t[0] >= '0' && t[0] <= '9':
			seenDuration = true
		default:
			inner.words = rest
			return inner, true
		}
		rest = rest[1:]
	}
	return call{}, false
}

// skipOptions drops the leading options of a wrapper that are not -e/--exec.
func skipOptions(name string, args []word) []word {
	for len(args) > 0 {
		t := args[0].text
		if !strings.HasPrefix(t, "-") || t == "-e" || t == "--exec" || t == "--" {
			return args
		}
		if slices.Contains(optionValues[name], t) && len(args) > 1 {
			args = args[1:]
		}
		args = args[1:]
	}
	return args
}

var posixShells = []string{"sh", "bash", "zsh", "ksh", "dash", "ash", "mksh", "fish"}

// nestedScript returns the script a call hands to another shell:
// "bash -c '...'", "eval ...", "cmd /c ...", "powershell -Command ...",
// "wsl ...".
func nestedScript(cl call) (text string, syn shell.Syntax, static, ok bool) {
	if len(cl.words) < 2 {
		return "", 0, false, false
	}
	args := cl.words[1:]
	name := cl.name()
	switch {
	case slices.Contains(posixShells, name):
		for i, a := range args[:len(args)-1] {
			if strings.HasPrefix(a.text, "-") && !strings.HasPrefix(a.text, "--") && strings.Contains(a.text, "c") {
				return args[i+1].text, shell.SyntaxPOSIX, args[i+1].static, true
			}
		}
	case name == "eval":
		text, static := joinWords(args)
		return text, shell.SyntaxPOSIX, static, true
	case name == "cmd":
		for i, a := range args[:len(args)-1] {
			if f := strings.ToLower(a.text); f == "/c" || f == "/k" {
				text, static := joinWords(args[i+1:])
				return text, shell.SyntaxCmd, static, true
			}
		}
	case name == "powershell" || name == "pwsh":
		for i, a := range args[:len(args)-1] {
			if isCommandFlag(a.text) {
				text, static := joinWords(args[i+1:])
				return text, shell.SyntaxPowerShell, static, true
			}
		}
	case name == "wsl":
		rest := skipOptions(name, args)
		if len(rest) > 0 && (rest[0].text == "-e" || rest[0].text == "--exec") {
			return "", 0, false, false
		}
		if len(rest) > 0 && rest[0].text == "--" {
			rest = rest[1:]
		}
		if len(rest) > 0 {
			text, static := joinWords(rest)
			return text, shell.SyntaxPOSIX, static, true
		}
	}
	return "", 0, false, false
}

// isCommandFlag matches PowerShell's -Command and its accepted
// abbreviations.
func isCommandFlag(s string) bool {
	f := strings.ToLower(s)
	if strings.HasPrefix(f, "/") {
		f = "-" + f[1:]
	}
	return f == "-c" || (len(f) >= 3 && strings.HasPrefix("-command", f))
}

func joinWords(ws []word) (string, bool) {
	static := true
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = w.text
		static = static && w.static
	}
	return strings.Join(parts, " "), static
}
