package validate

import (
	"fmt"
	"strings"

	"github.com/Use-Tusk/shellgate/internal/shell"
)

// winScanner reads a cmd or PowerShell command line. Both honor double
// quotes. PowerShell also quotes with single quotes, escapes with a
// backtick and expands $(...) inside double quotes. cmd escapes with a
// caret. Groups in parentheses and PowerShell script blocks are read as
// commands of their own.
type winScanner struct {
	line     string
	syn      shell.Syntax
	ps       bool
	repeated bool
	s        *script

	words   []word
	cur     []byte
	inWord  bool
	static  bool
	start   int
	invoked bool // PowerShell's call operator precedes the command
}

func scanWindows(line string, syn shell.Syntax, repeated bool) (*script, error) {
	w := &winScanner{
		line:     line,
		syn:      syn,
		ps:       syn == shell.SyntaxPowerShell,
		repeated: repeated,
		s:        &script{},
		static:   true,
	}
	if err := w.run(); err != nil {
		return nil, err
	}
	return w.s, nil
}

func (w *winScanner) next(i int) byte {
	if i+1 < len(w.line) {
		return w.line[i+1]
	}
	return 0
}

func (w *winScanner) add(c byte) {
	w.cur = append(w.cur, c)
	w.inWord = true
}

func (w *winScanner) endWord() {
	if w.inWord {
		w.words = append(w.words, word{text: string(w.cur), static: w.static})
	}
	w.cur = w.cur[:0]
	w.inWord = false
	w.static = true
}

// endCall finishes the command that ends at end; the next one starts at
// from.
func (w *winScanner) endCall(end, from int) {
	w.endWord()
	if cl, ok := w.newCall(strings.TrimSpace(w.line[w.start:end])); ok {
		w.s.calls = append(w.s.calls, cl)
	}
	w.words = nil
	w.invoked = false
	w.start = from
}

func (w *winScanner) newCall(source string) (call, bool) {
	words := w.words
	invoked := w.invoked
	if len(words) > 0 && !w.ps {
		// "@" only turns off echo.
		words[0].text = strings.TrimPrefix(words[0].text, "@")
		if words[0].text == "" {
			words = words[1:]
		}
	}
	if len(words) > 1 && w.ps && words[0].text == "." {
		words = words[1:]
		invoked = true
	}
	if len(words) == 0 {
		return call{}, false
	}
	if w.ps && !invoked && strings.HasPrefix(words[0].text, "$") {
		// An expression such as "$x = 1", not a command.
		words[0].static = true
	}
	return call{words: words, source: source, repeated: w.repeated}, true
}

func (w *winScanner) run() error {
	line := w.line
	for i := 0; i < len(line); i++ {
		c := line[i]
		if q, n := shell.QuoteAt(line, i, w.syn); q != 0 {
			var err error
			if q == '"' {
				i, err = w.double(i + n)
			} else {
				i, err = w.single(i + n)
			}
			if err != nil {
				return err
			}
			continue
		}

		switch {
		case c == ' ' || c == '\t' || c == '\r':
			w.endWord()
		case c == '\n':
			w.endCall(i, i+1)
			w.s.op("\n", i, true)
		case (w.ps && c == '`') || (!w.ps && c == '^'):
			if i+1 < len(line) {
				i++
				if line[i] != '\n' {
					w.add(line[i])
				}
			}
		case w.ps && c == '#' && !w.inWord:
			for i+1 < len(line) && line[i+1] != '\n' {
				i++
			}
		case w.ps && c == '$' && w.next(i) == '(':
			w.s.op("$(", i, false)
			j, err := w.group(i+2, '(', ')', w.repeated)
			if err != nil {
				return err
			}
			i = j
			w.inWord, w.static = true, false
		case w.ps && c == '@' && (w.next(i) == '(' || w.next(i) == '{'):
			open, closing := w.next(i), byte(')')
			if open == '{' {
				closing = '}'
			}
			j, err := w.group(i+2, open, closing, w.repeated)
			if err != nil {
				return err
			}
			i = j
			w.inWord, w.static = true, false
		case c == '(':
			if !w.ps {
				w.endWord()
				w.s.compound("(", i)
			}
			j, err := w.group(i+1, '(', ')', w.repeated)
			if err != nil {
				return err
			}
			i = j
			if w.ps {
				w.inWord, w.static = true, false
			}
		case w.ps && c == '{':
			w.endWord()
			w.s.compound("{", i)
			j, err := w.group(i+1, '{', '}', true)
			if err != nil {
				return err
			}
			i = j
		case c == ')' || (w.ps && c == '}'):
			w.endCall(i, i+1)
		case (w.ps && c == '$') || (!w.ps && c == '%'):
			w.static = false
			w.add(c)
		case c == '*' || c == '?' || (w.ps && c == '['):
			w.static = false
			w.add(c)
		case c == ';':
			w.endCall(i, i+1)
			w.s.op(";", i, true)
		case c == '&':
			op := "&"
			if w.next(i) == '&' {
				op = "&&"
			}
			w.endCall(i, i+len(op))
			w.s.op(op, i, true)
			w.invoked = w.ps && op == "&"
			i += len(op) - 1
		case c == '|':
			op := "|"
			if w.next(i) == '|' {
				op = "||"
			}
			w.endCall(i, i+len(op))
			w.s.op(op, i, true)
			i += len(op) - 1
		case c == '>':
			w.endWord()
			switch w.next(i) {
			case '>':
				w.s.op(">>", i, false)
				i++
			case '&':
				w.s.op(">", i, false) // 2>&1
				i++
			default:
				w.s.op(">", i, false)
			}
		case c == '<':
			w.endWord()
			w.s.op("<", i, false)
		default:
			w.add(c)
		}
	}
	w.endCall(len(line), len(line))
	return nil
}

// double reads a double-quoted string starting at i and returns the index
// of its closing quote.
func (w *winScanner) double(i int) (int, error) {
	line := w.line
	w.inWord = true
	for ; i < len(line); i++ {
		c := line[i]
		if q, n := shell.QuoteAt(line, i, w.syn); q == '"' {
			if w.ps && i+n < len(line) {
				if q2, n2 := shell.QuoteAt(line, i+n, w.syn); q2 == '"' {
					w.add('"')
					i += n + n2 - 1
					continue
				}
			}
			return i + n - 1, nil
		}
		switch {
		case w.ps && c == '`':
			if i+1 < len(line) {
				i++
				w.add(line[i])
			}
		case w.ps && c == '$' && w.next(i) == '(':
			w.s.op("$(", i, false)
			j, err := w.group(i+2, '(', ')', w.repeated)
			if err != nil {
				return 0, err
			}
			i = j
			w.static = false
		case (w.ps && c == '$') || (!w.ps && c == '%'):
			w.static = false
			w.add(c)
		default:
			w.add(c)
		}
	}
	return 0, fmt.Errorf("unterminated double quote")
}

// single reads a PowerShell single-quoted string, where '' is a quote.
func (w *winScanner) single(i int) (int, error) {
	line := w.line
	w.inWord = true
	for ; i < len(line); i++ {
		if q, n := shell.QuoteAt(line, i, w.syn); q == '\'' {
			if i+n < len(line) {
				if q2, n2 := shell.QuoteAt(line, i+n, w.syn); q2 == '\'' {
					w.add('\'')
					i += n + n2 - 1
					continue
				}
			}
			return i + n - 1, nil
		}
		w.add(line[i])
	}
	return 0, fmt.Errorf("unterminated single quote")
}

// group reads the commands between from and the bracket closing the one
// just before it, and returns the index of the closing bracket.
func (w *winScanner) group(from int, open, closing byte, repeated bool) (int, error) {
	j := closingBracket(w.line, from, open, closing, w.syn)
	if j < 0 {
		return 0, fmt.Errorf("unclosed %q", open)
	}
	inner, err := scanWindows(w.line[from:j], w.syn, repeated)
	if err != nil {
		return 0, err
	}
	for _, o := range inner.operators {
		o.pos += from
		w.s.operators = append(w.s.operators, o)
	}
	w.s.calls = append(w.s.calls, inner.calls...)
	return j, nil
}

// closingBracket returns the index of the bracket that closes a group
// starting at i, skipping quoted text, or -1.
func closingBracket(line string, i int, open, closing byte, syn shell.Syntax) int {
	ps := syn == shell.SyntaxPowerShell
	depth := 1
	for ; i < len(line); i++ {
		c := line[i]
		if q, n := shell.QuoteAt(line, i, syn); q != 0 {
			j := closingQuote(line, i+n, q, syn)
			if j < 0 {
				return -1
			}
			i = j
			continue
		}
		switch {
		case (ps && c == '`') || (!ps && c == '^'):
			i++
		case c == open:
			depth++
		case c == closing:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// closingQuote returns the index of the last byte of the quote closing a
// string that starts at i, or -1.
func closingQuote(line string, i int, quote byte, syn shell.Syntax) int {
	ps := syn == shell.SyntaxPowerShell
	for ; i < len(line); i++ {
		c := line[i]
		if q, n := shell.QuoteAt(line, i, syn); q == quote {
			if ps && i+n < len(line) {
				if q2, n2 := shell.QuoteAt(line, i+n, syn); q2 == quote {
					i += n + n2 - 1
					continue
				}
			}
			return i + n - 1
		}
		switch {
		case quote == '\'':
		case ps && c == '`':
			i++
		case ps && c == '$' && i+1 < len(line) && line[i+1] == '(':
			j := closingBracket(line, i+2, '(', ')', syn)
			if j < 0 {
				return -1
			}
			i = j
		}
	}
	return -1
}
