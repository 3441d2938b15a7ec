package validate

import (
	"sort"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// parsePOSIX parses line as bash and collects its operators and simple
// commands in source order.
func parsePOSIX(line string) (*script, error) {
	f, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(line), "")
	if err != nil {
		return nil, err
	}

	s := &script{}
	var loops, funcs int
	var stack []syntax.Node
	syntax.Walk(f, func(node syntax.Node) bool {
		if node == nil {
			switch stack[len(stack)-1].(type) {
			case *syntax.WhileClause, *syntax.ForClause:
				loops--
			case *syntax.FuncDecl:
				funcs--
			}
			stack = stack[:len(stack)-1]
			return true
		}
		stack = append(stack, node)

		switch n := node.(type) {
		case *syntax.File:
			s.list(n.Stmts)
		case *syntax.Stmt:
			s.stmt(n)
		case *syntax.BinaryCmd:
			s.op(binaryOp(n.Op), offset(n.OpPos), true)
		case *syntax.Block:
			s.compound("{", offset(n.Pos()))
			s.list(n.Stmts)
		case *syntax.Subshell:
			s.compound("(", offset(n.Pos()))
			s.list(n.Stmts)
		case *syntax.IfClause:
			s.compound("if", offset(n.Pos()))
			s.list(n.Cond)
			s.list(n.Then)
		case *syntax.WhileClause:
			s.compound("while", offset(n.Pos()))
			s.list(n.Cond)
			s.list(n.Do)
			loops++
		case *syntax.ForClause:
			s.compound("for", offset(n.Pos()))
			s.list(n.Do)
			loops++
		case *syntax.CaseClause:
			s.compound("case", offset(n.Pos()))
		case *syntax.CaseItem:
			s.list(n.Stmts)
		case *syntax.FuncDecl:
			s.compound("function", offset(n.Pos()))
			funcs++
		case *syntax.CoprocClause:
			s.op("&", offset(n.Pos()), true)
		case *syntax.CmdSubst:
			if n.Backquotes {
				s.op("`", offset(n.Left), false)
			} else {
				s.op("$(", offset(n.Left), false)
			}
			s.list(n.Stmts)
		case *syntax.ProcSubst:
			if n.Op == syntax.CmdIn {
				s.op("<(", offset(n.OpPos), false)
			} else {
				s.op(">(", offset(n.OpPos), false)
			}
			s.list(n.Stmts)
		case *syntax.Assign:
			if n.Name != nil && n.Name.Value == "CDPATH" {
				s.cdPath = true
			}
		case *syntax.CallExpr:
			if len(n.Args) == 0 {
				break
			}
			cl := call{
				source:   between(line, n.Pos(), n.End()),
				repeated: loops > 0 || funcs > 0,
				inFunc:   funcs > 0,
			}
			for _, w := range n.Args {
				text, static := wordValue(w)
				cl.words = append(cl.words, word{text: text, static: static})
			}
			s.calls = append(s.calls, cl)
		}
		return true
	})

	sort.SliceStable(s.operators, func(i, j int) bool { return s.operators[i].pos < s.operators[j].pos })
	return s, nil
}

// stmt records how a statement ends and its redirections.
func (s *script) stmt(st *syntax.Stmt) {
	switch {
	case st.Background:
		s.op("&", offset(st.Semicolon), true)
	case st.Coprocess:
		s.op("|&", offset(st.Semicolon), true)
	case st.Semicolon.IsValid():
		s.op(";", offset(st.Semicolon), true)
	}
	for _, r := range st.Redirs {
		s.op(redirOp(r.Op), offset(r.OpPos), false)
	}
}

// list records the newlines separating the statements of a list.
func (s *script) list(stmts []*syntax.Stmt) {
	for i := 0; i+1 < len(stmts); i++ {
		st := stmts[i]
		if !st.Background && !st.Coprocess && !st.Semicolon.IsValid() {
			s.op("\n", offset(st.End()), true)
		}
	}
}

func binaryOp(op syntax.BinCmdOperator) string {
	switch op {
	case syntax.AndStmt:
		return "&&"
	case syntax.OrStmt:
		return "||"
	case syntax.PipeAll:
		return "|&"
	default:
		return "|"
	}
}

// redirOp names a redirection the way the blocked operator list does.
func redirOp(op syntax.RedirOperator) string {
	switch op {
	case syntax.RdrAll, syntax.AppAll, syntax.DplOut:
		return ">"
	case syntax.DplIn:
		return "<"
	default:
		return op.String()
	}
}

func offset(p syntax.Pos) int { return int(p.Offset()) }

func between(line string, from, to syntax.Pos) string {
	i, j := min(offset(from), len(line)), min(offset(to), len(line))
	if i > j {
		return ""
	}
	return line[i:j]
}

// wordValue returns a word as the command will receive it when the word
// needs no expansion. Otherwise static is false and text holds only the
// literal parts.
func wordValue(w *syntax.Word) (text string, static bool) {
	var sb strings.Builder
	static = true
	for i, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			v, pattern := unescapeLit(p.Value)
			if i == 0 && strings.HasPrefix(p.Value, "~") {
				pattern = true
			}
			sb.WriteString(v)
			static = static && !pattern
		case *syntax.SglQuoted:
			if p.Dollar {
				sb.WriteString(ansiC(p.Value))
			} else {
				sb.WriteString(p.Value)
			}
		case *syntax.DblQuoted:
			for _, dp := range p.Parts {
				lit, ok := dp.(*syntax.Lit)
				if !ok {
					static = false
					continue
				}
				sb.WriteString(unescapeDouble(lit.Value))
			}
		default:
			static = false
		}
	}
	return sb.String(), static
}

// unescapeLit removes backslash escapes from an unquoted literal and
// reports whether it holds an unescaped glob or brace pattern.
func unescapeLit(s string) (string, bool) {
	var sb strings.Builder
	pattern := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			i++
			if s[i] != '\n' {
				sb.WriteByte(s[i])
			}
			continue
		}
		switch c {
		case '*', '?':
			pattern = true
		case '[':
			pattern = pattern || strings.Contains(s[i+1:], "]")
		case '{':
			if j := strings.IndexByte(s[i+1:], '}'); j >= 0 {
				body := s[i+1 : i+1+j]
				pattern = pattern || strings.Contains(body, ",") || strings.Contains(body, "..")
			}
		}
		sb.WriteByte(c)
	}
	return sb.String(), pattern
}

// unescapeDouble removes the escapes bash honors inside double quotes.
func unescapeDouble(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.IndexByte("$`\"\\\n", s[i+1]) >= 0 {
			i++
			if s[i] != '\n' {
				sb.WriteByte(s[i])
			}
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

var ansiEscapes = map[byte]byte{
	'a': '\a', 'b': '\b', 'e': 0x1b, 'E': 0x1b, 'f': '\f', 'n': '\n',
	'r': '\r', 't': '\t', 'v': '\v', '\\': '\\', '\'': '\'', '"': '"', '?': '?',
}

// ansiC decodes the body of a $'...' string.
func ansiC(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		c := s[i]
		if b, ok := ansiEscapes[c]; ok {
			sb.WriteByte(b)
			continue
		}
		switch {
		case c == 'c' && i+1 < len(s):
			i++
			sb.WriteByte(s[i] & 0x1f)
		case c == 'x' || c == 'u' || c == 'U':
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[c]
			v, n := leadingDigits(s[i+1:], 16, width)
			switch {
			case n == 0:
				sb.WriteByte('\\')
				sb.WriteByte(c)
			case c == 'x':
				sb.WriteByte(byte(v))
			default:
				sb.WriteRune(rune(v))
			}
			i += n
		case c >= '0' && c <= '7':
			v, n := leadingDigits(s[i:], 8, 3)
			sb.WriteByte(byte(v))
			i += n - 1
		default:
			sb.WriteByte('\\')
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func leadingDigits(s string, base, width int) (uint64, int) {
	n := 0
	for n < len(s) && n < width && isDigit(s[n], base) {
		n++
	}
	if n == 0 {
		return 0, 0
	}
	v, _ := strconv.ParseUint(s[:n], base, 32)
	return v, n
}

func isDigit(c byte, base int) bool {
	switch {
	case c >= '0' && c <= '7':
		return true
	case base == 8:
		return false
	case c >= '8' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		return true
	}
	return false
}
