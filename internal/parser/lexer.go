package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// tokenKind classifies one lexical token within a line.
type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokPunct
	tokEOL
)

// token is one lexeme plus its 1-based column.
type token struct {
	kind tokenKind
	text string
	num  float64
	unit string
	col  int
}

// line is one logical source line: its indent depth in spaces and its
// tokens, terminated by a tokEOL sentinel.
type line struct {
	num    int
	indent int
	toks   []token
}

// punctuation tokens, longest first so multi-character operators win.
var puncts = []string{
	"+/-", "~>", "<~", "->", "<=", ">=", "==", "=",
	"~", ":", ".", ",", "[", "]", "(", ")", "+", "-", "*", "/", "<", ">", "%",
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9')
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

// lexLine tokenizes one physical line. Comments (# to end of line) are
// stripped, except #pragma lines which the caller handles before lexing.
func lexLine(text string, num int) (line, error) {
	indent := 0
	for indent < len(text) && text[indent] == ' ' {
		indent++
	}
	ln := line{num: num, indent: indent}
	pos := indent

scan:
	for pos < len(text) {
		c := text[pos]
		switch {
		case c == ' ' || c == '\t':
			pos++
		case c == '#':
			break scan
		case c == '"':
			start := pos
			pos++
			for pos < len(text) && text[pos] != '"' {
				pos++
			}
			if pos >= len(text) {
				return ln, fmt.Errorf("unterminated string literal at column %d", start+1)
			}
			ln.toks = append(ln.toks, token{kind: tokString, text: text[start+1 : pos], col: start + 1})
			pos++
		case isDigit(c):
			start := pos
			for pos < len(text) && (isDigit(text[pos]) || text[pos] == '.') {
				pos++
			}
			numText := text[start:pos]
			val, err := strconv.ParseFloat(numText, 64)
			if err != nil {
				return ln, fmt.Errorf("malformed number %q at column %d", numText, start+1)
			}
			// A trailing identifier run is the unit suffix, e.g. 10kohm.
			unitStart := pos
			for pos < len(text) && isIdentPart(text[pos]) {
				pos++
			}
			ln.toks = append(ln.toks, token{
				kind: tokNumber,
				text: text[start:pos],
				num:  val,
				unit: text[unitStart:pos],
				col:  start + 1,
			})
		case isIdentStart(c):
			start := pos
			for pos < len(text) && isIdentPart(text[pos]) {
				pos++
			}
			ln.toks = append(ln.toks, token{kind: tokIdent, text: text[start:pos], col: start + 1})
		default:
			matched := false
			for _, p := range puncts {
				if strings.HasPrefix(text[pos:], p) {
					ln.toks = append(ln.toks, token{kind: tokPunct, text: p, col: pos + 1})
					pos += len(p)
					matched = true
					break
				}
			}
			if !matched {
				return ln, fmt.Errorf("unexpected character %q at column %d", string(c), pos+1)
			}
		}
	}
	ln.toks = append(ln.toks, token{kind: tokEOL, text: "", col: len(text) + 1})
	return ln, nil
}

// blank reports whether the line carries no tokens besides the sentinel.
func (l line) blank() bool {
	return len(l.toks) <= 1
}
