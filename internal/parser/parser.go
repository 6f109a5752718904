// Package parser is the concrete-syntax collaborator: a thin, hand-written
// recursive-descent parser turning .ato source text into the cst shapes the
// core walks. The core itself treats it as a black box behind cst.Parser.
package parser

import (
	"strings"

	"github.com/vk/atograph/internal/cst"
	"github.com/vk/atograph/internal/diag"
	"github.com/vk/atograph/internal/source"
)

// Parser implements cst.Parser for the .ato grammar.
type Parser struct{}

// New creates a parser.
func New() *Parser {
	return &Parser{}
}

// Parse tokenizes and parses one file. Grammar errors are returned as
// user-facing diagnostics; parsing continues at the next declaration so a
// single pass reports every problem in the file.
func (p *Parser) Parse(path string, src []byte) (*cst.File, []*diag.Diagnostic, error) {
	fp := &fileParser{path: path}
	if err := fp.split(string(src)); err != nil {
		return nil, fp.diags, err
	}
	file := fp.parseFile()
	return file, fp.diags, nil
}

type fileParser struct {
	path  string
	lines []line
	pos   int
	diags []*diag.Diagnostic
}

// split lexes the raw text into logical lines, recording pragma lines as-is.
func (fp *fileParser) split(src string) error {
	raw := strings.Split(src, "\n")
	for i, text := range raw {
		num := i + 1
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "#pragma") {
			// Pragmas survive lexing as a pseudo line carrying one token.
			fp.lines = append(fp.lines, line{num: num, toks: []token{
				{kind: tokIdent, text: trimmed, col: 1},
				{kind: tokEOL, col: len(text) + 1},
			}, indent: -1})
			continue
		}
		ln, err := lexLine(text, num)
		if err != nil {
			fp.errorf(source.NewSpan(fp.path, num, 1, len(text)+1), "%v", err)
			continue
		}
		if !ln.blank() {
			fp.lines = append(fp.lines, ln)
		}
	}
	return nil
}

func (fp *fileParser) errorf(span source.Span, format string, args ...any) {
	fp.diags = append(fp.diags, diag.New(diag.ParseSyntax, span, format, args...))
}

func (fp *fileParser) span(ln line, tok token) source.Span {
	end := tok.col + len(tok.text)
	return source.NewSpan(fp.path, ln.num, tok.col, end)
}

func (fp *fileParser) lineSpan(ln line) source.Span {
	if len(ln.toks) == 0 {
		return source.NewSpan(fp.path, ln.num, 1, 1)
	}
	first := ln.toks[0]
	last := ln.toks[len(ln.toks)-1]
	return source.NewSpan(fp.path, ln.num, first.col, last.col)
}

func (fp *fileParser) parseFile() *cst.File {
	file := &cst.File{Path: fp.path, Span: source.NewSpan(fp.path, 1, 1, 1)}
	for fp.pos < len(fp.lines) {
		ln := fp.lines[fp.pos]
		switch {
		case ln.indent == -1:
			fp.pos++
			fp.parsePragma(ln, file)
		case ln.indent > 0:
			fp.errorf(fp.lineSpan(ln), "unexpected indentation at top level")
			fp.pos++
		default:
			head := ln.toks[0]
			switch head.text {
			case "from":
				fp.pos++
				fp.parseImport(ln, file)
			case "module", "component", "interface":
				fp.parseTypeDecl(file)
			default:
				fp.errorf(fp.span(ln, head), "expected declaration, found %q", head.text)
				fp.skipBlock(ln.indent)
			}
		}
	}
	return file
}

// parsePragma handles `#pragma experiment("FEATURE")` lines.
func (fp *fileParser) parsePragma(ln line, file *cst.File) {
	text := ln.toks[0].text
	span := fp.lineSpan(ln)
	rest := strings.TrimSpace(strings.TrimPrefix(text, "#pragma"))
	if !strings.HasPrefix(rest, "experiment(\"") || !strings.HasSuffix(rest, "\")") {
		fp.errorf(span, "malformed pragma line %q", text)
		return
	}
	feature := strings.TrimSuffix(strings.TrimPrefix(rest, "experiment(\""), "\")")
	file.Pragmas = append(file.Pragmas, &cst.Pragma{Feature: feature, Span: span})
}

// parseImport handles `from "path" import Name[, Name...]`.
func (fp *fileParser) parseImport(ln line, file *cst.File) {
	c := newCursor(fp, ln)
	c.next() // from
	pathTok, ok := c.expect(tokString, "import path string")
	if !ok {
		return
	}
	if kw, ok := c.expect(tokIdent, "import keyword"); !ok || kw.text != "import" {
		if ok {
			fp.errorf(fp.span(ln, kw), "expected 'import', found %q", kw.text)
		}
		return
	}
	imp := &cst.Import{Path: pathTok.text, Span: fp.lineSpan(ln)}
	for {
		name, ok := c.expect(tokIdent, "imported name")
		if !ok {
			return
		}
		imp.Names = append(imp.Names, name.text)
		if !c.accept(",") {
			break
		}
	}
	c.expectEOL()
	file.Imports = append(file.Imports, imp)
}

// parseTypeDecl handles a type declaration header plus its indented body.
func (fp *fileParser) parseTypeDecl(file *cst.File) {
	ln := fp.lines[fp.pos]
	fp.pos++
	c := newCursor(fp, ln)
	kwTok := c.nextTok()

	var kind cst.TypeKind
	switch kwTok.text {
	case "module":
		kind = cst.KindModule
	case "component":
		kind = cst.KindComponent
	case "interface":
		kind = cst.KindInterface
	}

	nameTok, ok := c.expect(tokIdent, "type name")
	if !ok {
		fp.skipBlock(ln.indent)
		return
	}
	decl := &cst.TypeDecl{Kind: kind, Name: nameTok.text, Span: fp.span(ln, nameTok)}

	if c.accept("from") {
		parentTok, ok := c.expect(tokIdent, "parent type name")
		if !ok {
			fp.skipBlock(ln.indent)
			return
		}
		decl.Parent = parentTok.text
	}
	if !c.acceptPunct(":") {
		fp.errorf(fp.span(ln, c.peek()), "expected ':' after type declaration header")
		fp.skipBlock(ln.indent)
		return
	}
	c.expectEOL()

	decl.Body = fp.parseBlock(ln.indent)
	file.Types = append(file.Types, decl)
}

// parseBlock consumes the statements indented deeper than parentIndent.
func (fp *fileParser) parseBlock(parentIndent int) []cst.Stmt {
	var body []cst.Stmt
	blockIndent := -1
	for fp.pos < len(fp.lines) {
		ln := fp.lines[fp.pos]
		if ln.indent <= parentIndent {
			break
		}
		if blockIndent == -1 {
			blockIndent = ln.indent
		}
		if ln.indent != blockIndent {
			fp.errorf(fp.lineSpan(ln), "inconsistent indentation")
			fp.pos++
			continue
		}
		fp.pos++
		if stmt := fp.parseStmt(ln); stmt != nil {
			body = append(body, stmt)
		}
	}
	return body
}

// skipBlock discards the remainder of a malformed declaration's body.
func (fp *fileParser) skipBlock(parentIndent int) {
	for fp.pos < len(fp.lines) && fp.lines[fp.pos].indent > parentIndent {
		fp.pos++
	}
}

func (fp *fileParser) parseStmt(ln line) cst.Stmt {
	c := newCursor(fp, ln)
	head := c.peek()

	switch head.text {
	case "pin", "signal":
		c.next()
		role := cst.RolePin
		if head.text == "signal" {
			role = cst.RoleSignal
		}
		nameTok, ok := c.expect(tokIdent, "field name")
		if !ok {
			return nil
		}
		c.expectEOL()
		return &cst.FieldDecl{Role: role, Name: nameTok.text, Span: fp.span(ln, nameTok)}

	case "for":
		return fp.parseFor(c, ln)

	case "assert":
		c.next()
		expr := fp.parseExpr(c, ln)
		if expr == nil {
			return nil
		}
		c.expectEOL()
		return &cst.AssertStmt{Expr: expr, Span: fp.lineSpan(ln)}
	}

	ref := fp.parseRef(c, ln)
	if ref == nil {
		return nil
	}

	op := c.nextTok()
	switch op.text {
	case "=":
		if c.peek().text == "new" {
			return fp.parseNew(c, ln, ref)
		}
		expr := fp.parseExpr(c, ln)
		if expr == nil {
			return nil
		}
		c.expectEOL()
		return &cst.ParamAssign{Target: ref, Value: expr, Span: fp.lineSpan(ln)}
	case "->":
		typeTok, ok := c.expect(tokIdent, "replacement type name")
		if !ok {
			return nil
		}
		c.expectEOL()
		return &cst.RetypeStmt{Target: ref, NewType: typeTok.text, Span: fp.lineSpan(ln)}
	case "~", "~>", "<~":
		rhs := fp.parseRef(c, ln)
		if rhs == nil {
			return nil
		}
		c.expectEOL()
		dir := cst.ConnectDirect
		if op.text == "~>" {
			dir = cst.BridgeRight
		} else if op.text == "<~" {
			dir = cst.BridgeLeft
		}
		return &cst.ConnectStmt{Lhs: ref, Rhs: rhs, Dir: dir, Span: fp.lineSpan(ln)}
	}
	fp.errorf(fp.span(ln, op), "expected statement operator, found %q", op.text)
	return nil
}

// parseNew handles the tail of `name = new Type` / `name = new Type[n]`.
func (fp *fileParser) parseNew(c *cursor, ln line, target *cst.Ref) cst.Stmt {
	if len(target.Segs) != 1 || target.Segs[0].HasIndex() {
		fp.errorf(target.Span, "a new-instance target must be a plain name, found %q", target)
		return nil
	}
	c.next() // new
	typeTok, ok := c.expect(tokIdent, "type name")
	if !ok {
		return nil
	}
	count := 0
	if c.acceptPunct("[") {
		numTok, ok := c.expect(tokNumber, "array size")
		if !ok {
			return nil
		}
		if numTok.unit != "" || numTok.num != float64(int(numTok.num)) || numTok.num < 1 {
			fp.errorf(fp.span(ln, numTok), "array size must be a positive integer, found %q", numTok.text)
			return nil
		}
		count = int(numTok.num)
		if !c.acceptPunct("]") {
			fp.errorf(fp.span(ln, c.peek()), "expected ']' after array size")
			return nil
		}
	}
	c.expectEOL()
	return &cst.NewStmt{
		Name:     target.Segs[0].Name,
		TypeName: typeTok.text,
		Count:    count,
		Span:     fp.lineSpan(ln),
	}
}

// parseFor handles `for var in container:` plus its nested block.
func (fp *fileParser) parseFor(c *cursor, ln line) cst.Stmt {
	c.next() // for
	varTok, ok := c.expect(tokIdent, "loop variable")
	if !ok {
		fp.skipBlock(ln.indent)
		return nil
	}
	if kw, ok := c.expect(tokIdent, "'in'"); !ok || kw.text != "in" {
		if ok {
			fp.errorf(fp.span(ln, kw), "expected 'in', found %q", kw.text)
		}
		fp.skipBlock(ln.indent)
		return nil
	}
	container := fp.parseRef(c, ln)
	if container == nil {
		fp.skipBlock(ln.indent)
		return nil
	}
	if !c.acceptPunct(":") {
		fp.errorf(fp.span(ln, c.peek()), "expected ':' after loop header")
		fp.skipBlock(ln.indent)
		return nil
	}
	c.expectEOL()
	body := fp.parseBlock(ln.indent)
	return &cst.ForStmt{Var: varTok.text, Container: container, Body: body, Span: fp.lineSpan(ln)}
}

// parseRef parses a dotted reference path with optional indices.
func (fp *fileParser) parseRef(c *cursor, ln line) *cst.Ref {
	first, ok := c.expect(tokIdent, "reference")
	if !ok {
		return nil
	}
	ref := &cst.Ref{Span: fp.span(ln, first)}
	name := first
	for {
		seg := cst.NewRefSeg(name.text)
		if c.acceptPunct("[") {
			numTok, ok := c.expect(tokNumber, "index")
			if !ok {
				return nil
			}
			if numTok.unit != "" || numTok.num != float64(int(numTok.num)) {
				fp.errorf(fp.span(ln, numTok), "index must be an integer, found %q", numTok.text)
				return nil
			}
			seg = cst.NewRefSegIndex(name.text, int(numTok.num))
			if !c.acceptPunct("]") {
				fp.errorf(fp.span(ln, c.peek()), "expected ']' after index")
				return nil
			}
		}
		ref.Segs = append(ref.Segs, seg)
		if !c.acceptPunct(".") {
			break
		}
		name, ok = c.expect(tokIdent, "reference segment")
		if !ok {
			return nil
		}
	}
	return ref
}

// cursor walks one line's token slice.
type cursor struct {
	fp *fileParser
	ln line
	i  int
}

func newCursor(fp *fileParser, ln line) *cursor {
	return &cursor{fp: fp, ln: ln}
}

func (c *cursor) peek() token {
	return c.ln.toks[c.i]
}

func (c *cursor) next() {
	if c.ln.toks[c.i].kind != tokEOL {
		c.i++
	}
}

func (c *cursor) nextTok() token {
	t := c.ln.toks[c.i]
	c.next()
	return t
}

// accept consumes an identifier or punct with the exact given text.
func (c *cursor) accept(text string) bool {
	if c.peek().text == text && c.peek().kind != tokEOL {
		c.next()
		return true
	}
	return false
}

func (c *cursor) acceptPunct(text string) bool {
	t := c.peek()
	if t.kind == tokPunct && t.text == text {
		c.next()
		return true
	}
	return false
}

// expect consumes a token of the given kind or reports what was wanted.
func (c *cursor) expect(kind tokenKind, what string) (token, bool) {
	t := c.peek()
	if t.kind != kind {
		c.fp.errorf(c.fp.span(c.ln, t), "expected %s, found %q", what, tokenDesc(t))
		return t, false
	}
	c.next()
	return t, true
}

// expectEOL reports trailing junk after a complete statement.
func (c *cursor) expectEOL() {
	if t := c.peek(); t.kind != tokEOL {
		c.fp.errorf(c.fp.span(c.ln, t), "unexpected trailing %q", t.text)
	}
}

func tokenDesc(t token) string {
	if t.kind == tokEOL {
		return "end of line"
	}
	return t.text
}

var _ cst.Parser = (*Parser)(nil)
