package jsxlint

import (
	"strings"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokTemplate // template literal chunk, delimited by ` or ${ and }
	tokRegex
	tokPunct
	tokJSXOpen      // '<' starting an element or fragment
	tokJSXName      // element name in an opening tag
	tokJSXAttr      // attribute name
	tokJSXAttrString
	tokJSXTagEnd    // '>' ending an opening tag
	tokJSXSelfClose // '/>'
	tokJSXCloseOpen // '</'
	tokJSXCloseName
	tokJSXCloseEnd // '>' ending a closing tag
	tokJSXText
)

type token struct {
	kind     tokenKind
	text     string
	line     int // 1-based
	col      int // 1-based, in bytes
	nlBefore bool
	jsx      bool // '{' or '}' delimiting a JSX expression container
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) punct(text string) bool {
	return t.kind == tokPunct && t.text == text
}

type lexMode int

const (
	modeJS lexMode = iota
	modeBrace
	modeTemplate
	modeTemplateExpr
	modeJSXTag
	modeJSXChildren
	modeJSXExpr
	modeJSXClose
)

// Longest first
var punctuators = []string{
	">>>=", "...", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "**", "<<", ">>",
}

// Keywords after which an expression (and so a regex or JSX) may start
var exprKeywords = map[string]bool{
	"return": true, "typeof": true, "case": true, "do": true, "else": true,
	"in": true, "of": true, "new": true, "delete": true, "void": true,
	"throw": true, "yield": true, "await": true, "instanceof": true,
	"default": true, "extends": true,
}

type lexer struct {
	src       string
	pos       int
	line      int
	col       int
	modes     []lexMode
	toks      []token
	nl        bool
	jsxName   bool // next name in a JSX tag is the element name
	tmplStart mark
}

type mark struct {
	pos, line, col int
	nl             bool
}

// tokenize splits JavaScript with JSX into tokens. It never fails: malformed
// input yields a best-effort stream, and syntax errors are reported elsewhere.
func tokenize(src string) []token {
	l := &lexer{src: src, line: 1, col: 1, modes: []lexMode{modeJS}}
	for l.pos < len(l.src) {
		switch l.mode() {
		case modeTemplate:
			l.lexTemplate()
		case modeJSXTag:
			l.lexJSXTag()
		case modeJSXChildren:
			l.lexJSXChildren()
		case modeJSXClose:
			l.lexJSXClose()
		default:
			l.lexJS()
		}
	}
	return l.toks
}

func (l *lexer) mode() lexMode { return l.modes[len(l.modes)-1] }

func (l *lexer) push(m lexMode) { l.modes = append(l.modes, m) }

func (l *lexer) pop() {
	if len(l.modes) > 1 {
		l.modes = l.modes[:len(l.modes)-1]
	}
}

func (l *lexer) mark() mark { return mark{l.pos, l.line, l.col, l.nl} }

func (l *lexer) peek(n int) byte {
	if l.pos+n < len(l.src) {
		return l.src[l.pos+n]
	}
	return 0
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
			l.nl = true
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *lexer) emit(kind tokenKind, m mark) {
	l.toks = append(l.toks, token{
		kind:     kind,
		text:     l.src[m.pos:l.pos],
		line:     m.line,
		col:      m.col,
		nlBefore: m.nl,
	})
	l.nl = false
}

func (l *lexer) emitJSXBrace(m mark) {
	l.emit(tokPunct, m)
	l.toks[len(l.toks)-1].jsx = true
}

func (l *lexer) last() *token {
	if len(l.toks) == 0 {
		return nil
	}
	return &l.toks[len(l.toks)-1]
}

// exprAllowed reports whether the previous token leaves the lexer in
// expression position, where '/' opens a regex and '<' opens JSX
func exprAllowed(prev *token) bool {
	if prev == nil {
		return true
	}
	switch prev.kind {
	case tokIdent:
		return exprKeywords[prev.text]
	case tokNumber, tokString, tokRegex, tokJSXSelfClose, tokJSXCloseEnd:
		return false
	case tokTemplate:
		// Only a finished literal can precede; chunks are followed by ${
		return false
	case tokPunct:
		switch prev.text {
		case ")", "]", "}", "++", "--":
			return false
		}
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

func isJSXNamePart(c byte) bool {
	return isIdentPart(c) || c == '-' || c == '.' || c == ':'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// skipTrivia skips whitespace and comments
func (l *lexer) skipTrivia() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isSpace(c):
			l.advance(1)
		case c == '/' && l.peek(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
		case c == '/' && l.peek(1) == '*':
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end == -1 {
				l.advance(len(l.src) - l.pos)
			} else {
				l.advance(end + 4)
			}
		default:
			return
		}
	}
}

func (l *lexer) lexJS() {
	l.skipTrivia()
	if l.pos >= len(l.src) {
		return
	}

	m := l.mark()
	c := l.src[l.pos]

	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.advance(1)
		}
		l.emit(tokIdent, m)

	case c >= '0' && c <= '9' || c == '.' && l.peek(1) >= '0' && l.peek(1) <= '9':
		l.lexNumber(m.pos)
		l.emit(tokNumber, m)

	case c == '"' || c == '\'':
		l.lexQuoted(c, true)
		l.emit(tokString, m)

	case c == '`':
		l.advance(1)
		l.tmplStart = m
		l.push(modeTemplate)

	case c == '{':
		l.advance(1)
		l.emit(tokPunct, m)
		l.push(modeBrace)

	case c == '}':
		l.advance(1)
		switch l.mode() {
		case modeTemplateExpr:
			l.emit(tokPunct, m)
			l.pop()
			l.tmplStart = l.mark()
		case modeJSXExpr:
			l.emitJSXBrace(m)
			l.pop()
		default:
			l.emit(tokPunct, m)
			l.pop()
		}

	case c == '<' && exprAllowed(l.last()) && (isIdentStart(l.peek(1)) || l.peek(1) == '>'):
		l.advance(1)
		l.emit(tokJSXOpen, m)
		l.push(modeJSXTag)
		l.jsxName = true

	case c == '/' && exprAllowed(l.last()):
		l.lexRegex()
		l.emit(tokRegex, m)

	default:
		for _, p := range punctuators {
			if strings.HasPrefix(l.src[l.pos:], p) {
				// a?.5:1 is a ternary, not optional chaining
				if p == "?." && l.peek(2) >= '0' && l.peek(2) <= '9' {
					continue
				}
				l.advance(len(p))
				l.emit(tokPunct, m)
				return
			}
		}
		l.advance(1)
		l.emit(tokPunct, m)
	}
}

func (l *lexer) lexNumber(start int) {
	hex := start+1 < len(l.src) && l.src[start] == '0' && l.src[start+1]|0x20 == 'x'
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isIdentPart(c) || c == '.' && l.peek(1) != '.':
			l.advance(1)
		case (c == '+' || c == '-') && !hex && (l.src[l.pos-1] == 'e' || l.src[l.pos-1] == 'E'):
			l.advance(1)
		default:
			return
		}
	}
}

// lexQuoted consumes a quoted string starting at the opening quote. JS
// strings stop at an unescaped newline; JSX attribute strings do not.
func (l *lexer) lexQuoted(quote byte, escapes bool) {
	l.advance(1)
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case escapes && c == '\\':
			l.advance(2)
		case c == quote:
			l.advance(1)
			return
		case escapes && c == '\n':
			return
		default:
			l.advance(1)
		}
	}
}

func (l *lexer) lexRegex() {
	l.advance(1)
	inClass := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\':
			l.advance(2)
			continue
		case c == '\n':
			return
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			l.advance(1)
			for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
				l.advance(1)
			}
			return
		}
		l.advance(1)
	}
}

func (l *lexer) lexTemplate() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\':
			l.advance(2)
		case c == '`':
			l.advance(1)
			l.emit(tokTemplate, l.tmplStart)
			l.pop()
			return
		case c == '$' && l.peek(1) == '{':
			l.emit(tokTemplate, l.tmplStart)
			m := l.mark()
			l.advance(2)
			l.emit(tokPunct, m)
			l.push(modeTemplateExpr)
			return
		default:
			l.advance(1)
		}
	}
	// Unterminated template
	l.emit(tokTemplate, l.tmplStart)
	l.pop()
}

func (l *lexer) lexJSXTag() {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.advance(1)
	}
	if l.pos >= len(l.src) {
		return
	}

	m := l.mark()
	c := l.src[l.pos]

	if l.jsxName {
		l.jsxName = false
		if isIdentStart(c) {
			for l.pos < len(l.src) && isJSXNamePart(l.src[l.pos]) {
				l.advance(1)
			}
			l.emit(tokJSXName, m)
			return
		}
	}

	switch {
	case c == '/' && l.peek(1) == '>':
		l.advance(2)
		l.emit(tokJSXSelfClose, m)
		l.pop()
	case c == '>':
		l.advance(1)
		l.emit(tokJSXTagEnd, m)
		l.modes[len(l.modes)-1] = modeJSXChildren
	case c == '{':
		l.advance(1)
		l.emitJSXBrace(m)
		l.push(modeJSXExpr)
	case c == '=':
		l.advance(1)
		l.emit(tokPunct, m)
	case c == '"' || c == '\'':
		l.lexQuoted(c, false)
		l.emit(tokJSXAttrString, m)
	case isIdentStart(c):
		for l.pos < len(l.src) && isJSXNamePart(l.src[l.pos]) {
			l.advance(1)
		}
		l.emit(tokJSXAttr, m)
	default:
		l.advance(1)
	}
}

func (l *lexer) lexJSXChildren() {
	m := l.mark()
	for l.pos < len(l.src) && l.src[l.pos] != '<' && l.src[l.pos] != '{' {
		l.advance(1)
	}
	if l.pos > m.pos {
		if strings.TrimSpace(l.src[m.pos:l.pos]) != "" {
			l.emit(tokJSXText, m)
		}
	}
	if l.pos >= len(l.src) {
		return
	}

	m = l.mark()
	switch {
	case l.src[l.pos] == '{':
		l.advance(1)
		l.emitJSXBrace(m)
		l.push(modeJSXExpr)
	case l.peek(1) == '/':
		l.advance(2)
		l.emit(tokJSXCloseOpen, m)
		l.push(modeJSXClose)
	default:
		l.advance(1)
		l.emit(tokJSXOpen, m)
		l.push(modeJSXTag)
		l.jsxName = true
	}
}

func (l *lexer) lexJSXClose() {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.advance(1)
	}
	if l.pos >= len(l.src) {
		return
	}

	m := l.mark()
	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isJSXNamePart(l.src[l.pos]) {
			l.advance(1)
		}
		l.emit(tokJSXCloseName, m)
	case c == '>':
		l.advance(1)
		l.emit(tokJSXCloseEnd, m)
		l.pop() // closing tag
		l.pop() // element children
	default:
		l.advance(1)
	}
}
