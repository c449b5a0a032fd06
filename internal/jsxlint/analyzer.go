package jsxlint

import (
	"sort"
	"strings"
)

type braceKind int

const (
	braceBlock braceKind = iota
	braceObject
	braceClass
	bracePattern
	braceFuncBody
	braceJSX
	braceTemplate
)

type bindKind int

const (
	bindVar bindKind = iota
	bindFunction
	bindClass
	bindParam
	bindImport
	bindCatch
)

type binding struct {
	name     string
	tok      int
	kind     bindKind
	decl     bool // function declaration statement
	hasInit  bool
	fn       int // owning function, -1 at module level
	preamble bool
	stable   bool // state setter, dispatcher or ref: identity never changes
}

type function struct {
	name        string
	nameTok     int
	decl        bool
	arrow       bool
	method      bool
	classMember bool
	callback    bool
	callee      string
	start       int
	paramsOpen  int // '(' or the lone arrow parameter
	paramsClose int
	bodyStart   int
	bodyEnd     int
	block       bool
	parent      int
	params      []*binding
	returns     []int
}

// rangeStart is the first token scoped to the function
func (f *function) rangeStart() int {
	if f.paramsOpen >= 0 {
		return f.paramsOpen
	}
	return f.bodyStart
}

type ref struct {
	name string
	tok  int
	jsx  bool
}

type jsxAttr struct {
	name string
	tok  int
	str  bool // string literal value
}

type jsxElement struct {
	open        int
	name        string
	attrs       []jsxAttr
	spread      bool
	selfClosing bool
	children    bool
}

func (e *jsxElement) attr(name string) (jsxAttr, bool) {
	for _, a := range e.attrs {
		if a.name == name {
			return a, true
		}
	}
	return jsxAttr{}, false
}

// analysis is the token-level model the rules run against. Scoping is
// approximate: names are resolved module-wide, which never reports a
// declared name as undefined but can miss shadowing mistakes.
type analysis struct {
	toks          []token
	preambleLines int
	globals       map[string]bool

	match    []int
	parent   []int
	braces   map[int]braceKind
	owner    map[int]string // control keyword owning a block '{'
	patterns map[int]bool
	keys     []bool
	declTok  []bool

	funcs       []*function
	funcByStart map[int]int
	funcOf      []int

	bindings []*binding
	byName   map[string][]*binding
	refs     []ref
	refNames map[string]bool
	elems    []*jsxElement
}

func analyze(src string, preambleLines int, globals map[string]bool) *analysis {
	toks := tokenize(src)
	n := len(toks)
	a := &analysis{
		toks:          toks,
		preambleLines: preambleLines,
		globals:       globals,
		match:         make([]int, n),
		parent:        make([]int, n),
		braces:        make(map[int]braceKind),
		owner:         make(map[int]string),
		patterns:      make(map[int]bool),
		keys:          make([]bool, n),
		declTok:       make([]bool, n),
		funcByStart:   make(map[int]int),
		funcOf:        make([]int, n),
		byName:        make(map[string][]*binding),
		refNames:      make(map[string]bool),
	}

	a.pairBrackets()
	a.classifyBraces()
	a.findFunctions()
	a.scopeFunctions()
	a.collectBindings()
	a.markKeys()
	a.collectRefs()
	a.collectElements()
	return a
}

var reserved = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "export": true, "extends": true, "finally": true, "for": true,
	"function": true, "if": true, "import": true, "in": true, "instanceof": true,
	"new": true, "return": true, "super": true, "switch": true, "this": true,
	"throw": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "yield": true, "let": true, "static": true,
	"enum": true, "await": true, "null": true, "true": true, "false": true,
}

// Words that are keywords only in some positions
var contextual = map[string]bool{
	"of": true, "as": true, "from": true, "get": true, "set": true,
	"async": true, "target": true, "meta": true,
}

var statementKeywords = map[string]bool{
	"const": true, "let": true, "var": true, "function": true, "class": true,
	"return": true, "if": true, "for": true, "while": true, "do": true,
	"switch": true, "throw": true, "try": true, "export": true, "import": true,
}

func (a *analysis) tok(i int) token {
	if i < 0 || i >= len(a.toks) {
		return token{kind: tokPunct}
	}
	return a.toks[i]
}

func (a *analysis) isOpener(i int) bool {
	t := a.toks[i]
	if t.kind == tokJSXOpen {
		return true
	}
	return t.kind == tokPunct && (t.text == "(" || t.text == "[" || t.text == "{" || t.text == "${")
}

func (a *analysis) isCloser(i int) bool {
	t := a.toks[i]
	if t.kind == tokJSXSelfClose || t.kind == tokJSXCloseEnd {
		return true
	}
	return t.kind == tokPunct && (t.text == ")" || t.text == "]" || t.text == "}")
}

// pairBrackets matches (), [], {}, ${} and JSX elements. A closer shares
// its opener's parent; tokens in between have the opener as parent.
func (a *analysis) pairBrackets() {
	var stack []int
	for i := range a.toks {
		a.match[i] = -1
		a.parent[i] = -1
		a.funcOf[i] = -1
		if len(stack) > 0 {
			a.parent[i] = stack[len(stack)-1]
		}
		switch {
		case a.isOpener(i):
			stack = append(stack, i)
		case a.isCloser(i):
			if len(stack) == 0 {
				continue
			}
			o := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			a.match[o] = i
			a.match[i] = o
			a.parent[i] = a.parent[o]
		}
	}
}

// exprEnd reports whether token i can end an expression
func (a *analysis) exprEnd(i int) bool {
	if i < 0 {
		return false
	}
	t := a.toks[i]
	switch t.kind {
	case tokIdent:
		switch t.text {
		case "this", "super", "null", "true", "false":
			return true
		}
		return !reserved[t.text] && !contextual[t.text]
	case tokNumber, tokString, tokRegex, tokJSXSelfClose, tokJSXCloseEnd:
		return true
	case tokTemplate:
		return strings.HasSuffix(t.text, "`")
	case tokPunct:
		switch t.text {
		case ")", "]", "}", "++", "--":
			return true
		}
	}
	return false
}

// startsStatement reports whether token i could begin a new statement
// after an automatic semicolon
func (a *analysis) startsStatement(i int) bool {
	t := a.toks[i]
	switch t.kind {
	case tokIdent:
		return t.text != "in" && t.text != "instanceof" && t.text != "of" && t.text != "as"
	case tokPunct:
		return t.text == "++" || t.text == "--"
	}
	return false
}

func (a *analysis) classifyBraces() {
	for i, t := range a.toks {
		if t.kind != tokPunct {
			continue
		}
		switch {
		case t.text == "${":
			a.braces[i] = braceTemplate
		case t.text == "{" && t.jsx:
			a.braces[i] = braceJSX
		case t.text == "{":
			a.braces[i] = a.classifyBrace(i)
		}
	}
}

func (a *analysis) classifyBrace(i int) braceKind {
	if i == 0 {
		return braceBlock
	}
	p := a.toks[i-1]
	switch p.kind {
	case tokPunct:
		switch p.text {
		case ")":
			if o := a.match[i-1]; o > 0 && a.toks[o-1].kind == tokIdent {
				switch kw := a.toks[o-1].text; kw {
				case "if", "for", "while", "switch", "catch", "with":
					a.owner[i] = kw
					return braceBlock
				}
			}
			return braceFuncBody
		case "=>":
			return braceFuncBody
		case "{":
			switch a.braces[i-1] {
			case braceBlock, braceFuncBody:
				return braceBlock
			}
			return braceObject
		case "}", ";":
			return braceBlock
		case ":":
			if a.caseColon(i - 1) {
				return braceBlock
			}
			return braceObject
		}
		return braceObject
	case tokIdent:
		switch p.text {
		case "else", "try", "finally", "do":
			a.owner[i] = p.text
			return braceBlock
		case "const", "let", "var":
			return bracePattern
		}
		if exprKeywords[p.text] {
			return braceObject
		}
		if a.classHeader(i) {
			return braceClass
		}
		return braceBlock
	}
	return braceObject
}

func (a *analysis) caseColon(c int) bool {
	lvl := a.parent[c]
	for k := c - 1; k > lvl && k >= 0; k-- {
		if a.parent[k] != lvl {
			continue
		}
		t := a.toks[k]
		switch {
		case t.is(tokIdent, "case"), t.is(tokIdent, "default"):
			return true
		case t.punct("?"), t.punct(";"), t.punct("{"), t.punct("}"), t.punct(","):
			return false
		}
	}
	return false
}

func (a *analysis) classHeader(i int) bool {
	lvl := a.parent[i]
	for k, steps := i-1, 0; k > lvl && k >= 0 && steps < 12; k, steps = k-1, steps+1 {
		t := a.toks[k]
		if t.is(tokIdent, "class") {
			return true
		}
		if t.punct(";") || t.punct("{") || t.punct("}") || t.punct("=") || t.punct("(") {
			return false
		}
	}
	return false
}

// statementStart reports whether token s begins a statement
func (a *analysis) statementStart(s int) bool {
	if s == 0 {
		return true
	}
	p := a.toks[s-1]
	switch {
	case p.punct(";"), p.punct("}"):
		return true
	case p.punct("{"):
		k := a.braces[s-1]
		return k == braceBlock || k == braceFuncBody
	case p.is(tokIdent, "export"), p.is(tokIdent, "default"):
		return true
	}
	return a.toks[s].nlBefore && a.exprEnd(s-1)
}

// expressionEnd returns the last token of the expression starting at b,
// where lvl is the bracket level the expression lives on
func (a *analysis) expressionEnd(b, lvl int) int {
	last := b - 1
	for j := b; j < len(a.toks); {
		t := a.toks[j]
		if a.parent[j] != lvl {
			break
		}
		if t.punct(",") || t.punct(";") {
			break
		}
		if j > b && t.nlBefore && t.kind == tokIdent && statementKeywords[t.text] && a.exprEnd(j-1) {
			break
		}
		if a.isOpener(j) && a.match[j] >= 0 {
			last = a.match[j]
			j = a.match[j] + 1
			continue
		}
		last = j
		j++
	}
	return last
}

func (a *analysis) findFunctions() {
	for i, t := range a.toks {
		switch {
		case t.is(tokIdent, "function"):
			a.addFunctionKeyword(i)
		case t.punct("=>"):
			a.addArrow(i)
		case t.kind == tokIdent && a.tok(i+1).punct("("):
			a.addMethod(i)
		}
	}
	sort.SliceStable(a.funcs, func(i, j int) bool {
		return a.funcs[i].rangeStart() < a.funcs[j].rangeStart()
	})
	for idx, f := range a.funcs {
		a.funcByStart[f.start] = idx
	}
}

func (a *analysis) addFunctionKeyword(i int) {
	n := len(a.toks)
	f := &function{start: i, nameTok: -1, paramsOpen: -1, parent: -1}
	if a.tok(i - 1).is(tokIdent, "async") {
		f.start = i - 1
	}
	j := i + 1
	if a.tok(j).punct("*") {
		j++
	}
	if j < n && a.toks[j].kind == tokIdent && !reserved[a.toks[j].text] {
		f.name = a.toks[j].text
		f.nameTok = j
		j++
	}
	if j >= n || !a.toks[j].punct("(") || a.match[j] < 0 {
		return
	}
	f.paramsOpen, f.paramsClose = j, a.match[j]
	b := a.match[j] + 1
	if b >= n || !a.toks[b].punct("{") || a.match[b] < 0 {
		return
	}
	f.bodyStart, f.bodyEnd, f.block = b, a.match[b], true
	f.decl = f.nameTok >= 0 && a.statementStart(f.start)
	if f.name == "" {
		f.name = a.inferName(f.start)
	}
	a.markCallback(f)
	a.funcs = append(a.funcs, f)
}

func (a *analysis) addArrow(i int) {
	n := len(a.toks)
	f := &function{arrow: true, nameTok: -1, parent: -1}
	p := i - 1
	switch {
	case p < 0:
		return
	case a.toks[p].punct(")") && a.match[p] >= 0:
		f.paramsOpen, f.paramsClose = a.match[p], p
		f.start = a.match[p]
	case a.toks[p].kind == tokIdent:
		f.paramsOpen, f.paramsClose = p, p
		f.start = p
	default:
		return
	}
	if a.tok(f.start - 1).is(tokIdent, "async") {
		f.start--
	}
	b := i + 1
	if b >= n {
		return
	}
	if a.toks[b].punct("{") && a.match[b] >= 0 {
		f.bodyStart, f.bodyEnd, f.block = b, a.match[b], true
	} else {
		f.bodyStart = b
		f.bodyEnd = a.expressionEnd(b, a.parent[i])
	}
	f.name = a.inferName(f.start)
	if f.name != "" && f.start >= 2 {
		if lvl := a.parent[f.start-2]; lvl >= 0 && a.braces[lvl] == braceClass {
			f.classMember = true
		}
	}
	a.markCallback(f)
	a.funcs = append(a.funcs, f)
}

// addMethod handles shorthand methods in object literals and class bodies
func (a *analysis) addMethod(i int) {
	name := a.toks[i].text
	if reserved[name] {
		return
	}
	if p := a.tok(i - 1); p.is(tokIdent, "function") || p.punct("*") && a.tok(i-2).is(tokIdent, "function") || p.punct(".") {
		return
	}
	lvl := a.parent[i]
	if lvl < 0 {
		return
	}
	kind, ok := a.braces[lvl]
	if !ok || kind != braceObject && kind != braceClass {
		return
	}
	o := i + 1
	c := a.match[o]
	if c < 0 || !a.tok(c+1).punct("{") || a.match[c+1] < 0 {
		return
	}
	f := &function{
		name:        name,
		nameTok:     i,
		method:      true,
		classMember: kind == braceClass,
		start:       i,
		paramsOpen:  o,
		paramsClose: c,
		bodyStart:   c + 1,
		bodyEnd:     a.match[c+1],
		block:       true,
		parent:      -1,
	}
	a.keys[i] = true
	a.funcs = append(a.funcs, f)
}

// inferName names an anonymous function from `const Name = ...`,
// `Name = ...` or an object property `name: ...`
func (a *analysis) inferName(s int) string {
	if s < 2 {
		return ""
	}
	prev, name := a.toks[s-1], a.toks[s-2]
	if name.kind != tokIdent || reserved[name.text] {
		return ""
	}
	if prev.punct("=") {
		return name.text
	}
	if prev.punct(":") {
		if k := a.tok(s - 3); k.punct("{") || k.punct(",") {
			return name.text
		}
	}
	return ""
}

// markCallback flags functions passed directly as call arguments.
// Components wrapped in memo or forwardRef take the declared name instead.
func (a *analysis) markCallback(f *function) {
	s := f.start
	if s < 1 {
		return
	}
	var paren int
	switch p := a.toks[s-1]; {
	case p.punct("("):
		paren = s - 1
	case p.punct(","):
		paren = a.parent[s-1]
	default:
		return
	}
	if paren < 1 || !a.toks[paren].punct("(") {
		return
	}
	c := a.toks[paren-1]
	if c.kind == tokIdent && reserved[c.text] {
		return
	}
	if c.kind != tokIdent && !c.punct(")") && !c.punct("]") {
		return
	}
	f.callback = true
	if c.kind == tokIdent {
		f.callee = c.text
	}
	if f.callee == "memo" || f.callee == "forwardRef" {
		calleeStart := paren - 1
		for calleeStart >= 2 && a.toks[calleeStart-1].punct(".") && a.toks[calleeStart-2].kind == tokIdent {
			calleeStart -= 2
		}
		f.callback = false
		if f.name == "" {
			f.name = a.inferName(calleeStart)
		}
	}
}

// scopeFunctions assigns every token its innermost function
func (a *analysis) scopeFunctions() {
	for idx, f := range a.funcs {
		start := f.rangeStart()
		if start < 0 || f.bodyEnd < start {
			continue
		}
		f.parent = a.funcOf[start]
		for k := start; k <= f.bodyEnd && k < len(a.toks); k++ {
			a.funcOf[k] = idx
		}
	}
	for i, t := range a.toks {
		if !t.is(tokIdent, "return") {
			continue
		}
		if f := a.funcOf[i]; f >= 0 && i >= a.funcs[f].bodyStart {
			a.funcs[f].returns = append(a.funcs[f].returns, i)
		}
	}
}

// within reports whether function f is g or nested inside g
func (a *analysis) within(f, g int) bool {
	for f >= 0 {
		if f == g {
			return true
		}
		f = a.funcs[f].parent
	}
	return false
}

func (a *analysis) bind(i int, kind bindKind) *binding {
	b := &binding{
		name:     a.toks[i].text,
		tok:      i,
		kind:     kind,
		fn:       a.funcOf[i],
		preamble: a.toks[i].line <= a.preambleLines,
	}
	a.declTok[i] = true
	a.bindings = append(a.bindings, b)
	a.byName[b.name] = append(a.byName[b.name], b)
	return b
}

func (a *analysis) collectBindings() {
	for i, t := range a.toks {
		if t.kind != tokIdent || a.tok(i-1).punct(".") {
			continue
		}
		switch t.text {
		case "import":
			if !a.tok(i + 1).punct("(") {
				a.bindImport(i)
			}
		case "export":
			if a.tok(i + 1).punct("{") {
				a.markExportList(i + 1)
			}
		case "const", "let", "var":
			a.bindDeclarators(i)
		case "class":
			if n := a.tok(i + 1); n.kind == tokIdent && !reserved[n.text] {
				a.bind(i+1, bindClass)
			}
		case "catch":
			if a.tok(i + 1).punct("(") {
				a.bindPattern(i+1, bindCatch)
			}
		}
	}

	for _, f := range a.funcs {
		if f.nameTok >= 0 && !f.method {
			b := a.bind(f.nameTok, bindFunction)
			b.decl = f.decl
		}
		switch {
		case f.paramsOpen < 0:
		case a.toks[f.paramsOpen].punct("("):
			f.params = a.bindPattern(f.paramsOpen, bindParam)
		default:
			f.params = []*binding{a.bind(f.paramsOpen, bindParam)}
		}
	}
}

func (a *analysis) bindImport(i int) {
	for j := i + 1; j < len(a.toks); {
		t := a.toks[j]
		switch {
		case t.kind == tokString, t.punct(";"):
			return
		case t.is(tokIdent, "from"):
			a.keys[j] = true
			return
		case t.punct("*"):
			if a.tok(j+1).is(tokIdent, "as") && a.tok(j+2).kind == tokIdent {
				a.keys[j+1] = true
				a.bind(j+2, bindImport)
				j += 3
				continue
			}
			j++
		case t.punct("{"):
			close := a.match[j]
			if close < 0 {
				return
			}
			for k := j + 1; k < close; k++ {
				if a.toks[k].kind != tokIdent {
					continue
				}
				if a.tok(k+1).is(tokIdent, "as") && a.tok(k+2).kind == tokIdent {
					a.keys[k] = true
					a.keys[k+1] = true
					a.bind(k+2, bindImport)
					k += 2
					continue
				}
				a.bind(k, bindImport)
			}
			j = close + 1
		case t.kind == tokIdent:
			a.bind(j, bindImport)
			j++
		default:
			j++
		}
	}
}

// markExportList treats the names after `as` in `export { a as b }` as labels
func (a *analysis) markExportList(open int) {
	close := a.match[open]
	for k := open + 1; k < close; k++ {
		if a.toks[k].is(tokIdent, "as") {
			a.keys[k] = true
			if k+1 < close {
				a.keys[k+1] = true
			}
		}
	}
}

// Hooks whose results (or second tuple element) keep a stable identity
var stableHooks = map[string]bool{
	"useState": true, "useReducer": true, "useTransition": true, "useRef": true,
}

func (a *analysis) bindDeclarators(i int) {
	n := len(a.toks)
	lvl := a.parent[i]
	for j := i + 1; j < n; {
		t := a.toks[j]
		var targets []*binding
		open := -1
		switch {
		case t.kind == tokIdent && !reserved[t.text]:
			targets = []*binding{a.bind(j, bindVar)}
			j++
		case t.punct("{") || t.punct("["):
			open = j
			targets = a.bindPattern(j, bindVar)
			if a.match[j] < 0 {
				return
			}
			j = a.match[j] + 1
		default:
			return
		}

		if !a.tok(j).punct("=") {
			if a.tok(j).punct(",") {
				j++
				continue
			}
			return
		}
		for _, b := range targets {
			b.hasInit = true
		}
		a.markStable(targets, open, j+1)
		j = a.expressionEnd(j+1, lvl) + 1
		if a.tok(j).punct(",") {
			j++
			continue
		}
		return
	}
}

// markStable flags refs and state setters so dependency checks skip them
func (a *analysis) markStable(targets []*binding, open, init int) {
	callee := init
	if a.tok(init).is(tokIdent, "React") && a.tok(init+1).punct(".") {
		callee = init + 2
	}
	name := a.tok(callee).text
	if !stableHooks[name] || !a.tok(callee+1).punct("(") {
		return
	}
	if name == "useRef" {
		if open < 0 && len(targets) == 1 {
			targets[0].stable = true
		}
		return
	}
	if open < 0 || !a.toks[open].punct("[") {
		return
	}
	// The second tuple element: everything after the first top-level comma
	comma := -1
	for k := open + 1; k < a.match[open]; k++ {
		if a.parent[k] == open && a.toks[k].punct(",") {
			comma = k
			break
		}
	}
	if comma < 0 {
		return
	}
	for _, b := range targets {
		if b.tok > comma {
			b.stable = true
		}
	}
}

// bindPattern binds every name in a destructuring pattern or parameter
// list opened at open. Default values are skipped and stay references.
func (a *analysis) bindPattern(open int, kind bindKind) []*binding {
	close := a.match[open]
	if close < 0 {
		return nil
	}
	a.patterns[open] = true
	obj := a.toks[open].punct("{")

	var out []*binding
	for k := open + 1; k < close; {
		t := a.toks[k]
		switch {
		case t.punct("..."), t.punct(","):
			k++
		case t.punct("="):
			k = a.skipDefault(k+1, open)
		case obj && a.tok(k+1).punct(":") && (t.kind == tokIdent || t.kind == tokString || t.kind == tokNumber):
			if t.kind == tokIdent {
				a.keys[k] = true
			}
			k, out = a.bindTarget(k+2, kind, out)
		case obj && t.punct("["):
			if a.match[k] < 0 {
				return out
			}
			k = a.match[k] + 1
			if a.tok(k).punct(":") {
				k, out = a.bindTarget(k+1, kind, out)
			}
		case t.kind == tokIdent && !reserved[t.text]:
			out = append(out, a.bind(k, kind))
			k++
		case t.punct("{") || t.punct("["):
			out = append(out, a.bindPattern(k, kind)...)
			if a.match[k] < 0 {
				return out
			}
			k = a.match[k] + 1
		case a.isOpener(k) && a.match[k] > k:
			k = a.match[k] + 1
		default:
			k++
		}
	}
	return out
}

func (a *analysis) bindTarget(k int, kind bindKind, out []*binding) (int, []*binding) {
	t := a.tok(k)
	switch {
	case t.kind == tokIdent && !reserved[t.text]:
		return k + 1, append(out, a.bind(k, kind))
	case t.punct("{") || t.punct("["):
		out = append(out, a.bindPattern(k, kind)...)
		if a.match[k] < 0 {
			return len(a.toks), out
		}
		return a.match[k] + 1, out
	}
	return k, out
}

func (a *analysis) skipDefault(k, open int) int {
	close := a.match[open]
	for k < close {
		if a.parent[k] == open && a.toks[k].punct(",") {
			return k
		}
		if a.isOpener(k) && a.match[k] > k {
			k = a.match[k] + 1
			continue
		}
		k++
	}
	return close
}

// markKeys flags property names in object literals and member names in class bodies
func (a *analysis) markKeys() {
	for i, t := range a.toks {
		if t.kind != tokIdent || a.keys[i] || a.declTok[i] {
			continue
		}
		lvl := a.parent[i]
		if lvl < 0 || a.patterns[lvl] {
			continue
		}
		prev, next := a.tok(i-1), a.tok(i+1)
		switch a.braces[lvl] {
		case braceObject:
			if !a.toks[lvl].punct("{") {
				continue
			}
			memberStart := i-1 == lvl || prev.punct(",") && a.parent[i-1] == lvl
			if memberStart && next.punct(":") {
				a.keys[i] = true
			}
			// get/set/async modifiers before a method name
			if memberStart && contextual[t.text] && next.kind == tokIdent {
				a.keys[i] = true
			}
		case braceClass:
			if !a.toks[lvl].punct("{") {
				continue
			}
			memberStart := i-1 == lvl || prev.punct(";") || prev.punct("}") || t.nlBefore ||
				prev.is(tokIdent, "static") || prev.is(tokIdent, "async") || prev.is(tokIdent, "get") || prev.is(tokIdent, "set")
			if memberStart && (next.punct("=") || next.punct("(") || next.punct(";") || next.kind == tokIdent) {
				a.keys[i] = true
			}
		}
	}
}

func (a *analysis) collectRefs() {
	for i, t := range a.toks {
		switch t.kind {
		case tokIdent:
			if a.declTok[i] || a.keys[i] || reserved[t.text] {
				continue
			}
			if p := a.tok(i - 1); i > 0 && (p.punct(".") || p.punct("?.")) {
				continue
			}
			if contextual[t.text] && len(a.byName[t.text]) == 0 {
				continue
			}
			a.refs = append(a.refs, ref{name: t.text, tok: i})
			a.refNames[t.text] = true
		case tokJSXName:
			root := t.text
			if dot := strings.IndexByte(root, '.'); dot >= 0 {
				root = root[:dot]
			} else if root[0] < 'A' || root[0] > 'Z' {
				continue
			}
			if root == "" || root == "this" || strings.ContainsAny(root, "-:") {
				continue
			}
			a.refs = append(a.refs, ref{name: root, tok: i, jsx: true})
			a.refNames[root] = true
		}
	}
}

func (a *analysis) collectElements() {
	for i, t := range a.toks {
		if t.kind != tokJSXOpen {
			continue
		}
		e := &jsxElement{open: i}
		close := a.match[i]
		tagEnd := -1
	attrs:
		for k := i + 1; k < len(a.toks) && (close < 0 || k <= close); k++ {
			if a.parent[k] != i && k != close {
				continue
			}
			tk := a.toks[k]
			switch tk.kind {
			case tokJSXName:
				e.name = tk.text
			case tokJSXAttr:
				attr := jsxAttr{name: tk.text, tok: k}
				if a.tok(k+1).punct("=") && a.tok(k+2).kind == tokJSXAttrString {
					attr.str = true
				}
				e.attrs = append(e.attrs, attr)
			case tokPunct:
				if tk.punct("{") && a.tok(k+1).punct("...") && !a.tok(k-1).punct("=") {
					e.spread = true
				}
				if a.match[k] > k {
					k = a.match[k]
				}
			case tokJSXSelfClose:
				e.selfClosing = true
				break attrs
			case tokJSXTagEnd:
				tagEnd = k
				break attrs
			}
		}

		if tagEnd >= 0 && close > tagEnd {
			for k := tagEnd + 1; k < close; k++ {
				if a.parent[k] != i {
					continue
				}
				tk := a.toks[k]
				if tk.kind == tokJSXCloseOpen {
					break
				}
				if tk.kind == tokJSXText || tk.kind == tokJSXOpen || tk.punct("{") && a.match[k] != k+1 {
					e.children = true
					break
				}
			}
		}
		a.elems = append(a.elems, e)
	}
}
