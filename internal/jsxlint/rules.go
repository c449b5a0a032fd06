package jsxlint

import (
	"fmt"
	"sort"
	"strings"
)

type finding struct {
	rule    string
	line    int
	col     int
	message string
	warning bool
}

func (a *analysis) errorAt(rule string, i int, msg string) finding {
	t := a.toks[i]
	return finding{rule: rule, line: t.line, col: t.col, message: msg}
}

func (a *analysis) warnAt(rule string, i int, msg string) finding {
	f := a.errorAt(rule, i, msg)
	f.warning = true
	return f
}

// run applies every rule and returns the findings in source order
func (a *analysis) run() []finding {
	var out []finding
	out = append(out, a.checkUndefined()...)
	out = append(out, a.checkUnused()...)
	out = append(out, a.checkDupeArgs()...)
	out = append(out, a.checkAssignments()...)
	out = append(out, a.checkObjCalls()...)
	out = append(out, a.checkSparseArrays()...)
	out = append(out, a.checkMultiline()...)
	out = append(out, a.checkUnreachable()...)
	out = append(out, a.checkJSX()...)
	out = append(out, a.checkClassComponents()...)
	out = append(out, a.checkHooks()...)
	out = append(out, a.checkEffectDeps()...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].line != out[j].line {
			return out[i].line < out[j].line
		}
		return out[i].col < out[j].col
	})
	return out
}

func (a *analysis) checkUndefined() []finding {
	var out []finding
	reported := make(map[string]bool)
	for _, r := range a.refs {
		if len(a.byName[r.name]) > 0 || a.globals[r.name] || reported[r.name] {
			continue
		}
		if a.tok(r.tok - 1).is(tokIdent, "typeof") {
			continue
		}
		reported[r.name] = true
		rule := "no-undef"
		if r.jsx {
			rule = "react/jsx-no-undef"
		}
		out = append(out, a.errorAt(rule, r.tok, fmt.Sprintf("'%s' is not defined.", r.name)))
	}
	return out
}

func (a *analysis) checkUnused() []finding {
	var out []finding
	for _, b := range a.bindings {
		if b.preamble || b.kind == bindParam || b.kind == bindCatch || a.refNames[b.name] {
			continue
		}
		msg := fmt.Sprintf("'%s' is defined but never used.", b.name)
		if b.hasInit {
			msg = fmt.Sprintf("'%s' is assigned a value but never used.", b.name)
		}
		out = append(out, a.warnAt("no-unused-vars", b.tok, msg))
	}
	return out
}

func (a *analysis) checkDupeArgs() []finding {
	var out []finding
	for _, f := range a.funcs {
		seen := make(map[string]bool, len(f.params))
		for _, p := range f.params {
			if seen[p.name] {
				out = append(out, a.errorAt("no-dupe-args", p.tok, fmt.Sprintf("Duplicate param '%s'.", p.name)))
			}
			seen[p.name] = true
		}
	}
	return out
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"**=": true, "<<=": true, ">>=": true, ">>>=": true, "&=": true, "|=": true,
	"^=": true, "&&=": true, "||=": true, "??=": true,
}

// assigned reports whether reference token i is the target of an
// assignment or update
func (a *analysis) assigned(i int) bool {
	next, prev := a.tok(i+1), a.tok(i-1)
	if next.kind == tokPunct && (assignOps[next.text] || next.text == "++" || next.text == "--") {
		return true
	}
	return prev.punct("++") || prev.punct("--")
}

// checkAssignments covers reassigned function declarations and imports.
// Imports assigned directly are also rejected by the parser.
func (a *analysis) checkAssignments() []finding {
	var out []finding
	for _, r := range a.refs {
		if r.jsx || !a.assigned(r.tok) {
			continue
		}
		for _, b := range a.byName[r.name] {
			switch {
			case b.kind == bindFunction && b.decl:
				out = append(out, a.errorAt("no-func-assign", r.tok, fmt.Sprintf("'%s' is a function.", r.name)))
			case b.kind == bindImport:
				out = append(out, a.errorAt("no-import-assign", r.tok, fmt.Sprintf("'%s' is read-only.", r.name)))
			default:
				continue
			}
			break
		}
	}
	return out
}

var nonCallableGlobals = map[string]bool{
	"Math": true, "JSON": true, "Reflect": true, "Atomics": true, "Intl": true,
}

func (a *analysis) checkObjCalls() []finding {
	var out []finding
	for _, r := range a.refs {
		if !nonCallableGlobals[r.name] || len(a.byName[r.name]) > 0 || !a.tok(r.tok+1).punct("(") {
			continue
		}
		if a.tok(r.tok - 1).is(tokIdent, "new") {
			out = append(out, a.errorAt("no-obj-calls", r.tok, fmt.Sprintf("'%s' is not a constructor.", r.name)))
			continue
		}
		out = append(out, a.errorAt("no-obj-calls", r.tok, fmt.Sprintf("'%s' is not a function.", r.name)))
	}
	return out
}

func (a *analysis) checkSparseArrays() []finding {
	var out []finding
	for i, t := range a.toks {
		if !t.punct("[") || a.patterns[i] || a.match[i] < 0 {
			continue
		}
		// Member access, not an array literal
		if a.exprEnd(i-1) && !t.nlBefore {
			continue
		}
		close := a.match[i]
		if a.tok(close + 1).punct("=") {
			continue
		}
		prevComma := true
		for k := i + 1; k < close; k++ {
			if a.parent[k] != i {
				continue
			}
			if a.toks[k].punct(",") {
				if prevComma {
					out = append(out, a.errorAt("no-sparse-arrays", i, "Unexpected comma in middle of array."))
					break
				}
				prevComma = true
				continue
			}
			prevComma = false
		}
	}
	return out
}

func (a *analysis) checkMultiline() []finding {
	var out []finding
	for i, t := range a.toks {
		if i == 0 || !t.nlBefore || !a.exprEnd(i-1) {
			continue
		}
		var msg string
		switch {
		case t.punct("("):
			msg = "Unexpected newline between function and ( of function call."
		case t.punct("["):
			msg = "Unexpected newline between object and [ of property access."
		case t.kind == tokTemplate && strings.HasPrefix(t.text, "`"):
			msg = "Unexpected newline between template tag and template literal."
		default:
			continue
		}
		// A closing brace of a block or function body ends the statement
		if p := i - 1; a.toks[p].punct("}") && a.match[p] >= 0 {
			if k := a.braces[a.match[p]]; k != braceObject && k != braceTemplate {
				continue
			}
		}
		out = append(out, a.errorAt("no-unexpected-multiline", i, msg))
	}
	return out
}

func (a *analysis) checkUnreachable() []finding {
	var out []finding
	for i, t := range a.toks {
		if t.kind != tokIdent || a.keys[i] || a.tok(i-1).punct(".") {
			continue
		}
		switch t.text {
		case "return", "throw", "break", "continue":
		default:
			continue
		}
		if a.braceless(i) {
			continue
		}
		lvl := a.parent[i]
		if lvl >= 0 {
			if k := a.braces[lvl]; !a.toks[lvl].punct("{") || k != braceBlock && k != braceFuncBody {
				continue
			}
		}
		end := a.statementEnd(i)
		if end >= len(a.toks) || a.parent[end] != lvl {
			continue
		}
		nt := a.toks[end]
		if nt.kind == tokIdent && (nt.text == "case" || nt.text == "default" || nt.text == "function") || nt.punct(";") {
			continue
		}
		out = append(out, a.errorAt("no-unreachable", end, "Unreachable code."))
	}
	return out
}

// braceless reports whether token i is the whole body of an if, loop or else
func (a *analysis) braceless(i int) bool {
	p := a.tok(i - 1)
	if p.is(tokIdent, "else") || p.is(tokIdent, "do") {
		return true
	}
	if p.punct(")") && a.match[i-1] > 0 {
		switch a.toks[a.match[i-1]-1].text {
		case "if", "for", "while", "with":
			return a.toks[a.match[i-1]-1].kind == tokIdent
		}
	}
	return false
}

// statementEnd returns the index of the first token after the jump statement at i
func (a *analysis) statementEnd(i int) int {
	lvl := a.parent[i]
	kw := a.toks[i].text
	j := i + 1
	if kw == "break" || kw == "continue" {
		if t := a.tok(j); t.kind == tokIdent && !t.nlBefore && !reserved[t.text] {
			j++
		}
		if a.tok(j).punct(";") {
			j++
		}
		return j
	}
	for j < len(a.toks) {
		t := a.toks[j]
		if a.parent[j] != lvl {
			return j
		}
		if t.punct(";") {
			return j + 1
		}
		if t.nlBefore && (j == i+1 && kw == "return" || j > i+1 && a.exprEnd(j-1) && a.startsStatement(j)) {
			return j
		}
		if a.isOpener(j) && a.match[j] > j {
			j = a.match[j] + 1
			continue
		}
		j++
	}
	return j
}

func (a *analysis) checkJSX() []finding {
	var out []finding
	for _, e := range a.elems {
		seen := make(map[string]bool, len(e.attrs))
		for _, attr := range e.attrs {
			if seen[attr.name] {
				out = append(out, a.errorAt("react/jsx-no-duplicate-props", attr.tok, "No duplicate props allowed"))
			}
			seen[attr.name] = true
		}

		if attr, ok := e.attr("children"); ok {
			out = append(out, a.errorAt("react/no-children-prop", attr.tok,
				"Do not pass children as props. Instead, nest children between the opening and closing tags."))
		}
		if _, danger := e.attr("dangerouslySetInnerHTML"); danger {
			if _, child := e.attr("children"); child || e.children {
				out = append(out, a.errorAt("react/no-danger-with-children", e.open,
					"Only set one of `children` or `props.dangerouslySetInnerHTML`"))
			}
		}
		if attr, ok := e.attr("ref"); ok && attr.str {
			out = append(out, a.errorAt("react/no-string-refs", attr.tok,
				"Using string literals in ref attributes is deprecated."))
		}
		if a.inIterator(e) && e.name != "" {
			if _, ok := e.attr("key"); !ok && !e.spread {
				out = append(out, a.errorAt("react/jsx-key", e.open, `Missing "key" prop for element in iterator`))
			}
		}
	}
	return out
}

// inIterator reports whether element e is the value returned by a .map callback
func (a *analysis) inIterator(e *jsxElement) bool {
	f := a.funcOf[e.open]
	if f < 0 {
		return false
	}
	fn := a.funcs[f]
	if !fn.callback || fn.callee != "map" || !a.tok(fn.start-1).punct("(") {
		return false
	}
	if dot := a.tok(fn.start - 3); !dot.punct(".") && !dot.punct("?.") {
		return false
	}
	if a.parent[e.open] >= 0 && a.toks[a.parent[e.open]].kind == tokJSXOpen {
		return false
	}
	if !fn.block {
		return e.open == fn.bodyStart || a.tok(fn.bodyStart).punct("(") && e.open == fn.bodyStart+1
	}
	for _, r := range fn.returns {
		next := r + 1
		if a.tok(next).punct("(") {
			next++
		}
		if next == e.open {
			return true
		}
	}
	return false
}

func (a *analysis) checkClassComponents() []finding {
	var out []finding
	n := len(a.toks)
	for i, t := range a.toks {
		if !t.is(tokIdent, "this") || !a.tok(i+1).punct(".") {
			continue
		}
		switch a.tok(i + 2).text {
		case "refs":
			out = append(out, a.errorAt("react/no-string-refs", i, "Using this.refs is deprecated."))
		case "state":
			j := i + 3
			for j < n {
				if a.toks[j].punct(".") && a.tok(j+1).kind == tokIdent {
					j += 2
					continue
				}
				if a.toks[j].punct("[") && a.match[j] > j {
					j = a.match[j] + 1
					continue
				}
				break
			}
			if j >= n || a.toks[j].kind != tokPunct || !assignOps[a.toks[j].text] && a.toks[j].text != "++" && a.toks[j].text != "--" {
				continue
			}
			f := a.funcOf[i]
			for f >= 0 && a.funcs[f].arrow {
				f = a.funcs[f].parent
			}
			if f >= 0 && a.funcs[f].method && a.funcs[f].name == "constructor" {
				continue
			}
			out = append(out, a.errorAt("react/no-direct-mutation-state", i, "Do not mutate state directly. Use setState()."))
		}
	}

	for _, f := range a.funcs {
		if !f.method || !f.classMember || f.name != "render" {
			continue
		}
		hasReturn := false
		for _, r := range f.returns {
			if a.funcOf[r] >= 0 && a.funcs[a.funcOf[r]] == f {
				hasReturn = true
				break
			}
		}
		if !hasReturn {
			out = append(out, a.errorAt("react/require-render-return", f.nameTok, "Your render method should have a return statement"))
		}
	}
	return out
}
