package jsxlint

import (
	"fmt"
	"sort"
	"strings"
)

const hooksSuffix = "React Hooks must be called in a React function component or a custom React Hook function."

const orderSuffix = "React Hooks must be called in the exact same order in every component render."

func isHookName(s string) bool {
	if len(s) < 4 || !strings.HasPrefix(s, "use") {
		return false
	}
	c := s[3]
	return c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isComponentName(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}

type hookCall struct {
	tok     int
	display string
}

// hookCalls returns every call to useX or React.useX
func (a *analysis) hookCalls() []hookCall {
	var out []hookCall
	for i, t := range a.toks {
		if t.kind != tokIdent || !isHookName(t.text) || !a.tok(i+1).punct("(") {
			continue
		}
		if a.declTok[i] || a.keys[i] {
			continue
		}
		display := t.text
		if a.tok(i - 1).punct(".") {
			if !a.tok(i - 2).is(tokIdent, "React") {
				continue
			}
			display = "React." + t.text
		}
		out = append(out, hookCall{tok: i, display: display})
	}
	return out
}

// componentLike reports whether hooks may be called directly in function f
func (a *analysis) componentLike(f int) bool {
	fn := a.funcs[f]
	if fn.classMember {
		return false
	}
	if fn.name != "" {
		return isComponentName(fn.name) || isHookName(fn.name)
	}
	return !fn.callback && fn.parent < 0
}

func (a *analysis) insideComponent(f int) bool {
	for p := a.funcs[f].parent; p >= 0; p = a.funcs[p].parent {
		if a.componentLike(p) {
			return true
		}
	}
	return false
}

func (a *analysis) checkHooks() []finding {
	var out []finding
	for _, h := range a.hookCalls() {
		f := a.funcOf[h.tok]
		if f < 0 {
			out = append(out, a.errorAt("react-hooks/rules-of-hooks", h.tok,
				fmt.Sprintf("React Hook %q cannot be called at the top level. %s", h.display, hooksSuffix)))
			continue
		}
		fn := a.funcs[f]
		if !a.componentLike(f) {
			var msg string
			switch {
			case fn.classMember:
				msg = fmt.Sprintf("React Hook %q cannot be called in a class component. %s", h.display, hooksSuffix)
			case fn.name != "":
				msg = fmt.Sprintf("React Hook %q is called in function %q that is neither a React function component nor a custom React Hook function. React component names must start with an uppercase letter. React Hook names must start with the word \"use\".", h.display, fn.name)
			case a.insideComponent(f):
				msg = fmt.Sprintf("React Hook %q cannot be called inside a callback. %s", h.display, hooksSuffix)
			default:
				continue
			}
			out = append(out, a.errorAt("react-hooks/rules-of-hooks", h.tok, msg))
			continue
		}

		cond, loop := a.hookContext(h.tok, f)
		switch {
		case loop:
			out = append(out, a.errorAt("react-hooks/rules-of-hooks", h.tok,
				fmt.Sprintf("React Hook %q may be executed more than once. Possibly because it is called in a loop. %s", h.display, orderSuffix)))
		case cond:
			out = append(out, a.errorAt("react-hooks/rules-of-hooks", h.tok,
				fmt.Sprintf("React Hook %q is called conditionally. %s", h.display, orderSuffix)))
		case a.earlyReturn(h.tok, f):
			out = append(out, a.errorAt("react-hooks/rules-of-hooks", h.tok,
				fmt.Sprintf("React Hook %q is called conditionally. %s Did you accidentally call a React Hook after an early return?", h.display, orderSuffix)))
		}
	}
	return out
}

// earlyReturn reports a conditional return in f ahead of token x
func (a *analysis) earlyReturn(x, f int) bool {
	for _, r := range a.funcs[f].returns {
		if r >= x || a.funcOf[r] != f {
			continue
		}
		if cond, loop := a.hookContext(r, f); cond || loop {
			return true
		}
	}
	return false
}

// hookContext walks outward from token x to the body of function f and
// reports whether x only runs conditionally or may run repeatedly
func (a *analysis) hookContext(x, f int) (cond, loop bool) {
	fn := a.funcs[f]
	low := fn.bodyStart
	for {
		lvl := a.parent[x]
		c, l := a.siblingContext(x, lvl, low)
		cond, loop = cond || c, loop || l

		if lvl < 0 || lvl <= low {
			return cond, loop
		}
		o := a.toks[lvl]
		switch {
		case o.punct("{"):
			switch a.owner[lvl] {
			case "if", "else", "switch", "catch":
				cond = true
			case "for", "while", "do":
				loop = true
			}
		case o.punct("("):
			if kw := a.tok(lvl - 1); kw.kind == tokIdent {
				switch kw.text {
				case "if", "switch":
					// The test itself runs unconditionally
				case "for", "while":
					loop = true
				}
			}
		}
		x = lvl
	}
}

// siblingContext scans back along one bracket level for conditional operators
// and brace-less control statements
func (a *analysis) siblingContext(x, lvl, low int) (cond, loop bool) {
	for k := x - 1; k > lvl && k >= low; k-- {
		if a.parent[k] != lvl {
			continue
		}
		t := a.toks[k]
		switch t.kind {
		case tokPunct:
			switch t.text {
			case "?", "&&", "||", "??", "&&=", "||=", "??=":
				cond = true
			case ";", ",", "=>":
				return cond, loop
			case "}":
				if o := a.match[k]; o >= 0 {
					if kind := a.braces[o]; kind == braceBlock || kind == braceFuncBody || kind == braceClass {
						return cond, loop
					}
				}
			case ")":
				if o := a.match[k]; o > 0 && a.toks[o-1].kind == tokIdent {
					switch a.toks[o-1].text {
					case "if":
						return true, loop
					case "for", "while":
						return cond, true
					}
				}
			}
		case tokIdent:
			switch t.text {
			case "else":
				return true, loop
			case "do":
				return cond, true
			case "const", "let", "var", "return":
				return cond, loop
			}
		}
		if t.nlBefore && k > 0 && a.exprEnd(k-1) && a.startsStatement(k) {
			return cond, loop
		}
	}
	return cond, loop
}

var effectHooks = map[string]bool{
	"useEffect": true, "useLayoutEffect": true, "useInsertionEffect": true,
	"useCallback": true, "useMemo": true,
}

func (a *analysis) checkEffectDeps() []finding {
	var out []finding
	for _, h := range a.hookCalls() {
		name := a.toks[h.tok].text
		f := a.funcOf[h.tok]
		if !effectHooks[name] || f < 0 || !a.componentLike(f) {
			continue
		}
		cbIdx, ok := a.funcByStart[h.tok+2]
		if !ok {
			continue
		}
		cb := a.funcs[cbIdx]
		comma := cb.bodyEnd + 1
		if !a.tok(comma).punct(",") || !a.tok(comma+1).punct("[") {
			continue
		}
		deps := comma + 1
		listed := make(map[string]bool)
		for k := deps + 1; k < a.match[deps]; k++ {
			if a.parent[k] != deps || a.toks[k].kind != tokIdent {
				continue
			}
			if p := a.toks[k-1]; k-1 == deps || p.punct(",") {
				listed[a.toks[k].text] = true
			}
		}

		missing := a.missingDeps(cbIdx, f, listed)
		if len(missing) == 0 {
			continue
		}
		var msg string
		if len(missing) == 1 {
			msg = fmt.Sprintf("React Hook %s has a missing dependency: %s. Either include it or remove the dependency array.", h.display, quoteList(missing))
		} else {
			msg = fmt.Sprintf("React Hook %s has missing dependencies: %s. Either include them or remove the dependency array.", h.display, quoteList(missing))
		}
		out = append(out, a.warnAt("react-hooks/exhaustive-deps", deps, msg))
	}
	return out
}

// missingDeps lists component-scope names read by callback cb that the
// dependency array leaves out
func (a *analysis) missingDeps(cb, component int, listed map[string]bool) []string {
	fn := a.funcs[cb]
	seen := make(map[string]bool)
	var missing []string
	for _, r := range a.refs {
		if r.tok < fn.start || r.tok > fn.bodyEnd || listed[r.name] || seen[r.name] {
			continue
		}
		var owner *binding
		shadowed := false
		for _, b := range a.byName[r.name] {
			if b.fn >= 0 && a.within(b.fn, cb) {
				shadowed = true
				break
			}
			if b.fn == component {
				owner = b
			}
		}
		if shadowed || owner == nil || owner.stable || owner.kind == bindImport {
			continue
		}
		seen[r.name] = true
		missing = append(missing, r.name)
	}
	sort.Strings(missing)
	return missing
}

func quoteList(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = "'" + n + "'"
	}
	switch len(q) {
	case 1:
		return q[0]
	case 2:
		return q[0] + " and " + q[1]
	}
	return strings.Join(q[:len(q)-1], ", ") + ", and " + q[len(q)-1]
}
