package jsxlint

import (
	"regexp"
	"sort"
	"strings"
)

type importGroup struct {
	module  string
	def     string
	names   []string
	renamed map[string]string // exported name -> local name
}

// Libraries available to generated chapter components at render time
var renderScope = []importGroup{
	{
		module: "react",
		def:    "React",
		names: []string{
			"useState", "useEffect", "useRef", "useMemo", "useCallback",
			"useReducer", "useContext", "useLayoutEffect", "Fragment",
		},
	},
	{
		module: "recharts",
		names: []string{
			"ResponsiveContainer", "LineChart", "Line", "BarChart", "Bar", "AreaChart", "Area",
			"PieChart", "Pie", "Cell", "ScatterChart", "Scatter", "RadarChart", "Radar",
			"PolarGrid", "PolarAngleAxis", "PolarRadiusAxis", "ComposedChart", "XAxis", "YAxis",
			"ZAxis", "CartesianGrid", "Tooltip", "Legend", "ReferenceLine",
		},
	},
	{
		module: "react-katex",
		names:  []string{"InlineMath", "BlockMath"},
	},
	{
		module: "reactflow",
		def:    "ReactFlow",
		names: []string{
			"Background", "Controls", "MiniMap", "Handle", "Position", "MarkerType",
			"useNodesState", "useEdgesState", "addEdge",
		},
	},
	{
		module:  "react-syntax-highlighter",
		renamed: map[string]string{"Prism": "SyntaxHighlighter"},
	},
	{
		module: "framer-motion",
		names:  []string{"motion", "AnimatePresence"},
	},
	{
		module: "lucide-react",
		names: []string{
			"Activity", "AlertCircle", "AlertTriangle", "ArrowLeft", "ArrowRight", "Atom", "Award",
			"Beaker", "Book", "BookOpen", "Bookmark", "Box", "Brain", "Calculator", "Check",
			"CheckCircle", "ChevronDown", "ChevronLeft", "ChevronRight", "ChevronUp", "Circle",
			"Clock", "Code", "Compass", "Copy", "Cpu", "Database", "Download", "Edit", "Eye",
			"EyeOff", "FileText", "Filter", "Flag", "FlaskConical", "Folder", "GitBranch", "Globe",
			"GraduationCap", "Hash", "Heart", "HelpCircle", "Hexagon", "Info", "Key", "Layers",
			"Lightbulb", "Lock", "MessageCircle", "Minus", "Moon", "Package", "Pause", "Percent",
			"Play", "Plus", "Puzzle", "Quote", "RefreshCw", "Rocket", "RotateCcw", "Save",
			"Search", "Settings", "Shield", "Sigma", "Sparkles", "Square", "Star", "Sun", "Target",
			"Terminal", "Trash2", "TrendingDown", "TrendingUp", "Triangle", "Unlock", "Upload",
			"User", "Users", "X", "XCircle", "Zap",
		},
	},
}

// statement renders the import, leaving out names the candidate declares
// itself. An empty line stands in when nothing remains.
func (g importGroup) statement(declared map[string]bool) string {
	var specs []string
	for _, n := range g.names {
		if !declared[n] {
			specs = append(specs, n)
		}
	}
	keys := make([]string, 0, len(g.renamed))
	for k := range g.renamed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !declared[g.renamed[k]] {
			specs = append(specs, k+" as "+g.renamed[k])
		}
	}
	def := g.def
	if declared[def] {
		def = ""
	}
	if def == "" && len(specs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("import ")
	if def != "" {
		b.WriteString(def)
		if len(specs) > 0 {
			b.WriteString(", ")
		}
	}
	if len(specs) > 0 {
		b.WriteString("{ ")
		b.WriteString(strings.Join(specs, ", "))
		b.WriteString(" }")
	}
	b.WriteString(" from \"")
	b.WriteString(g.module)
	b.WriteString("\";")
	return b.String()
}

// preambleLines is the number of lines ahead of the candidate
var preambleLines = len(renderScope)

// buildPreamble renders one import per line so candidate lines sit at a
// fixed offset
func buildPreamble(declared map[string]bool) string {
	var b strings.Builder
	for _, g := range renderScope {
		b.WriteString(g.statement(declared))
		b.WriteByte('\n')
	}
	return b.String()
}

// AllowedIdentifiers lists every name a chapter component may use without
// importing it, for inclusion in generation prompts.
func AllowedIdentifiers() []string {
	var out []string
	for _, g := range renderScope {
		if g.def != "" {
			out = append(out, g.def)
		}
		out = append(out, g.names...)
		for _, local := range g.renamed {
			out = append(out, local)
		}
	}
	sort.Strings(out)
	return out
}

// Browser and language globals that need no declaration
var defaultGlobals = []string{
	"Array", "ArrayBuffer", "BigInt", "Boolean", "DataView", "Date", "Error", "EvalError",
	"Float32Array", "Float64Array", "Function", "Infinity", "Int8Array", "Int16Array",
	"Int32Array", "Intl", "JSON", "Map", "Math", "NaN", "Number", "Object", "Promise",
	"Proxy", "RangeError", "ReferenceError", "Reflect", "RegExp", "Set", "String", "Symbol",
	"SyntaxError", "TypeError", "URIError", "Uint8Array", "Uint8ClampedArray", "Uint16Array",
	"Uint32Array", "WeakMap", "WeakSet", "Atomics", "globalThis", "undefined", "arguments",
	"isFinite", "isNaN", "parseFloat", "parseInt", "encodeURI", "encodeURIComponent",
	"decodeURI", "decodeURIComponent", "console", "window", "document", "navigator",
	"location", "history", "localStorage", "sessionStorage", "setTimeout", "clearTimeout",
	"setInterval", "clearInterval", "requestAnimationFrame", "cancelAnimationFrame",
	"fetch", "alert", "confirm", "prompt", "performance", "crypto", "URL", "URLSearchParams",
	"Blob", "File", "FileReader", "FormData", "Headers", "Request", "Response", "Event",
	"CustomEvent", "KeyboardEvent", "MouseEvent", "HTMLElement", "Element", "Node",
	"Image", "Audio", "AbortController", "TextEncoder", "TextDecoder", "queueMicrotask",
	"structuredClone", "getComputedStyle", "matchMedia", "ResizeObserver",
	"IntersectionObserver", "MutationObserver", "btoa", "atob",
}

var (
	leadingDecl = regexp.MustCompile(`^(?:const|let|var|function\*?|class)\s+([A-Za-z_$][\w$]*)`)
	anyDecl     = regexp.MustCompile(`\b(?:const|let|var|function\*?|class)\s+([A-Za-z_$][\w$]*)`)
	importDecl  = regexp.MustCompile(`(?m)^\s*import\s+([^'"]+?)\s+from\s`)
	identifier  = regexp.MustCompile(`[A-Za-z_$][\w$]*`)
)

// wrap turns a candidate component into a complete module. The returned
// prefix length applies to the candidate's first line only.
func wrap(candidate string) (string, int) {
	declared := make(map[string]bool)
	for _, m := range anyDecl.FindAllStringSubmatch(candidate, -1) {
		declared[m[1]] = true
	}
	for _, m := range importDecl.FindAllStringSubmatch(candidate, -1) {
		for _, name := range identifier.FindAllString(m[1], -1) {
			declared[name] = true
		}
	}

	head := strings.TrimLeft(candidate, " \t\r\n")
	prefix, suffix := "", ""
	switch {
	case strings.HasPrefix(head, "export ") || strings.HasPrefix(head, "import "):
	case leadingDecl.MatchString(head):
		suffix = "\nexport default " + leadingDecl.FindStringSubmatch(head)[1] + ";"
	default:
		prefix = "export default "
	}
	return buildPreamble(declared) + prefix + candidate + suffix, len(prefix)
}
