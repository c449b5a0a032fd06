// Package jsxlint checks generated React chapter components for syntax
// errors and common semantic mistakes before they are stored.
package jsxlint

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/lamim/uxie/pkg/models"
)

// RuleInternal marks a validator failure rather than a finding in the code
const RuleInternal = "internal-error"

// esbuild warnings promoted to fatal findings
var esbuildRules = map[string]string{
	"duplicate-object-key": "no-dupe-keys",
	"equals-nan":           "use-isnan",
	"impossible-typeof":    "valid-typeof",
	"duplicate-case":       "no-duplicate-case",
	"assign-to-constant":   "no-const-assign",
	"assign-to-import":     "no-import-assign",
}

// Validator is safe for concurrent use
type Validator struct {
	globals map[string]bool
	logger  *slog.Logger
}

// Option configures a Validator
type Option func(*Validator)

// WithGlobals declares extra names that need no declaration
func WithGlobals(names ...string) Option {
	return func(v *Validator) {
		for _, n := range names {
			v.globals[n] = true
		}
	}
}

// WithLogger sets the logger used to report validator failures
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// New creates a Validator with the default browser globals
func New(opts ...Option) *Validator {
	v := &Validator{
		globals: make(map[string]bool, len(defaultGlobals)),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, g := range defaultGlobals {
		v.globals[g] = true
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate never fails: tool errors become a single internal-error diagnostic
func (v *Validator) Validate(candidate string) (result models.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("Validator panicked", "panic", r)
			result = models.ValidationResult{
				Valid: false,
				Errors: []models.Diagnostic{{
					Message:  fmt.Sprintf("validator failure: %v", r),
					RuleCode: RuleInternal,
				}},
				Warnings: []models.Diagnostic{},
			}
		}
	}()

	src, prefixLen := wrap(candidate)
	findings, parsed := checkSyntax(src)
	if parsed {
		findings = append(findings, analyze(src, preambleLines, v.globals).run()...)
	}
	return buildResult(findings, prefixLen, strings.Count(candidate, "\n")+1)
}

// checkSyntax runs the esbuild parser. parsed is false when the source
// could not be parsed, in which case token analysis is skipped.
func checkSyntax(src string) ([]finding, bool) {
	res := api.Transform(src, api.TransformOptions{
		Loader:     api.LoaderJSX,
		Sourcefile: "chapter.jsx",
		LogLevel:   api.LogLevelSilent,
	})

	var out []finding
	parsed := true
	for _, m := range res.Errors {
		rule := "syntax-error"
		switch {
		case strings.Contains(m.Text, "Cannot assign to import"):
			rule = "no-import-assign"
		case strings.Contains(m.Text, "because it is a constant"):
			rule = "no-const-assign"
		case strings.Contains(m.Text, "cannot be bound multiple times in the same parameter list"):
			rule = "no-dupe-args"
		default:
			parsed = false
		}
		out = append(out, fromMessage(rule, m))
	}
	for _, m := range res.Warnings {
		if rule, ok := esbuildRules[m.ID]; ok {
			out = append(out, fromMessage(rule, m))
		}
	}
	return out, parsed
}

func fromMessage(rule string, m api.Message) finding {
	f := finding{rule: rule, message: m.Text}
	if m.Location != nil {
		f.line = m.Location.Line
		f.col = m.Location.Column + 1
	}
	return f
}

// buildResult shifts findings back to candidate coordinates, drops
// duplicate (rule, line) pairs and splits errors from warnings
func buildResult(findings []finding, prefixLen, candidateLines int) models.ValidationResult {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].line != findings[j].line {
			return findings[i].line < findings[j].line
		}
		return findings[i].col < findings[j].col
	})

	result := models.ValidationResult{
		Errors:   []models.Diagnostic{},
		Warnings: []models.Diagnostic{},
	}
	type key struct {
		rule string
		line int
	}
	seen := make(map[key]bool, len(findings))
	for _, f := range findings {
		line, col := f.line-preambleLines, f.col
		switch {
		case f.line == 0:
			line, col = 0, 0
		case line < 1:
			line = 1
		case line > candidateLines:
			line = candidateLines
		}
		if line == 1 && col > prefixLen {
			col -= prefixLen
		}
		k := key{f.rule, line}
		if seen[k] {
			continue
		}
		seen[k] = true

		d := models.Diagnostic{Message: f.message, Line: line, Column: col, RuleCode: f.rule}
		if f.warning {
			result.Warnings = append(result.Warnings, d)
		} else {
			result.Errors = append(result.Errors, d)
		}
	}
	result.Valid = len(result.Errors) == 0
	return result
}
