// Package preprocess implements the Preprocessor Adapter (spec component
// C): deterministic configuration enumeration, per-configuration
// expansion, the content fingerprint, and comment extraction. Real macro
// substitution and #include resolution are treated as the external
// preprocessor's job (spec §1 Non-goals: "the token/preprocessor front
// end (a third-party component)") — this package only resolves
// conditional-compilation branching (#ifdef/#ifndef/#if/#else/#elif/
// #endif) deterministically over #define directives found in the file
// itself, which is what configuration enumeration and dedup require.
package preprocess

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/standardbeagle/cppcore/internal/errs"
	"github.com/standardbeagle/cppcore/internal/suppress"
)

// RawSource is the result of Load: the file split into lines with its
// directive list, ready for configuration enumeration (spec §4.1 "load").
type RawSource struct {
	Path       string
	Lines      []string // without trailing newline
	Directives []Directive
}

// Directive is one preprocessor line, classified and stripped of its
// leading '#'.
type Directive struct {
	Line int32
	Kind string // "ifdef","ifndef","if","else","elif","endif","define","include","pragma","error","other"
	Arg  string
}

// Load scans src into lines and its directive list (spec §4.1 "load").
func Load(path string, src []byte) *RawSource {
	lines := strings.Split(strings.ReplaceAll(string(src), "\r\n", "\n"), "\n")
	rs := &RawSource{Path: path, Lines: lines}
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		rs.Directives = append(rs.Directives, classify(int32(i+1), trimmed))
	}
	return rs
}

func classify(lineNo int32, trimmed string) Directive {
	rest := strings.TrimSpace(trimmed[1:])
	for _, kind := range []string{"ifdef", "ifndef", "elif", "else", "endif", "define", "include", "pragma", "error", "if"} {
		if rest == kind || strings.HasPrefix(rest, kind+" ") || strings.HasPrefix(rest, kind+"\t") {
			arg := strings.TrimSpace(strings.TrimPrefix(rest, kind))
			return Directive{Line: lineNo, Kind: kind, Arg: arg}
		}
	}
	return Directive{Line: lineNo, Kind: "other", Arg: rest}
}

// EnumerateConfigs derives a deterministic, sorted set of configuration
// strings from the #ifdef/#ifndef macro names found in rs (spec §4.1:
// "each a semicolon-joined list of NAME=value pairs"). The baseline ("no
// macros defined") is always configuration "". Each additional macro name
// observed in a conditional contributes exactly one singleton
// configuration defining it, keeping the enumerator's output bounded and
// reproducible without a combinatorial blow-up across unrelated macros.
func EnumerateConfigs(rs *RawSource) []string {
	seen := make(map[string]bool)
	for _, d := range rs.Directives {
		switch d.Kind {
		case "ifdef", "ifndef":
			name := strings.Fields(d.Arg)
			if len(name) > 0 {
				seen[name[0]] = true
			}
		case "if", "elif":
			for _, name := range macroNamesInExpr(d.Arg) {
				seen[name] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)

	configs := []string{""}
	for _, n := range names {
		configs = append(configs, n)
	}
	return configs
}

// macroNamesInExpr extracts bare identifiers from a `#if`/`#elif`
// expression, skipping the `defined`/`defined()` operator itself.
func macroNamesInExpr(expr string) []string {
	var names []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		name := cur.String()
		cur.Reset()
		if name != "defined" && !isDigitRune(name[0]) {
			names = append(names, name)
		}
	}
	for _, r := range expr {
		if isIdentRune(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return names
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isDigitRune(b byte) bool { return b >= '0' && b <= '9' }

// Preprocess resolves conditional-compilation branching for one
// configuration, blanking out lines under unsatisfied branches while
// preserving every other line's original number (spec invariant: a
// Location's line must remain meaningful after preprocessing). It raises
// a *errs.AnalysisError (KindPreprocessor) if the #if/#endif nesting is
// unbalanced or a reached `#error` directive fires.
func Preprocess(path, config string, rs *RawSource) ([]string, error) {
	defined := make(map[string]bool)
	if config != "" {
		defined[config] = true
	}

	out := make([]string, len(rs.Lines))
	copy(out, rs.Lines)

	type frame struct {
		active       bool // this branch currently emits
		everMatched  bool // some branch in this chain already matched
		parentActive bool
	}
	var stack []frame
	activeNow := func() bool {
		for _, f := range stack {
			if !f.active {
				return false
			}
		}
		return true
	}

	for _, d := range rs.Directives {
		idx := int(d.Line) - 1
		switch d.Kind {
		case "ifdef":
			name := strings.Fields(d.Arg)
			match := len(name) > 0 && defined[name[0]]
			stack = append(stack, frame{active: match && activeNow(), everMatched: match, parentActive: activeNow()})
			out[idx] = ""
		case "ifndef":
			name := strings.Fields(d.Arg)
			match := len(name) == 0 || !defined[name[0]]
			stack = append(stack, frame{active: match && activeNow(), everMatched: match, parentActive: activeNow()})
			out[idx] = ""
		case "if":
			match := evalCondition(d.Arg, defined)
			stack = append(stack, frame{active: match && activeNow(), everMatched: match, parentActive: activeNow()})
			out[idx] = ""
		case "elif":
			if len(stack) == 0 {
				return nil, errs.NewPreprocessorError(path, config, errUnbalanced("elif without matching #if"))
			}
			top := &stack[len(stack)-1]
			match := !top.everMatched && evalCondition(d.Arg, defined)
			top.active = match && top.parentActive
			if match {
				top.everMatched = true
			}
			out[idx] = ""
		case "else":
			if len(stack) == 0 {
				return nil, errs.NewPreprocessorError(path, config, errUnbalanced("else without matching #if"))
			}
			top := &stack[len(stack)-1]
			top.active = !top.everMatched && top.parentActive
			top.everMatched = true
			out[idx] = ""
		case "endif":
			if len(stack) == 0 {
				return nil, errs.NewPreprocessorError(path, config, errUnbalanced("endif without matching #if"))
			}
			stack = stack[:len(stack)-1]
			out[idx] = ""
		case "error":
			if activeNow() {
				return nil, errs.NewPreprocessorError(path, config, errUnbalanced("#error "+d.Arg))
			}
			out[idx] = ""
		case "define", "include", "pragma":
			out[idx] = ""
		}
	}
	if len(stack) != 0 {
		return nil, errs.NewPreprocessorError(path, config, errUnbalanced("unterminated #if/#ifdef"))
	}

	// Blank non-directive lines inside a currently-inactive branch. A
	// second pass is simplest: replay the stack machine, this time
	// clearing every line, directive or not, while inactive.
	return blankInactive(rs, defined, out), nil
}

func blankInactive(rs *RawSource, defined map[string]bool, out []string) []string {
	dirByLine := make(map[int32]Directive, len(rs.Directives))
	for _, d := range rs.Directives {
		dirByLine[d.Line] = d
	}

	type frame struct {
		active       bool
		everMatched  bool
		parentActive bool
	}
	var stack []frame
	activeNow := func() bool {
		for _, f := range stack {
			if !f.active {
				return false
			}
		}
		return true
	}

	for i := range out {
		lineNo := int32(i + 1)
		if d, ok := dirByLine[lineNo]; ok {
			switch d.Kind {
			case "ifdef":
				name := strings.Fields(d.Arg)
				match := len(name) > 0 && defined[name[0]]
				stack = append(stack, frame{active: match && activeNow(), everMatched: match, parentActive: activeNow()})
				continue
			case "ifndef":
				name := strings.Fields(d.Arg)
				match := len(name) == 0 || !defined[name[0]]
				stack = append(stack, frame{active: match && activeNow(), everMatched: match, parentActive: activeNow()})
				continue
			case "if":
				match := evalCondition(d.Arg, defined)
				stack = append(stack, frame{active: match && activeNow(), everMatched: match, parentActive: activeNow()})
				continue
			case "elif":
				if len(stack) == 0 {
					continue
				}
				top := &stack[len(stack)-1]
				match := !top.everMatched && evalCondition(d.Arg, defined)
				top.active = match && top.parentActive
				if match {
					top.everMatched = true
				}
				continue
			case "else":
				if len(stack) == 0 {
					continue
				}
				top := &stack[len(stack)-1]
				top.active = !top.everMatched && top.parentActive
				top.everMatched = true
				continue
			case "endif":
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
				continue
			}
		}
		if !activeNow() {
			out[i] = ""
		}
	}
	return out
}

// evalCondition is a minimal #if evaluator: supports `defined(NAME)`,
// `defined NAME`, bare macro-name truthiness, `!`, `&&`, `||`. Anything
// else (arithmetic, function-like macro expansion) is treated as true,
// erring toward analyzing more code rather than silently dropping a
// branch — real macro arithmetic is the external preprocessor's job
// (spec §1 Non-goals).
func evalCondition(expr string, defined map[string]bool) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true
	}
	if strings.Contains(expr, "||") {
		for _, part := range strings.Split(expr, "||") {
			if evalCondition(part, defined) {
				return true
			}
		}
		return false
	}
	if strings.Contains(expr, "&&") {
		for _, part := range strings.Split(expr, "&&") {
			if !evalCondition(part, defined) {
				return false
			}
		}
		return true
	}
	negate := false
	for strings.HasPrefix(expr, "!") {
		negate = !negate
		expr = strings.TrimSpace(expr[1:])
	}
	var result bool
	switch {
	case strings.HasPrefix(expr, "defined"):
		name := strings.TrimSpace(strings.TrimPrefix(expr, "defined"))
		name = strings.Trim(name, "()")
		result = defined[strings.TrimSpace(name)]
	case expr == "0":
		result = false
	case expr == "1":
		result = true
	default:
		fields := strings.Fields(expr)
		if len(fields) == 1 && isPlainIdent(fields[0]) {
			result = defined[fields[0]]
		} else {
			result = true
		}
	}
	if negate {
		return !result
	}
	return result
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isIdentRune(r) {
			return false
		}
	}
	return true
}

type preprocessErr string

func (e preprocessErr) Error() string { return string(e) }

func errUnbalanced(msg string) error { return preprocessErr(msg) }

// ExtractRemarkComments scans for `// cppcheck-remark ...` comments (spec
// §4.1 "extract_remark_comments").
type Remark struct {
	File string
	Line int32
	Text string
}

func ExtractRemarkComments(rs *RawSource) []Remark {
	var out []Remark
	for i, line := range rs.Lines {
		idx := strings.Index(line, "cppcheck-remark")
		if idx < 0 {
			continue
		}
		commentStart := strings.LastIndex(line[:idx], "//")
		if commentStart < 0 {
			continue
		}
		text := strings.TrimSpace(strings.TrimPrefix(line[idx+len("cppcheck-remark"):], ":"))
		out = append(out, Remark{File: rs.Path, Line: int32(i + 1), Text: strings.TrimSpace(text)})
	}
	return out
}

// ExtractInlineSuppressions scans every comment line for `cppcheck-
// suppress*` forms and delegates parsing/block-resolution to the
// suppress package (spec §4.1 "raw directive list" consumer).
func ExtractInlineSuppressions(rs *RawSource) ([]*suppress.Suppression, []error) {
	var comments []suppress.InlineComment
	for i, line := range rs.Lines {
		if !strings.Contains(line, "cppcheck-suppress") {
			continue
		}
		commentStart := strings.Index(line, "//")
		if commentStart < 0 {
			commentStart = strings.Index(line, "/*")
		}
		if commentStart < 0 {
			continue
		}
		comments = append(comments, suppress.InlineComment{
			File: rs.Path,
			Line: int32(i + 1),
			Text: line[commentStart:],
		})
	}
	flat, errs1 := suppress.ParseInlineComments(comments)
	resolved, errs2 := suppress.ResolveBlocks(flat)
	return resolved, append(errs1, errs2...)
}

// Fingerprint computes the content fingerprint covering raw tokens,
// enabled severities, user defines, addon identity, and the suppressions
// relevant to this file (spec §4.1: "Two runs with identical inputs MUST
// produce identical fingerprints"). Inputs are joined with a separator
// byte absent from any legitimate field to avoid boundary collisions.
func Fingerprint(toolInfo string, expandedLines []string, enabledSeverities []string, userDefines []string, addonIdentity string, relevantSuppressionText []string) uint64 {
	var sb strings.Builder
	sb.WriteString(toolInfo)
	sb.WriteByte(0)
	for _, l := range expandedLines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	sb.WriteByte(0)
	writeSorted(&sb, enabledSeverities)
	sb.WriteByte(0)
	writeSorted(&sb, userDefines)
	sb.WriteByte(0)
	sb.WriteString(addonIdentity)
	sb.WriteByte(0)
	writeSorted(&sb, relevantSuppressionText)
	return xxhash.Sum64String(sb.String())
}

func writeSorted(sb *strings.Builder, items []string) {
	cp := append([]string(nil), items...)
	sort.Strings(cp)
	for _, it := range cp {
		sb.WriteString(it)
		sb.WriteByte(0)
	}
}
