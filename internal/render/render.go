// Package render implements the Text/Template output format (spec §6):
// substituting a Finding's fields into a user-configurable message
// template.
package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/standardbeagle/cppcore/internal/finding"
)

// DefaultTemplate mirrors cppcheck's classic one-line format.
const DefaultTemplate = "[{file}:{line}]: ({severity}) {message}"

var inconclusiveRe = regexp.MustCompile(`\{inconclusive:([^}]*)\}`)

// Render substitutes template placeholders with f's fields (spec §6
// "Text/Template output"). Missing call-stack substitutions map to
// "nofile"/"0" rather than empty strings, so a template never silently
// loses its column alignment.
func Render(tmpl string, f finding.Finding) string {
	file, line, column := "nofile", "0", "0"
	if primary, ok := f.Primary(); ok {
		if primary.FileName != "" {
			file = primary.FileName
		}
		line = strconv.Itoa(int(primary.Line))
		column = strconv.Itoa(int(primary.Column))
	} else if f.File0 != "" {
		file = f.File0
	}

	out := inconclusiveRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		if f.Certainty != finding.CertaintyInconclusive {
			return ""
		}
		sub := inconclusiveRe.FindStringSubmatch(match)
		return sub[1]
	})

	replacer := strings.NewReplacer(
		"{id}", f.ID,
		"{severity}", string(f.Severity),
		"{cwe}", fmt.Sprintf("%d", f.CWE),
		"{message}", f.ShortMessage,
		"{callstack}", renderCallStack(f),
		"{file}", file,
		"{line}", line,
		"{column}", column,
		"{code}", f.VerboseMessage,
	)
	return replacer.Replace(out)
}

func renderCallStack(f finding.Finding) string {
	if len(f.CallStack) == 0 {
		return ""
	}
	parts := make([]string, len(f.CallStack))
	for i, loc := range f.CallStack {
		parts[i] = fmt.Sprintf("%s:%d", loc.FileName, loc.Line)
	}
	return strings.Join(parts, " -> ")
}
