package suppress

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/standardbeagle/cppcore/internal/location"
)

// ParseLineFile parses a plain-text suppression-list file (spec §6):
// one `errorId[:fileGlob[:lineNumber]]` per line, with `;` and `//`
// introducing end-of-line comments, blank lines and `#`/`//` lines ignored.
func ParseLineFile(content string) ([]*Suppression, []error) {
	var out []*Suppression
	var errs []error
	for i, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		line = stripTrailingComment(line)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		supp, err := ParseLineEntry(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, err))
			continue
		}
		out = append(out, supp)
	}
	return out, errs
}

// stripTrailingComment removes a `;` or `//` end-of-line comment, taking
// whichever introducer appears first.
func stripTrailingComment(s string) string {
	cut := len(s)
	if idx := strings.Index(s, ";"); idx >= 0 && idx < cut {
		cut = idx
	}
	if idx := strings.Index(s, "//"); idx >= 0 && idx < cut {
		cut = idx
	}
	return s[:cut]
}

// ParseLineEntry parses one `errorId[:file[:line]]` selector.
func ParseLineEntry(entry string) (*Suppression, error) {
	parts := strings.SplitN(entry, ":", 3)
	supp := &Suppression{Type: TypeUnique, Line: location.NoLine}
	supp.ErrorIDGlob = parts[0]
	if err := validateRuleID(supp.ErrorIDGlob); err != nil {
		return nil, err
	}
	if len(parts) >= 2 {
		supp.FileNameGlob = parts[1]
		if err := validateGlob(supp.FileNameGlob); err != nil {
			return nil, err
		}
	}
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid line number %q: %w", parts[2], err)
		}
		supp.Line = int32(n)
	}
	return supp, nil
}
