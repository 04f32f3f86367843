// Glob matching for suppression selectors (spec §3.1, §8 "Glob-match"
// property): error_id_glob, file_name_glob and symbol_glob accept `*`,
// `**`, `?`, with `**` crossing path separators and the other two not
// crossing `/`. doublestar implements exactly this semantics, so the glob
// layer here is a thin, validated wrapper around it.
package suppress

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// globMatch reports whether name matches pattern under doublestar's
// `**`-crosses-`/` semantics. An empty pattern never matches (callers must
// treat "" as "no selector" and skip the check entirely).
func globMatch(pattern, name string) bool {
	if pattern == "" {
		return false
	}
	if pattern == "*" || pattern == "**" {
		return true
	}
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		return false
	}
	return ok
}

// validateGlob rejects ambiguous-backtracking patterns per spec §4.2:
// "**" immediately adjacent to another "*" or "?" run, or "*?"/"?*" runs.
func validateGlob(pattern string) error {
	if strings.Contains(pattern, "***") {
		return fmt.Errorf("glob %q: ambiguous run of '*' adjacent to '**'", pattern)
	}
	for i := 0; i < len(pattern)-1; i++ {
		a, b := pattern[i], pattern[i+1]
		if (a == '*' && b == '?') || (a == '?' && b == '*') {
			return fmt.Errorf("glob %q: ambiguous adjacent '*'/'?' run at offset %d", pattern, i)
		}
	}
	return nil
}

// validateRuleID enforces the §4.2 character class for error_id_glob:
// [A-Za-z0-9_\-.*] and must not begin with a digit.
func validateRuleID(id string) error {
	if id == "" {
		return nil
	}
	if id[0] >= '0' && id[0] <= '9' {
		return fmt.Errorf("rule id %q must not begin with a digit", id)
	}
	for _, r := range id {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.' || r == '*':
		default:
			return fmt.Errorf("rule id %q contains disallowed character %q", id, r)
		}
	}
	return validateGlob(id)
}
