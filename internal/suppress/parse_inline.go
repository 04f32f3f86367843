package suppress

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/standardbeagle/cppcore/internal/location"
)

// Inline suppression comment forms (spec §4.1, §6):
//   // cppcheck-suppress ID [symbolName=NAME]
//   // cppcheck-suppress-begin ID
//   // cppcheck-suppress-end ID
//   // cppcheck-suppress-file ID
//   // cppcheck-suppress-macro ID
//   // cppcheck-suppress[ID1, ID2 symbolName=N, ...]

var (
	reSingle    = regexp.MustCompile(`cppcheck-suppress(-begin|-end|-file|-macro)?\s+([^\[\s][^\s]*)(.*)`)
	reBracketed = regexp.MustCompile(`cppcheck-suppress\[([^\]]*)\]`)
	reSymbol    = regexp.MustCompile(`symbolName=(\S+)`)
)

// InlineComment is one `//`/`/* */` comment observed while scanning a
// translation unit, with the line it was found on.
type InlineComment struct {
	File string
	Line int32
	Text string
}

// ParseInlineComments extracts every suppression encoded in comments.
// Errors in one comment are collected but do not stop parsing of others
// (spec §4.1).
func ParseInlineComments(comments []InlineComment) ([]*Suppression, []error) {
	var out []*Suppression
	var errs []error
	for _, c := range comments {
		text := strings.TrimSpace(c.Text)
		if !strings.Contains(text, "cppcheck-suppress") {
			continue
		}
		if m := reBracketed.FindStringSubmatch(text); m != nil {
			supps, err := parseBracketed(c, m[1])
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, supps...)
			continue
		}
		if m := reSingle.FindStringSubmatch(text); m != nil {
			supp, err := parseSingle(c, m[1], m[2], m[3])
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, supp)
			continue
		}
		errs = append(errs, fmt.Errorf("%s:%d: malformed cppcheck-suppress comment: %q", c.File, c.Line, text))
	}
	return out, errs
}

func parseSingle(c InlineComment, variant, id, rest string) (*Suppression, error) {
	if err := validateRuleID(id); err != nil {
		return nil, fmt.Errorf("%s:%d: %w", c.File, c.Line, err)
	}
	supp := &Suppression{
		ErrorIDGlob:  id,
		IsInline:     true,
		Line:         c.Line + 1, // suppress comments annotate the line that follows them
		FileNameGlob: c.File,
	}
	if sm := reSymbol.FindStringSubmatch(rest); sm != nil {
		supp.SymbolGlob = sm[1]
	}
	switch variant {
	case "-begin":
		supp.Type = TypeBlockBegin
		supp.Line = c.Line
	case "-end":
		supp.Type = TypeBlockEnd
		supp.Line = c.Line
	case "-file":
		supp.Type = TypeFile
		supp.FileNameGlob = c.File
		supp.Line = location.NoLine
	case "-macro":
		supp.Type = TypeMacro
		supp.MacroName = id
		supp.Line = location.NoLine
	default:
		supp.Type = TypeUnique
	}
	return supp, nil
}

// parseBracketed handles `cppcheck-suppress[ID1, ID2 symbolName=N, ...]`:
// a comma-separated list where each entry is an id optionally followed by
// `symbolName=X`.
func parseBracketed(c InlineComment, inner string) ([]*Suppression, error) {
	var out []*Suppression
	entries := strings.Split(inner, ",")
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		id := fields[0]
		if err := validateRuleID(id); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", c.File, c.Line, err)
		}
		supp := &Suppression{
			ErrorIDGlob:  id,
			IsInline:     true,
			Type:         TypeUnique,
			Line:         c.Line + 1,
			FileNameGlob: c.File,
		}
		if sm := reSymbol.FindStringSubmatch(entry); sm != nil {
			supp.SymbolGlob = sm[1]
		}
		out = append(out, supp)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s:%d: empty cppcheck-suppress[...] bracket", c.File, c.Line)
	}
	return out, nil
}
