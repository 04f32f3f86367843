package suppress

import "fmt"

// ResolveBlocks pairs consecutive cppcheck-suppress-begin/-end comments
// (matched by id, then by file and nesting order) into single TypeBlock
// suppressions spanning [begin.Line, end.Line]. Unpaired begin/end
// comments are reported as errors but do not block resolution of the
// rest.
func ResolveBlocks(supps []*Suppression) ([]*Suppression, []error) {
	var out []*Suppression
	var errs []error
	var openStack []*Suppression

	for _, s := range supps {
		switch s.Type {
		case TypeBlockBegin:
			openStack = append(openStack, s)
		case TypeBlockEnd:
			matched := false
			for i := len(openStack) - 1; i >= 0; i-- {
				if openStack[i].ErrorIDGlob == s.ErrorIDGlob && openStack[i].FileNameGlob == s.FileNameGlob {
					begin := openStack[i]
					openStack = append(openStack[:i], openStack[i+1:]...)
					out = append(out, &Suppression{
						ErrorIDGlob:  begin.ErrorIDGlob,
						FileNameGlob: begin.FileNameGlob,
						SymbolGlob:   begin.SymbolGlob,
						Type:         TypeBlock,
						LineBegin:    begin.Line,
						LineEnd:      s.Line,
						IsInline:     true,
					})
					matched = true
					break
				}
			}
			if !matched {
				errs = append(errs, fmt.Errorf("%s: cppcheck-suppress-end %q with no matching -begin", s.FileNameGlob, s.ErrorIDGlob))
			}
		default:
			out = append(out, s)
		}
	}
	for _, unclosed := range openStack {
		errs = append(errs, fmt.Errorf("%s: cppcheck-suppress-begin %q never closed", unclosed.FileNameGlob, unclosed.ErrorIDGlob))
	}
	return out, errs
}
