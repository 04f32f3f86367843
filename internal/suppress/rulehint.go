package suppress

import "github.com/hbollon/go-edlib"

// SuggestRuleID finds the closest known rule name to an error_id_glob
// that matched nothing in the checker registry, using Jaro-Winkler
// similarity (same algorithm internal/semantic/fuzzy_matcher.go uses in
// the teacher repo). Used to produce the unknownSuppressionRuleHint
// advisory (SPEC_FULL.md domain stack); never blocks analysis.
func SuggestRuleID(unknown string, known []string) (best string, similarity float64) {
	for _, candidate := range known {
		score, err := edlib.StringsSimilarity(unknown, candidate, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if float64(score) > similarity {
			similarity = float64(score)
			best = candidate
		}
	}
	return best, similarity
}

// RuleHintThreshold is the minimum similarity before a hint is worth
// surfacing to the user.
const RuleHintThreshold = 0.80
