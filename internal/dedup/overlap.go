package dedup

import "strings"

const minTokenLength = 4

// Overlap is |A∩B| / max(|A|,|B|) over the token sets of a and b.
func Overlap(a, b string) float64 {
	left := tokenSet(a)
	right := tokenSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	shared := 0
	for token := range left {
		if _, ok := right[token]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(left), len(right)))
}

func tokenSet(text string) map[string]struct{} {
	cleaned := nonAlnumExpr.ReplaceAllString(strings.ToLower(text), " ")
	set := map[string]struct{}{}
	for _, token := range strings.Fields(cleaned) {
		if len(token) >= minTokenLength {
			set[token] = struct{}{}
		}
	}
	return set
}
