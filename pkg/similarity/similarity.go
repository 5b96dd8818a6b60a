// Package similarity implements the fuzzy string ratios used as pair
// features. All ratios are in [0,1], rounded to whole percent, and symmetric
// in their arguments.
package similarity

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// perfectWindow is the window score PartialRatio accepts as an exact hit.
const perfectWindow = 0.995

// Ratio is the normalized indel similarity 2*LCS/(len(a)+len(b)) over runes.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return round(rawRatio(ra, rb))
}

// PartialRatio scores the shorter string against the best aligned window of
// the longer one, so extra dosage or packaging text on one side costs nothing.
func PartialRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}

	best := 0.0
	for start := 0; start+len(shorter) <= len(longer); start++ {
		r := rawRatio(shorter, longer[start:start+len(shorter)])
		if r > perfectWindow {
			return 1
		}
		if r > best {
			best = r
		}
	}
	return round(best)
}

// TokenSortRatio compares the strings after lower-casing, replacing
// punctuation with spaces and sorting the tokens.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	tokens := strings.Fields(cleaned)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func rawRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(lcsLength(a, b)) / float64(total)
}

// lcsLength returns the longest common subsequence length using two rows.
func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// round keeps whole percent with ties to even, the scale the classifier saw.
func round(r float64) float64 {
	return math.RoundToEven(r*100) / 100
}
