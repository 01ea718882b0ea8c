// Package textsim provides Ratcliff/Obershelp sequence similarity over runes,
// used by field matching and fit scoring.
package textsim

import (
	"sort"

	"github.com/pmezard/go-difflib/difflib"
)

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Ratio returns the similarity of a and b in [0, 1]. Two empty strings are identical.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

type scored struct {
	score float64
	value string
}

// CloseMatches returns up to n candidates whose similarity to word is at least
// cutoff, best first. Ties keep the later candidate first, which matches the
// usual heap-based ordering of close-match helpers.
func CloseMatches(word string, candidates []string, n int, cutoff float64) []string {
	if n <= 0 {
		return nil
	}

	m := difflib.NewMatcher(nil, nil)
	m.SetSeq2(runes(word))

	results := make([]scored, 0)
	for _, c := range candidates {
		m.SetSeq1(runes(c))
		if m.RealQuickRatio() >= cutoff && m.QuickRatio() >= cutoff {
			if r := m.Ratio(); r >= cutoff {
				results = append(results, scored{score: r, value: c})
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].value > results[j].value
	})

	if len(results) > n {
		results = results[:n]
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.value
	}
	return out
}

// BestMatch returns the single closest candidate at or above cutoff
func BestMatch(word string, candidates []string, cutoff float64) (string, bool) {
	matches := CloseMatches(word, candidates, 1, cutoff)
	if len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}
