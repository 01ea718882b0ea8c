package acroform

import (
	"strings"

	"github.com/agext/levenshtein"
)

// minOptionSimilarity is the lowest edit-distance similarity accepted when
// neither an exact nor a containment match exists
const minOptionSimilarity = 0.6

// ChooseOption picks the option best matching value: a case-insensitive match
// on display or export text, then containment, then the closest option by
// Levenshtein similarity. It reports false when nothing is close enough.
func ChooseOption(value string, options []Option) (Option, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || len(options) == 0 {
		return Option{}, false
	}

	for _, o := range options {
		if strings.ToLower(o.Display) == v || strings.ToLower(o.Export) == v {
			return o, true
		}
	}

	for _, o := range options {
		if strings.Contains(strings.ToLower(o.Display), v) {
			return o, true
		}
	}

	best, bestScore := Option{}, 0.0
	for _, o := range options {
		score := levenshtein.Similarity(v, strings.ToLower(o.Display), nil)
		if s := levenshtein.Similarity(v, strings.ToLower(o.Export), nil); s > score {
			score = s
		}
		if score > bestScore {
			best, bestScore = o, score
		}
	}
	if bestScore >= minOptionSimilarity {
		return best, true
	}
	return Option{}, false
}

// ChooseState picks the on-state of a radio group or checkbox that matches
// value: case-insensitive equality first, then a state containing the value.
func ChooseState(value string, states []string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return "", false
	}
	for _, s := range states {
		if strings.ToLower(s) == v {
			return s, true
		}
	}
	for _, s := range states {
		if strings.Contains(strings.ToLower(s), v) {
			return s, true
		}
	}
	return "", false
}

var truthy = map[string]bool{
	"yes": true, "true": true, "1": true, "checked": true, "on": true, "x": true,
}

// Truthy reports whether value means "checked"
func Truthy(value string) bool {
	return truthy[strings.ToLower(strings.TrimSpace(value))]
}
