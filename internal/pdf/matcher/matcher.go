// Package matcher reconciles incoming data keys with the field identifiers
// found in a document.
package matcher

import (
	"regexp"
	"strings"

	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/textsim"
)

// Strategy names which rule produced a match
type Strategy string

const (
	StrategyExact           Strategy = "exact"
	StrategyCaseInsensitive Strategy = "case_insensitive"
	StrategyClean           Strategy = "clean"
	StrategyLeaf            Strategy = "xfa_leaf"
	StrategyFuzzy           Strategy = "fuzzy"
	StrategyFuzzyBase       Strategy = "fuzzy_base"
	StrategyContainment     Strategy = "containment"
)

// Similarity cutoffs for the fuzzy strategies
const (
	FuzzyCutoff     = 0.70
	FuzzyBaseCutoff = 0.80
)

// Result is a successful match
type Result struct {
	Name     string   `json:"name"`
	Strategy Strategy `json:"strategy"`
}

var (
	generatedPrefix = regexp.MustCompile(`^field_\d+_`)
	indexSuffix     = regexp.MustCompile(`\[\d+\]`)
	nonAlnum        = regexp.MustCompile(`[^a-z0-9]`)
)

// Clean lowercases s and keeps only ASCII letters and digits
func Clean(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

// StripGeneratedPrefix removes an auto-generated "field_<n>_" prefix
func StripGeneratedPrefix(s string) string {
	return generatedPrefix.ReplaceAllString(s, "")
}

// Leaf returns the last dotted segment of an XFA-style path with any [n]
// indices removed, e.g. "topmostSubform[0].Page1[0].f1_01[0]" -> "f1_01".
func Leaf(s string) string {
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	return indexSuffix.ReplaceAllString(s, "")
}

// Match resolves key against names. The first strategy that hits wins:
// exact, case-insensitive, cleaned, XFA leaf, fuzzy, fuzzy on the cleaned
// base, then containment. It returns false when nothing matches.
func Match(key string, names []string) (Result, bool) {
	if key == "" || len(names) == 0 {
		return Result{}, false
	}

	for _, n := range names {
		if n == key {
			return Result{Name: n, Strategy: StrategyExact}, true
		}
	}

	lowerKey := strings.ToLower(key)
	for _, n := range names {
		if strings.ToLower(n) == lowerKey {
			return Result{Name: n, Strategy: StrategyCaseInsensitive}, true
		}
	}

	cleanKey := Clean(key)
	cleanBase := Clean(StripGeneratedPrefix(key))
	cleaned := make([]string, len(names))
	for i, n := range names {
		cleaned[i] = Clean(n)
	}

	for i, c := range cleaned {
		if c == "" {
			continue
		}
		if c == cleanKey || c == cleanBase {
			return Result{Name: names[i], Strategy: StrategyClean}, true
		}
	}

	cleanLeafKey := Clean(Leaf(key))
	if cleanLeafKey != "" {
		for _, n := range names {
			if Clean(Leaf(n)) == cleanLeafKey {
				return Result{Name: n, Strategy: StrategyLeaf}, true
			}
		}
	}

	if best, ok := textsim.BestMatch(key, names, FuzzyCutoff); ok {
		return Result{Name: best, Strategy: StrategyFuzzy}, true
	}

	if cleanBase != "" {
		if best, ok := textsim.BestMatch(cleanBase, cleaned, FuzzyBaseCutoff); ok {
			for i, c := range cleaned {
				if c == best {
					return Result{Name: names[i], Strategy: StrategyFuzzyBase}, true
				}
			}
		}

		for i, c := range cleaned {
			if c == "" {
				continue
			}
			if strings.Contains(c, cleanBase) || strings.Contains(cleanBase, c) {
				return Result{Name: names[i], Strategy: StrategyContainment}, true
			}
		}
	}

	return Result{}, false
}

// Candidate pairs a display string used for matching with the identifier it
// resolves to. Overlay matching uses both field names and visible labels.
type Candidate struct {
	Text string
	ID   string
}

// MatchCandidates runs Match over the candidates' texts and returns the
// matched candidate's ID.
func MatchCandidates(key string, candidates []Candidate) (string, Result, bool) {
	texts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Text != "" {
			texts = append(texts, c.Text)
		}
	}

	res, ok := Match(key, texts)
	if !ok {
		return "", Result{}, false
	}
	for _, c := range candidates {
		if c.Text == res.Name {
			return c.ID, res, true
		}
	}
	return "", Result{}, false
}
