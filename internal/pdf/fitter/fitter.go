// Package fitter shrinks values to fit fixed-capacity form fields. Several
// strategies produce candidates, each candidate is scored for how much of the
// original it preserves, and the best one wins. Truncation is the last resort.
package fitter

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/compress"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/textsim"
)

// Strategy tags reported in Result.Strategy
const (
	StrategyEmpty             = "empty"
	StrategyDirectFit         = "direct_fit"
	StrategyAbbreviations     = "abbreviations"
	StrategyStopWords         = "stop_words"
	StrategyStructuredAddress = "structured_address"
	StrategyLLM               = "llm_compression"
	StrategyTruncation        = "truncation"
	StrategyHardCut           = "hard_cut"
)

const ellipsis = "..."

// Result describes how a value was fitted
type Result struct {
	Original  string   `json:"original"`
	Fitted    string   `json:"fitted"`
	Strategy  string   `json:"strategy"`
	Score     float64  `json:"score"`
	Truncated bool     `json:"truncated"`
	Overflow  bool     `json:"overflow"`
	Changes   []string `json:"changes,omitempty"`
}

// Modified reports whether fitting changed the value
func (r Result) Modified() bool {
	return r.Original != r.Fitted
}

// Hint carries what is known about the target field
type Hint struct {
	Label     string
	FieldType string
	Purpose   string

	// NoTruncation replaces ellipsis truncation with a flagged hard cut
	NoTruncation bool
}

func (h Hint) isAddress() bool {
	return strings.EqualFold(h.FieldType, "address") || strings.EqualFold(h.Purpose, "address")
}

// Config configures a Fitter
type Config struct {
	Domain Domain

	// LLMTimeout bounds a single compression call
	LLMTimeout time.Duration

	// LLMThreshold: the model is only consulted when no heuristic candidate
	// scores at or above this value
	LLMThreshold float64
}

// DefaultConfig returns the standard fitter configuration
func DefaultConfig() Config {
	return Config{
		Domain:       DomainGeneral,
		LLMTimeout:   10 * time.Second,
		LLMThreshold: 0.8,
	}
}

// Fitter is safe for concurrent use
type Fitter struct {
	config     Config
	rules      []abbreviation
	compressor compress.Compressor
	strategies []strategy
	logger     *zap.Logger
}

// candidate is an intermediate fitting proposal
type candidate struct {
	fitted string
	score  float64
	change string
}

// input is the per-call state shared by strategies
type input struct {
	original    string
	maxChars    int
	hint        Hint
	abbreviated string
}

// strategy produces at most one candidate. Earlier candidates are visible so
// expensive strategies can decline when a good one already exists.
type strategy struct {
	tag string
	run func(ctx context.Context, in *input, sofar []Result) (candidate, bool)
}

// New creates a Fitter. A nil compressor disables model compression; a nil
// logger discards logs.
func New(compressor compress.Compressor, logger *zap.Logger, config ...Config) *Fitter {
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Domain == "" {
		cfg.Domain = DomainGeneral
	}
	if compressor == nil {
		compressor = compress.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &Fitter{
		config:     cfg,
		rules:      compileAbbreviations(Abbreviations(cfg.Domain)),
		compressor: compressor,
		logger:     logger,
	}
	f.strategies = []strategy{
		{StrategyAbbreviations, f.abbreviations},
		{StrategyStopWords, f.stopWords},
		{StrategyStructuredAddress, f.structuredAddress},
		{StrategyLLM, f.llmCompression},
	}
	return f
}

// Fit returns the best rendering of text within maxChars runes. Unless
// Overflow is set, the fitted value never exceeds maxChars.
func (f *Fitter) Fit(ctx context.Context, text string, maxChars int, hint Hint) Result {
	if text == "" {
		return Result{Original: text, Fitted: text, Strategy: StrategyEmpty}
	}

	original := strings.TrimSpace(text)
	if length(original) <= maxChars {
		return Result{Original: original, Fitted: original, Strategy: StrategyDirectFit, Score: 1.0}
	}

	in := &input{
		original:    original,
		maxChars:    maxChars,
		hint:        hint,
		abbreviated: applyAbbreviations(original, f.rules),
	}

	candidates := make([]Result, 0, len(f.strategies))
	for _, s := range f.strategies {
		c, ok := s.run(ctx, in, candidates)
		if !ok || length(c.fitted) > maxChars {
			continue
		}
		candidates = append(candidates, Result{
			Original: original,
			Fitted:   c.fitted,
			Strategy: s.tag,
			Score:    c.score,
			Changes:  []string{c.change},
		})
	}

	if len(candidates) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Score > candidates[j].Score
		})
		best := candidates[0]
		f.logger.Debug("fit.selected",
			zap.String("strategy", best.Strategy),
			zap.Float64("score", best.Score),
			zap.Int("max_chars", maxChars),
			zap.Int("candidates", len(candidates)))
		return best
	}

	if hint.NoTruncation {
		return Result{
			Original:  original,
			Fitted:    prefix(original, maxChars),
			Strategy:  StrategyHardCut,
			Truncated: true,
			Overflow:  true,
		}
	}

	keep := maxChars - utf8.RuneCountInString(ellipsis)
	fitted := strings.TrimSpace(prefix(original, keep)) + ellipsis
	if length(fitted) > maxChars {
		// budgets under three runes cannot hold an ellipsis
		fitted = prefix(original, maxChars)
	}
	return Result{
		Original:  original,
		Fitted:    fitted,
		Strategy:  StrategyTruncation,
		Score:     0.1,
		Truncated: true,
		Changes:   []string{"Truncated"},
	}
}

func (f *Fitter) abbreviations(_ context.Context, in *input, _ []Result) (candidate, bool) {
	return candidate{
		fitted: in.abbreviated,
		score:  Score(in.original, in.abbreviated),
		change: "Applied abbreviations",
	}, true
}

func (f *Fitter) stopWords(_ context.Context, in *input, _ []Result) (candidate, bool) {
	stripped := removeStopWords(in.abbreviated)
	return candidate{
		fitted: stripped,
		score:  Score(in.original, stripped) * 0.95,
		change: "Removed stop words",
	}, true
}

var (
	zipExtension  = regexp.MustCompile(`-\d{4}\b`)
	countrySuffix = regexp.MustCompile(`,\s*(USA|US|United States)\b`)
)

func (f *Fitter) structuredAddress(_ context.Context, in *input, _ []Result) (candidate, bool) {
	if !in.hint.isAddress() {
		return candidate{}, false
	}

	out := in.abbreviated
	for _, step := range []func(string) string{
		func(s string) string { return zipExtension.ReplaceAllString(s, "") },
		func(s string) string { return countrySuffix.ReplaceAllString(s, "") },
	} {
		if length(out) <= in.maxChars {
			break
		}
		out = step(out)
	}
	return candidate{fitted: out, score: 0.98, change: "Structured address compression"}, true
}

func (f *Fitter) llmCompression(ctx context.Context, in *input, sofar []Result) (candidate, bool) {
	for _, c := range sofar {
		if c.Score >= f.config.LLMThreshold {
			return candidate{}, false
		}
	}

	if f.config.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.LLMTimeout)
		defer cancel()
	}

	out, err := f.compressor.Compress(ctx, in.original, in.maxChars, compress.Hint{
		Label:     in.hint.Label,
		FieldType: in.hint.FieldType,
	})
	if err != nil {
		f.logger.Debug("fit.llm.skipped", zap.Error(err))
		return candidate{}, false
	}

	out = strings.TrimSpace(out)
	if out == "" || length(out) > in.maxChars {
		return candidate{}, false
	}
	if textsim.Ratio(in.original, out) < 0.1 {
		f.logger.Debug("fit.llm.rejected", zap.String("reason", "unrelated output"))
		return candidate{}, false
	}
	return candidate{fitted: out, score: Score(in.original, out), change: "AI semantic compression"}, true
}

// Score rates how well fitted preserves original, in [0, 1]. Results shorter
// than a fifth of the original are treated as suspicious and score 0.4.
func Score(original, fitted string) float64 {
	if fitted == "" || original == "" {
		return 0
	}
	if float64(length(fitted))/float64(length(original)) < 0.2 {
		return 0.4
	}
	sim := textsim.Ratio(strings.ToLower(original), strings.ToLower(fitted))
	if sim+0.3 > 1 {
		return 1
	}
	return sim + 0.3
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}

// prefix returns the first n runes of s
func prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
