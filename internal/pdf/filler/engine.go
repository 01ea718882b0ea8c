// Package filler fills document forms from a flat key/value mapping. Keys are
// reconciled with the document's fields, values are normalised and fitted,
// and written as AcroForm values with a fallback to overlay text.
package filler

import (
	"context"
	"os"
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"

	pdferrors "github.com/a3tai/mcp-pdf-formfill/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/fitter"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/matcher"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/overlay"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/schema"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/transform"
)

// DefaultMaxTemplateSize bounds templates read from disk
const DefaultMaxTemplateSize = 100 * 1024 * 1024

// Config configures an Engine
type Config struct {
	MaxTemplateSize int64
	OutputFileMode  os.FileMode
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		MaxTemplateSize: DefaultMaxTemplateSize,
		OutputFileMode:  0o644,
	}
}

// Engine runs fills. It holds no per-document state and is safe for
// concurrent use when its collaborators are.
type Engine struct {
	provider schema.Provider
	fitter   *fitter.Fitter
	renderer *overlay.Renderer
	config   Config
	logger   *zap.Logger
}

// New creates an Engine. A nil fitter or renderer gets a default instance.
func New(provider schema.Provider, f *fitter.Fitter, r *overlay.Renderer, logger *zap.Logger, config ...Config) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if provider == nil {
		provider = schema.NewProvider(logger)
	}
	if f == nil {
		f = fitter.New(nil, logger)
	}
	if r == nil {
		r = overlay.New(logger)
	}
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return &Engine{provider: provider, fitter: f, renderer: r, config: cfg, logger: logger}
}

// Fields returns the canonical schema of a template
func (e *Engine) Fields(ctx context.Context, template []byte) (*schema.Schema, error) {
	return e.provider.Extract(ctx, template)
}

// Preview reports, per key, which field would receive the value and what
// would be written, without modifying the document.
func (e *Engine) Preview(ctx context.Context, template []byte, data map[string]string, fitText bool) ([]PreviewEntry, error) {
	s, err := e.provider.Extract(ctx, template)
	if err != nil {
		return nil, err
	}

	structured := s.Structured()
	method := MethodAcroForm
	fields := structured
	if len(structured) == 0 {
		method = MethodOverlay
		fields = placed(s.Fields)
	}

	entries := make([]PreviewEntry, 0, len(data))
	for _, key := range sortedKeys(data) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := PreviewEntry{Key: key, OriginalValue: data[key], Method: method}
		cf, res, ok := matchField(key, fields)
		if !ok {
			entry.Error = "no matching field"
			entries = append(entries, entry)
			continue
		}

		entry.MatchedField = cf.ID
		entry.MatchStrategy = res.Strategy
		entry.Kind = string(cf.Kind)
		entry.Purpose = purposeOf(cf)
		if err := validate(cf, data[key]); err != nil {
			entry.Error = err.Error()
			entries = append(entries, entry)
			continue
		}

		entry.Value = transform.Transform(data[key], entry.Purpose)
		if limit := e.capacity(cf, method); fitText && cf.Kind == schema.KindText && limit > 0 &&
			utf8.RuneCountInString(entry.Value) > limit {
			fit := e.fitter.Fit(ctx, entry.Value, limit, hintFor(cf, entry.Purpose))
			entry.FitResult = &fit
			entry.Value = fit.Fitted
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// capacity is the character budget of a field: its declared maximum length
// for structured writes, or an estimate from its width for overlay text
func (e *Engine) capacity(cf schema.CanonicalField, method string) int {
	if cf.Constraints.MaxLength > 0 {
		return cf.Constraints.MaxLength
	}
	if method == MethodOverlay {
		return e.renderer.Capacity(cf.Position)
	}
	return 0
}

// loadTemplate returns the template bytes of req
func (e *Engine) loadTemplate(req Request) ([]byte, error) {
	switch {
	case len(req.TemplateBytes) > 0 && req.TemplatePath != "":
		return nil, pdferrors.New(pdferrors.KindConfiguration, "template bytes and template path are mutually exclusive")
	case len(req.TemplateBytes) > 0:
		return req.TemplateBytes, nil
	case req.TemplatePath == "":
		return nil, pdferrors.New(pdferrors.KindConfiguration, "no template given")
	}

	info, err := os.Stat(req.TemplatePath)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.KindResource, "cannot access template", err).
			WithDetail("path", req.TemplatePath)
	}
	if e.config.MaxTemplateSize > 0 && info.Size() > e.config.MaxTemplateSize {
		return nil, pdferrors.Newf(pdferrors.KindResource, "template too large: %d bytes (max %d)",
			info.Size(), e.config.MaxTemplateSize).WithDetail("path", req.TemplatePath)
	}
	data, err := os.ReadFile(req.TemplatePath)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.KindResource, "cannot read template", err).
			WithDetail("path", req.TemplatePath)
	}
	return data, nil
}

func sortedKeys(data map[string]string) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func placed(fields []schema.CanonicalField) []schema.CanonicalField {
	var out []schema.CanonicalField
	for _, f := range fields {
		if f.Placed() {
			out = append(out, f)
		}
	}
	return out
}

// matchField resolves key against field names and labels
func matchField(key string, fields []schema.CanonicalField) (schema.CanonicalField, matcher.Result, bool) {
	candidates := make([]matcher.Candidate, 0, 2*len(fields))
	for _, f := range fields {
		candidates = append(candidates, matcher.Candidate{Text: f.Name, ID: f.ID})
	}
	for _, f := range fields {
		if f.Label != "" && f.Label != f.Name {
			candidates = append(candidates, matcher.Candidate{Text: f.Label, ID: f.ID})
		}
	}

	id, res, ok := matcher.MatchCandidates(key, candidates)
	if !ok {
		return schema.CanonicalField{}, matcher.Result{}, false
	}
	for _, f := range fields {
		if f.ID == id {
			return f, res, true
		}
	}
	return schema.CanonicalField{}, matcher.Result{}, false
}

func purposeOf(cf schema.CanonicalField) string {
	if cf.Purpose != "" {
		return cf.Purpose
	}
	return transform.InferPurpose(cf.Name, cf.Label)
}

func hintFor(cf schema.CanonicalField, purpose string) fitter.Hint {
	label := cf.Label
	if label == "" {
		label = cf.Name
	}
	return fitter.Hint{Label: label, FieldType: string(cf.Kind), Purpose: purpose}
}

// validate checks value against the field's declared constraints
func validate(cf schema.CanonicalField, value string) error {
	if cf.Constraints.Required && value == "" {
		return pdferrors.New(pdferrors.KindValidation, "value is required").WithField(cf.ID)
	}
	if p := cf.Constraints.Pattern; p != nil && value != "" && !p.MatchString(value) {
		return pdferrors.Newf(pdferrors.KindValidation, "value does not match %s", p).WithField(cf.ID)
	}
	return nil
}
