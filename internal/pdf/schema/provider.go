package schema

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/acroform"
	pdferrors "github.com/a3tai/mcp-pdf-formfill/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/matcher"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/transform"
)

// ProviderConfig configures the default provider
type ProviderConfig struct {
	// Visual enables label detection for documents without form fields
	Visual bool
}

// DefaultProviderConfig returns the default provider configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{Visual: true}
}

// DefaultProvider extracts fields from AcroForm dictionaries, enriches them
// with XFA captions and known-form labels, and falls back to printed labels
// when a document has no interactive fields.
type DefaultProvider struct {
	config ProviderConfig
	logger *zap.Logger
}

// NewProvider creates a DefaultProvider
func NewProvider(logger *zap.Logger, config ...ProviderConfig) *DefaultProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := DefaultProviderConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return &DefaultProvider{config: cfg, logger: logger}
}

// Extract implements Provider
func (p *DefaultProvider) Extract(ctx context.Context, doc []byte) (*Schema, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	form, err := acroform.Open(doc, p.logger)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.KindParsing, "cannot parse document", err)
	}
	return p.FromDocument(ctx, form, doc)
}

// FromDocument builds the schema of an already opened document. doc must be
// the bytes form was opened from.
func (p *DefaultProvider) FromDocument(ctx context.Context, form *acroform.Document, doc []byte) (*Schema, error) {
	sizes, err := form.PageSizes()
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.KindParsing, "cannot read page sizes", err)
	}

	s := &Schema{TotalPages: form.PageCount()}
	for _, ps := range sizes {
		s.PageSizes = append(s.PageSizes, PageSize{Width: ps.Width, Height: ps.Height})
	}

	layout, err := readLayout(doc, p.logger)
	if err != nil {
		p.logger.Debug("schema.layout.unavailable", zap.Error(err))
		layout = &textLayout{}
	}
	s.Title = layout.title
	s.FormType = DetectFormType(s.Title)

	s.Fields = fromAcroForm(form, s)

	xfa := p.xfaFields(form)
	s.IsXFA = len(xfa) > 0
	if len(s.Fields) == 0 {
		s.Fields = fromXFA(xfa)
	} else {
		enrichFromXFA(s.Fields, xfa)
	}

	if s.FormType != "" {
		applyKnownForm(s.FormType, s.Fields)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(s.Fields) == 0 && p.config.Visual {
		s.Fields = detectVisualFields(layout, s.PageSizes)
	}
	s.IsScanned = len(s.Fields) == 0 && layout.empty()

	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Purpose == "" {
			f.Purpose = transform.InferPurpose(f.Name, f.Label)
		}
	}

	p.logger.Debug("schema.extracted",
		zap.Int("fields", len(s.Fields)),
		zap.Int("pages", s.TotalPages),
		zap.Bool("xfa", s.IsXFA),
		zap.Bool("scanned", s.IsScanned),
		zap.String("form_type", s.FormType))
	return s, nil
}

func (p *DefaultProvider) xfaFields(form *acroform.Document) []xfaField {
	packets, err := form.XFAPackets()
	if err != nil {
		p.logger.Debug("schema.xfa.unreadable", zap.Error(err))
		return nil
	}
	if template, ok := packets["template"]; ok {
		return parseXFATemplate(template)
	}
	if xdp, ok := packets["xdp"]; ok {
		return parseXFATemplate(xdp)
	}
	return nil
}

// fromAcroForm converts fillable AcroForm fields. Push buttons and signature
// fields are not fillable and are skipped.
func fromAcroForm(form *acroform.Document, s *Schema) []CanonicalField {
	var out []CanonicalField
	for _, f := range form.Fields() {
		kind, ok := canonicalKind(f.Kind)
		if !ok {
			continue
		}

		cf := CanonicalField{
			ID:     f.Name,
			Name:   f.Name,
			Kind:   kind,
			Label:  f.Label,
			Source: SourceAcroForm,
			Constraints: FieldConstraints{
				MaxLength: f.MaxLen,
				Required:  f.Required,
			},
		}

		switch kind {
		case KindChoice:
			for _, o := range f.Options {
				cf.Options = append(cf.Options, o.Display)
			}
		case KindRadio:
			cf.Options = f.OnStates()
		}

		for _, w := range f.Widgets {
			if w.Page < 1 {
				continue
			}
			height := s.PageHeight(w.Page - 1)
			cf.Position = FieldPosition{
				Page:   w.Page - 1,
				X:      w.Rect.LLX,
				Y:      height - w.Rect.URY,
				Width:  w.Rect.Width(),
				Height: w.Rect.Height(),
			}
			break
		}
		out = append(out, cf)
	}
	return out
}

func canonicalKind(k acroform.Kind) (Kind, bool) {
	switch k {
	case acroform.KindText, acroform.KindUnknown:
		return KindText, true
	case acroform.KindCheckbox:
		return KindCheckbox, true
	case acroform.KindRadio:
		return KindRadio, true
	case acroform.KindChoice:
		return KindChoice, true
	default:
		return "", false
	}
}

func fromXFA(fields []xfaField) []CanonicalField {
	out := make([]CanonicalField, 0, len(fields))
	seen := make(map[string]int)
	for _, x := range fields {
		id := x.Path
		if n := seen[id]; n > 0 {
			id = fmt.Sprintf("%s[%d]", x.Path, n)
		}
		seen[x.Path]++

		out = append(out, CanonicalField{
			ID:      id,
			Name:    x.Name,
			Kind:    x.Kind,
			Label:   x.Label,
			Options: x.Options,
			Position: FieldPosition{
				Page:   x.Page,
				X:      x.X,
				Y:      x.Y,
				Width:  x.W,
				Height: x.H,
			},
			Source: SourceXFA,
		})
	}
	return out
}

// enrichFromXFA copies XFA captions onto unlabelled AcroForm fields sharing
// the same leaf name
func enrichFromXFA(fields []CanonicalField, xfa []xfaField) {
	labels := make(map[string]string)
	for _, x := range xfa {
		if x.Label != "" {
			if _, dup := labels[x.Name]; !dup {
				labels[x.Name] = x.Label
			}
		}
	}
	for i := range fields {
		if fields[i].Label != "" {
			continue
		}
		if l, ok := labels[matcher.Leaf(fields[i].Name)]; ok {
			fields[i].Label = l
		}
	}
}
