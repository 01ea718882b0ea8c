package filler

import (
	"context"
	"os"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/acroform"
	pdferrors "github.com/a3tai/mcp-pdf-formfill/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/fitter"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/overlay"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/schema"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/transform"
)

// state is a phase of the fill pipeline
type state int

const (
	statePrimary state = iota
	stateHybrid
	stateFinalize
	stateDone
	stateAborted
)

func (s state) String() string {
	switch s {
	case statePrimary:
		return "primary"
	case stateHybrid:
		return "hybrid"
	case stateFinalize:
		return "finalize"
	case stateDone:
		return "done"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// run holds the state of one fill call
type run struct {
	e      *Engine
	req    Request
	out    *FilledDocument
	logger *zap.Logger

	problems *pdferrors.Collection
	keys     []string
	results  map[string]int // key -> index into out.FieldResults

	current []byte             // document bytes as of the last serialization
	form    *acroform.Document // open document carrying structured writes
	filled  map[string]bool    // field IDs written in Primary
	pending []string           // keys retried in Hybrid
	dirty   bool               // form holds writes not yet in current
	stale   bool               // form was serialized or current moved past it
}

// Fill runs the pipeline for req. It always returns a document; failures are
// reported in its Errors, Warnings and FieldResults.
func (e *Engine) Fill(ctx context.Context, req Request) (doc *FilledDocument) {
	doc = &FilledDocument{
		RequestID:    uuid.NewString(),
		Success:      true,
		FieldResults: make([]FieldFillResult, 0, len(req.Data)),
	}
	r := &run{
		e:        e,
		req:      req,
		out:      doc,
		logger:   e.logger.With(zap.String("request_id", doc.RequestID)),
		problems: pdferrors.NewCollection(),
		keys:     sortedKeys(req.Data),
		results:  make(map[string]int),
		filled:   make(map[string]bool),
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("fill.panic", zap.Any("panic", rec))
			r.abort(pdferrors.Newf(pdferrors.KindFilling, "internal failure: %v", rec))
		}
		doc.Warnings = r.problems.Warnings
		doc.Errors = r.problems.Errors
	}()

	r.logger.Info("fill.started", zap.Int("keys", len(r.keys)), zap.Bool("flatten", req.Flatten))

	st := statePrimary
	for st != stateDone && st != stateAborted {
		if err := ctx.Err(); err != nil {
			st = r.abort(pdferrors.Wrap(pdferrors.KindResource, "fill cancelled", err))
			break
		}
		next := r.step(ctx, st)
		r.logger.Debug("fill.state", zap.Stringer("from", st), zap.Stringer("to", next))
		st = next
	}

	r.logger.Info("fill.finished",
		zap.Bool("success", doc.Success),
		zap.Int("filled", doc.FieldsFilled()),
		zap.Int("failed", doc.FieldsFailed()))
	return doc
}

func (r *run) step(ctx context.Context, st state) state {
	switch st {
	case statePrimary:
		return r.primary(ctx)
	case stateHybrid:
		return r.hybrid(ctx)
	case stateFinalize:
		return r.finalize(ctx)
	default:
		return r.abort(pdferrors.Newf(pdferrors.KindFilling, "unexpected state %s", st))
	}
}

// abort records a document-level failure and discards any output
func (r *run) abort(err error) state {
	r.logger.Warn("fill.aborted", zap.Error(err))
	r.problems.Errors = append(r.problems.Errors, err.Error())
	r.out.Success = false
	r.out.Output = nil
	r.out.OutputPath = ""
	return stateAborted
}

// primary writes values into AcroForm fields
func (r *run) primary(ctx context.Context) state {
	template, err := r.e.loadTemplate(r.req)
	if err != nil {
		return r.abort(err)
	}
	r.current = template

	form, err := acroform.Open(template, r.logger)
	if err != nil {
		return r.abort(pdferrors.Wrap(pdferrors.KindParsing, "cannot parse template", err))
	}
	r.form = form

	s, err := r.e.provider.Extract(ctx, template)
	if err != nil {
		return r.abort(err)
	}

	fields := s.Structured()
	if len(fields) == 0 {
		r.problems.Warn("No AcroForm fields found; using visual overlay")
		r.pending = r.keys
		return stateHybrid
	}

	for _, key := range r.keys {
		if err := ctx.Err(); err != nil {
			return r.abort(pdferrors.Wrap(pdferrors.KindResource, "fill cancelled", err))
		}
		res := r.fillStructured(ctx, key, r.req.Data[key], fields)
		r.record(res)
		if !res.Success && !res.validation {
			r.pending = append(r.pending, key)
		}
	}

	if len(r.pending) > 0 {
		r.logger.Info("fill.primary.fallback", zap.Int("fields", len(r.pending)))
		return stateHybrid
	}
	return stateFinalize
}

func (r *run) fillStructured(ctx context.Context, key, value string, fields []schema.CanonicalField) FieldFillResult {
	res := FieldFillResult{FieldName: key, OriginalValue: value, Method: MethodAcroForm}

	cf, m, ok := matchField(key, fields)
	if !ok {
		r.logger.Debug("fill.primary.miss", zap.String("key", key))
		return r.fail(res, pdferrors.New(pdferrors.KindFilling, "no matching field").WithField(key))
	}
	res.MatchedField = cf.ID
	res.MatchStrategy = m.Strategy
	r.logger.Debug("fill.primary.match",
		zap.String("key", key),
		zap.String("field", cf.ID),
		zap.String("strategy", string(m.Strategy)))

	field, ok := r.form.Field(cf.ID)
	if !ok {
		return r.fail(res, pdferrors.New(pdferrors.KindFilling, "field not found in document").WithField(cf.ID))
	}

	if err := validate(cf, value); err != nil {
		res.validation = true
		return r.fail(res, err)
	}

	purpose := purposeOf(cf)
	value = transform.Transform(value, purpose)

	switch cf.Kind {
	case schema.KindCheckbox:
		res.FilledValue = r.form.SetCheckbox(field, acroform.Truthy(value))
	case schema.KindRadio:
		selected, err := r.form.SetRadio(field, value)
		if err != nil {
			return r.fail(res, err)
		}
		res.FilledValue = selected
	case schema.KindChoice:
		display, err := r.form.SetChoice(field, value)
		if err != nil {
			return r.fail(res, err)
		}
		res.FilledValue = display
	default:
		if limit := cf.Constraints.MaxLength; r.req.FitText && limit > 0 && utf8.RuneCountInString(value) > limit {
			fit := r.e.fitter.Fit(ctx, value, limit, hintFor(cf, purpose))
			res.FitResult = &fit
			value = fit.Fitted
			if fit.Overflow {
				r.problems.Warn("Field '%s': value cut to %d characters", key, limit)
			}
		}
		if err := r.form.SetText(field, value); err != nil {
			return r.fail(res, err)
		}
		res.FilledValue = value
	}

	res.Success = true
	r.filled[cf.ID] = true
	r.dirty = true
	return res
}

// fail marks res failed and records err as a per-field warning
func (r *run) fail(res FieldFillResult, err error) FieldFillResult {
	res.Success = false
	res.Error = err.Error()
	r.problems.Warn("Field '%s': %s", res.FieldName, err)
	return res
}

func (r *run) record(res FieldFillResult) {
	if i, ok := r.results[res.FieldName]; ok {
		r.out.FieldResults[i] = res
		return
	}
	r.results[res.FieldName] = len(r.out.FieldResults)
	r.out.FieldResults = append(r.out.FieldResults, res)
}

// hybrid draws the values of pending keys as overlay text, using field
// positions derived from the current document bytes
func (r *run) hybrid(ctx context.Context) state {
	if r.dirty {
		data, err := r.form.Bytes()
		if err != nil {
			return r.abort(pdferrors.Wrap(pdferrors.KindResource, "cannot serialize document", err))
		}
		// a pdfcpu context cannot be written twice
		r.current, r.dirty, r.stale = data, false, true
	}

	s, err := r.e.provider.Extract(ctx, r.current)
	if err != nil {
		r.problems.Warn("Visual filling failed: %s", err)
		r.markUnfilled()
		return stateFinalize
	}

	var available []schema.CanonicalField
	for _, f := range s.Fields {
		if f.Placed() && !r.filled[f.ID] {
			available = append(available, f)
		}
	}

	var items []overlay.Item
	drawn := make(map[string]FieldFillResult)
	used := make(map[string]bool)
	for _, key := range r.pending {
		value := r.req.Data[key]
		res := FieldFillResult{FieldName: key, OriginalValue: value, Method: MethodOverlay}

		cf, m, ok := matchField(key, unused(available, used))
		if !ok {
			if _, seen := r.results[key]; !seen {
				r.record(r.fail(res, pdferrors.New(pdferrors.KindFilling, "no matching field").WithField(key)))
			}
			continue
		}
		used[cf.ID] = true
		res.MatchedField = cf.ID
		res.MatchStrategy = m.Strategy

		text, fit := r.overlayText(ctx, cf, value)
		res.FitResult = fit
		res.FilledValue = text
		res.Success = true
		drawn[key] = res
		items = append(items, overlay.Item{Field: cf.ID, Text: text, Position: cf.Position})
	}

	if len(drawn) == 0 {
		r.problems.Warn("No matching fields found for visual filling")
		return stateFinalize
	}

	out, err := r.e.renderer.Render(ctx, r.current, s.PageSizes, items)
	if err != nil {
		r.problems.Warn("Visual filling failed: %s", err)
		r.markUnfilled()
		return stateFinalize
	}
	r.current = out
	r.stale = true

	for _, key := range r.pending {
		if res, ok := drawn[key]; ok {
			r.record(res)
		}
	}
	r.logger.Info("fill.hybrid.rendered", zap.Int("fields", len(drawn)))
	return stateFinalize
}

// overlayText returns what to draw for value in cf
func (r *run) overlayText(ctx context.Context, cf schema.CanonicalField, value string) (string, *fitter.Result) {
	purpose := purposeOf(cf)
	if cf.Kind == schema.KindCheckbox {
		if acroform.Truthy(value) {
			return "X", nil
		}
		return "", nil
	}

	text := transform.Transform(value, purpose)
	limit := r.e.capacity(cf, MethodOverlay)
	if !r.req.FitText || limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, nil
	}
	fit := r.e.fitter.Fit(ctx, text, limit, hintFor(cf, purpose))
	if fit.Overflow {
		r.problems.Warn("Field '%s': value cut to %d characters", cf.ID, limit)
	}
	return fit.Fitted, &fit
}

// markUnfilled records a failure for pending keys that have no result yet
func (r *run) markUnfilled() {
	for _, key := range r.pending {
		if _, seen := r.results[key]; !seen {
			r.record(FieldFillResult{
				FieldName:     key,
				OriginalValue: r.req.Data[key],
				Method:        MethodOverlay,
				Error:         "visual filling failed",
			})
		}
	}
}

func unused(fields []schema.CanonicalField, used map[string]bool) []schema.CanonicalField {
	out := make([]schema.CanonicalField, 0, len(fields))
	for _, f := range fields {
		if !used[f.ID] {
			out = append(out, f)
		}
	}
	return out
}

// finalize sets document-wide flags and serializes the result
func (r *run) finalize(ctx context.Context) state {
	form := r.form
	if r.stale {
		reopened, err := acroform.Open(r.current, r.logger)
		if err != nil {
			return r.abort(pdferrors.Wrap(pdferrors.KindParsing, "cannot reopen document", err))
		}
		form = reopened
	}

	if err := form.SetNeedAppearances(); err != nil {
		r.problems.Warn("Failed to set NeedAppearances: %s", err)
	}
	if len(r.filled) > 0 && form.RemoveXFA() {
		r.problems.Warn("XFA form data removed so viewers show the filled AcroForm values")
	}
	if r.req.Flatten {
		if _, err := form.RemoveWidgets(); err != nil {
			r.problems.Warn("Flattening partially failed: %s", err)
		}
	}

	data, err := form.Bytes()
	if err != nil {
		return r.abort(pdferrors.Wrap(pdferrors.KindResource, "cannot serialize document", err))
	}
	if err := ctx.Err(); err != nil {
		return r.abort(pdferrors.Wrap(pdferrors.KindResource, "fill cancelled", err))
	}

	if r.req.OutputPath != "" {
		if err := os.WriteFile(r.req.OutputPath, data, r.e.config.OutputFileMode); err != nil {
			return r.abort(pdferrors.Wrap(pdferrors.KindResource, "cannot write output", err).
				WithDetail("path", r.req.OutputPath))
		}
		r.out.OutputPath = r.req.OutputPath
	} else {
		r.out.Output = data
	}

	r.logger.Debug("fill.finalized", zap.Int("bytes", len(data)), zap.String("output_path", r.out.OutputPath))
	return stateDone
}
