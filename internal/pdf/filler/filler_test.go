package filler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/acroform"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/fitter"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/matcher"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/schema"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/testpdf"
)

const longName = "Jonathan Alexander Smithsonian Wentworth"

func sampleForm(xfa string) []byte {
	return testpdf.Build(testpdf.Form{
		Fields: []testpdf.Field{
			{Name: "FullName", Type: "Tx", Rect: [4]float64{100, 700, 300, 720}, MaxLen: 20},
			{Name: "Phone", Type: "Tx", Rect: [4]float64{100, 670, 300, 690}},
			{Name: "Agree", Type: "Btn", Rect: [4]float64{100, 650, 112, 662}},
			{Name: "Color", Type: "Btn", Flags: 49152, Kids: []testpdf.Kid{
				{State: "Red", Rect: [4]float64{100, 600, 112, 612}},
				{State: "Blue", Rect: [4]float64{130, 600, 142, 612}},
			}},
			{Name: "State", Type: "Ch", Flags: 1 << 17, Rect: [4]float64{100, 550, 200, 570},
				Options: []string{"Illinois", "California"}},
		},
		XFA: xfa,
	})
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return New(schema.NewProvider(logger), fitter.New(nil, logger), nil, logger)
}

func resultFor(t *testing.T, doc *FilledDocument, key string) FieldFillResult {
	t.Helper()
	for _, r := range doc.FieldResults {
		if r.FieldName == key {
			return r
		}
	}
	require.Failf(t, "missing result", "no result for %q", key)
	return FieldFillResult{}
}

// reopen parses the filled output, failing the test when it is not a readable PDF
func reopen(t *testing.T, doc *FilledDocument) *acroform.Document {
	t.Helper()
	require.NotEmpty(t, doc.Output)
	out, err := acroform.Open(doc.Output, nil)
	require.NoError(t, err)
	return out
}

func TestFillAcroForm(t *testing.T) {
	doc := newEngine(t).Fill(context.Background(), Request{
		TemplateBytes: sampleForm(""),
		FitText:       true,
		Data: map[string]string{
			"full_name": longName,
			"phone":     "5551234567",
			"agree":     "yes",
			"color":     "blue",
			"state":     "calif",
		},
	})

	require.True(t, doc.Success, doc.Errors)
	assert.NotEmpty(t, doc.RequestID)
	assert.Equal(t, 5, doc.FieldsFilled())
	assert.Zero(t, doc.FieldsFailed())
	require.NotEmpty(t, doc.Output)

	keys := make([]string, len(doc.FieldResults))
	for i, r := range doc.FieldResults {
		keys[i] = r.FieldName
		assert.Equal(t, MethodAcroForm, r.Method)
	}
	assert.Equal(t, []string{"agree", "color", "full_name", "phone", "state"}, keys, "keys are filled in sorted order")

	name := resultFor(t, doc, "full_name")
	assert.Equal(t, "FullName", name.MatchedField)
	assert.Equal(t, matcher.StrategyClean, name.MatchStrategy)
	require.NotNil(t, name.FitResult)
	assert.LessOrEqual(t, utf8.RuneCountInString(name.FitResult.Fitted), 20)
	assert.Contains(t, []string{fitter.StrategyAbbreviations, fitter.StrategyStopWords, fitter.StrategyTruncation},
		name.FitResult.Strategy)

	assert.Equal(t, "(555) 123-4567", resultFor(t, doc, "phone").FilledValue)
	assert.Equal(t, "Yes", resultFor(t, doc, "agree").FilledValue)
	assert.Equal(t, "Blue", resultFor(t, doc, "color").FilledValue)
	assert.Equal(t, "California", resultFor(t, doc, "state").FilledValue)

	out, err := acroform.Open(doc.Output, nil)
	require.NoError(t, err)
	values := map[string]string{}
	for _, f := range out.Fields() {
		values[f.Name] = f.Value
	}
	assert.Equal(t, map[string]string{
		"FullName": name.FitResult.Fitted,
		"Phone":    "(555) 123-4567",
		"Agree":    "Yes",
		"Color":    "Blue",
		"State":    "California",
	}, values)
}

func TestFillWithoutFitText(t *testing.T) {
	doc := newEngine(t).Fill(context.Background(), Request{
		TemplateBytes: sampleForm(""),
		Data:          map[string]string{"FullName": longName},
	})

	require.True(t, doc.Success, doc.Errors)
	res := resultFor(t, doc, "FullName")
	assert.Nil(t, res.FitResult)
	assert.Equal(t, longName, res.FilledValue)
	assert.Equal(t, matcher.StrategyExact, res.MatchStrategy)
}

func TestFillUnmatchedKey(t *testing.T) {
	doc := newEngine(t).Fill(context.Background(), Request{
		TemplateBytes: sampleForm(""),
		Data:          map[string]string{"Phone": "5551234567", "zzz_qqq": "value"},
	})

	require.True(t, doc.Success, "per-field failures do not fail the document")
	assert.Equal(t, 1, doc.FieldsFilled())
	assert.Equal(t, 1, doc.FieldsFailed())

	miss := resultFor(t, doc, "zzz_qqq")
	assert.False(t, miss.Success)
	assert.Contains(t, miss.Error, "no matching field")
	assert.NotEmpty(t, doc.Warnings)

	phone, ok := reopen(t, doc).Field("Phone")
	require.True(t, ok)
	assert.Equal(t, "(555) 123-4567", phone.Value)
}

func TestFillUnmatchedKeysOutputReadable(t *testing.T) {
	tests := []struct {
		name string
		data map[string]string
	}{
		{"unmatched key after text write", map[string]string{"FullName": "Jane Doe", "zzz_qqq": "value"}},
		{"several unmatched keys", map[string]string{"Phone": "5551234567", "aaa_bbb": "1", "zzz_qqq": "2"}},
		{"only unmatched keys", map[string]string{"zzz_qqq": "value"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newEngine(t).Fill(context.Background(), Request{
				TemplateBytes: sampleForm(""),
				Data:          tt.data,
			})

			require.True(t, doc.Success, doc.Errors)
			out := reopen(t, doc)
			assert.Equal(t, 1, out.PageCount())
			for _, r := range doc.FieldResults {
				if !r.Success {
					continue
				}
				f, ok := out.Field(r.MatchedField)
				require.True(t, ok)
				assert.Equal(t, r.FilledValue, f.Value)
			}
		})
	}
}

func TestFillGeneratedFormWithUnknownKey(t *testing.T) {
	template, err := testpdf.TextFields(
		testpdf.TextField{ID: "FullName", Tip: "Full name", X: 100, Y: 700, Width: 200},
		testpdf.TextField{ID: "Email", Tip: "Email address", X: 100, Y: 650, Width: 200},
	)
	require.NoError(t, err)

	doc := newEngine(t).Fill(context.Background(), Request{
		TemplateBytes: template,
		Data:          map[string]string{"full_name": "Jane Doe", "zzz_qqq": "value"},
	})

	require.True(t, doc.Success, doc.Errors)
	assert.Equal(t, 1, doc.FieldsFilled())
	assert.Equal(t, 1, doc.FieldsFailed())

	name, ok := reopen(t, doc).Field("FullName")
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", name.Value)
}

func TestFillFailedWriteFallsBackToOverlay(t *testing.T) {
	doc := newEngine(t).Fill(context.Background(), Request{
		TemplateBytes: sampleForm(""),
		Data:          map[string]string{"Color": "green", "Phone": "5551234567"},
	})

	require.True(t, doc.Success, doc.Errors)
	color := resultFor(t, doc, "Color")
	assert.True(t, color.Success)
	assert.Equal(t, MethodOverlay, color.Method)
	assert.Equal(t, "Color", color.MatchedField)
	assert.Equal(t, "green", color.FilledValue)

	assert.Equal(t, MethodAcroForm, resultFor(t, doc, "Phone").Method)

	phone, ok := reopen(t, doc).Field("Phone")
	require.True(t, ok)
	assert.Equal(t, "(555) 123-4567", phone.Value)
}

func TestFillValidationFailureIsNotOverlaid(t *testing.T) {
	template := testpdf.Build(testpdf.Form{
		Title: "Form 1040 U.S. Individual Income Tax Return",
		Fields: []testpdf.Field{
			{Name: "f1_03", Type: "Tx", Rect: [4]float64{400, 700, 550, 715}},
			{Name: "f1_47", Type: "Tx", Rect: [4]float64{400, 500, 550, 515}},
		},
	})

	doc := newEngine(t).Fill(context.Background(), Request{
		TemplateBytes: template,
		Data:          map[string]string{"f1_03": "not a number", "f1_47": "52,000"},
	})

	require.True(t, doc.Success, doc.Errors)
	ssn := resultFor(t, doc, "f1_03")
	assert.False(t, ssn.Success)
	assert.Equal(t, MethodAcroForm, ssn.Method)
	assert.Contains(t, ssn.Error, "VALIDATION")
	assert.True(t, resultFor(t, doc, "f1_47").Success)
	assert.Len(t, doc.Warnings, 1)

	income, ok := reopen(t, doc).Field("f1_47")
	require.True(t, ok)
	assert.Equal(t, "52,000", income.Value)
}

func TestFillVisualOnly(t *testing.T) {
	doc := newEngine(t).Fill(context.Background(), Request{
		TemplateBytes: testpdf.VisualForm("Full Name:"),
		FitText:       true,
		Data:          map[string]string{"full_name": "Jane Doe"},
	})

	require.True(t, doc.Success, doc.Errors)
	require.Len(t, doc.FieldResults, 1)
	res := doc.FieldResults[0]
	assert.True(t, res.Success)
	assert.Equal(t, MethodOverlay, res.Method)
	assert.Equal(t, "visual_0_0", res.MatchedField)
	assert.Equal(t, "Jane Doe", res.FilledValue)
	reopen(t, doc)
	assert.Contains(t, doc.Warnings, "No AcroForm fields found; using visual overlay")
}

func TestFillVisualNoMatch(t *testing.T) {
	doc := newEngine(t).Fill(context.Background(), Request{
		TemplateBytes: testpdf.VisualForm("Full Name:"),
		Data:          map[string]string{"zzz_qqq": "x"},
	})

	require.True(t, doc.Success, doc.Errors)
	assert.Equal(t, 1, doc.FieldsFailed())
	assert.Contains(t, doc.Warnings, "No matching fields found for visual filling")
	assert.Equal(t, 1, reopen(t, doc).PageCount())
}

func TestFillFlatten(t *testing.T) {
	doc := newEngine(t).Fill(context.Background(), Request{
		TemplateBytes: sampleForm(""),
		Flatten:       true,
		Data:          map[string]string{"Phone": "5551234567"},
	})
	require.True(t, doc.Success, doc.Errors)

	out, err := acroform.Open(doc.Output, nil)
	require.NoError(t, err)
	removed, err := out.RemoveWidgets()
	require.NoError(t, err)
	assert.Zero(t, removed, "no widget annotations remain on pages")
}

func TestFillDropsXFA(t *testing.T) {
	doc := newEngine(t).Fill(context.Background(), Request{
		TemplateBytes: sampleForm(`<template><subform name="f"><field name="Phone"/></subform></template>`),
		Data:          map[string]string{"Phone": "5551234567"},
	})
	require.True(t, doc.Success, doc.Errors)

	found := false
	for _, w := range doc.Warnings {
		if strings.Contains(w, "XFA") {
			found = true
		}
	}
	assert.True(t, found, "a warning reports the dropped XFA data")

	out, err := acroform.Open(doc.Output, nil)
	require.NoError(t, err)
	assert.False(t, out.HasXFA())
}

func TestFillTemplatePathAndOutputPath(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "form.pdf")
	require.NoError(t, os.WriteFile(in, sampleForm(""), 0o600))
	out := filepath.Join(dir, "filled.pdf")

	doc := newEngine(t).Fill(context.Background(), Request{
		TemplatePath: in,
		OutputPath:   out,
		Data:         map[string]string{"Phone": "5551234567"},
	})

	require.True(t, doc.Success, doc.Errors)
	assert.Nil(t, doc.Output)
	assert.Equal(t, out, doc.OutputPath)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	_, err = acroform.Open(written, nil)
	assert.NoError(t, err)
}

func TestFillDocumentErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"no template", Request{}, "CONFIGURATION"},
		{"both templates", Request{TemplateBytes: []byte("x"), TemplatePath: "x.pdf"}, "CONFIGURATION"},
		{"missing file", Request{TemplatePath: filepath.Join(dir, "missing.pdf")}, "RESOURCE"},
		{"garbage", Request{TemplateBytes: []byte("not a pdf")}, "PARSING"},
		{"unwritable output", Request{
			TemplateBytes: sampleForm(""),
			OutputPath:    filepath.Join(dir, "no", "such", "dir", "out.pdf"),
		}, "RESOURCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newEngine(t).Fill(context.Background(), tt.req)
			assert.False(t, doc.Success)
			assert.Nil(t, doc.Output)
			assert.Empty(t, doc.OutputPath)
			require.NotEmpty(t, doc.Errors)
			assert.Contains(t, doc.Errors[0], tt.want)
		})
	}
}

func TestFillTemplateTooLarge(t *testing.T) {
	in := filepath.Join(t.TempDir(), "form.pdf")
	require.NoError(t, os.WriteFile(in, sampleForm(""), 0o600))

	e := New(nil, nil, nil, zaptest.NewLogger(t), Config{MaxTemplateSize: 10, OutputFileMode: 0o644})
	doc := e.Fill(context.Background(), Request{TemplatePath: in})
	assert.False(t, doc.Success)
	require.NotEmpty(t, doc.Errors)
	assert.Contains(t, doc.Errors[0], "too large")
}

func TestFillCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := newEngine(t).Fill(ctx, Request{
		TemplateBytes: sampleForm(""),
		Data:          map[string]string{"Phone": "5551234567"},
	})
	assert.False(t, doc.Success)
	assert.Nil(t, doc.Output)
	require.NotEmpty(t, doc.Errors)
	assert.Contains(t, doc.Errors[0], "cancelled")
}

type panickingProvider struct{}

func (panickingProvider) Extract(context.Context, []byte) (*schema.Schema, error) {
	panic("boom")
}

func TestFillRecoversPanics(t *testing.T) {
	e := New(panickingProvider{}, nil, nil, zaptest.NewLogger(t))
	doc := e.Fill(context.Background(), Request{TemplateBytes: sampleForm("")})

	assert.False(t, doc.Success)
	require.NotEmpty(t, doc.Errors)
	assert.Contains(t, doc.Errors[0], "boom")
}

func TestPreview(t *testing.T) {
	entries, err := newEngine(t).Preview(context.Background(), sampleForm(""), map[string]string{
		"full_name": longName,
		"phone":     "5551234567",
		"zzz_qqq":   "x",
	}, true)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	name := entries[0]
	assert.Equal(t, "full_name", name.Key)
	assert.Equal(t, "FullName", name.MatchedField)
	assert.Equal(t, MethodAcroForm, name.Method)
	require.NotNil(t, name.FitResult)
	assert.Equal(t, name.FitResult.Fitted, name.Value)

	phone := entries[1]
	assert.Equal(t, "(555) 123-4567", phone.Value)
	assert.Equal(t, "phone", phone.Purpose)
	assert.Nil(t, phone.FitResult)

	assert.Equal(t, "no matching field", entries[2].Error)
}

func TestPreviewVisualCapacity(t *testing.T) {
	long := strings.Repeat("Lorem ipsum dolor ", 8)
	entries, err := newEngine(t).Preview(context.Background(), testpdf.VisualForm("Full Name:"),
		map[string]string{"Full Name": long}, true)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, MethodOverlay, e.Method)
	require.NotNil(t, e.FitResult)
	assert.Less(t, utf8.RuneCountInString(e.Value), utf8.RuneCountInString(long))
}

func TestFields(t *testing.T) {
	s, err := newEngine(t).Fields(context.Background(), sampleForm(""))
	require.NoError(t, err)
	assert.Len(t, s.Fields, 5)

	_, err = newEngine(t).Fields(context.Background(), []byte("junk"))
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "primary", statePrimary.String())
	assert.Equal(t, "hybrid", stateHybrid.String())
	assert.Equal(t, "finalize", stateFinalize.String())
	assert.Equal(t, "done", stateDone.String())
	assert.Equal(t, "aborted", stateAborted.String())
	assert.Equal(t, "unknown", state(42).String())
}
