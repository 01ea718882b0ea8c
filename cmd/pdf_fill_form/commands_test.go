package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/acroform"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/filler"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/fitter"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/schema"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/testpdf"
)

type workspace struct {
	dir      string
	template string
	data     string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:      dir,
		template: filepath.Join(dir, "intake.pdf"),
		data:     filepath.Join(dir, "data.json"),
	}
	require.NoError(t, os.WriteFile(ws.template, testpdf.Build(testpdf.Form{
		Fields: []testpdf.Field{
			{Name: "PatientName", Type: "Tx", Rect: [4]float64{100, 700, 300, 720}, MaxLen: 24},
			{Name: "DOB", Type: "Tx", Rect: [4]float64{100, 670, 200, 690}, Label: "Date of birth"},
			{Name: "Insured", Type: "Btn", Rect: [4]float64{100, 650, 112, 662}},
		},
	}), 0o600))
	require.NoError(t, os.WriteFile(ws.data, []byte(
		`{"patient_name": "Maria Garcia", "date of birth": "1990-04-12", "insured": true, "pager": null}`), 0o600))
	return ws
}

// run executes the CLI with args and returns stdout
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFieldsCommand(t *testing.T) {
	ws := newWorkspace(t)

	out, err := run(t, "", "fields", ws.template, "--dir", ws.dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 page(s), 3 field(s)")
	assert.Contains(t, out, "PatientName")
	assert.Contains(t, out, "Date of birth")
	assert.Contains(t, out, "checkbox")

	out, err = run(t, "", "fields", ws.template, "--dir", ws.dir, "--format", "json")
	require.NoError(t, err)
	var sch schema.Schema
	require.NoError(t, json.Unmarshal([]byte(out), &sch))
	require.Len(t, sch.Fields, 3)
	dob, ok := sch.Field("DOB")
	require.True(t, ok)
	assert.Equal(t, "date", dob.Purpose)
}

func TestPreviewCommand(t *testing.T) {
	ws := newWorkspace(t)

	out, err := run(t, "", "preview", ws.template, "--dir", ws.dir, "--data", ws.data, "--format", "json")
	require.NoError(t, err)

	var entries []filler.PreviewEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 4)

	byKey := map[string]filler.PreviewEntry{}
	for _, e := range entries {
		byKey[e.Key] = e
	}
	assert.Equal(t, "DOB", byKey["date of birth"].MatchedField)
	assert.Equal(t, "04/12/1990", byKey["date of birth"].Value)
	assert.Equal(t, "true", byKey["insured"].OriginalValue)
	assert.Equal(t, "", byKey["pager"].OriginalValue)

	_, err = os.Stat(filepath.Join(ws.dir, "intake-filled.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestFillCommand(t *testing.T) {
	ws := newWorkspace(t)

	out, err := run(t, "", "fill", ws.template, "--dir", ws.dir, "--data", ws.data)
	require.NoError(t, err)

	filled := filepath.Join(ws.dir, "intake-filled.pdf")
	assert.Contains(t, out, "filled "+filled+" (3 filled, 1 failed)")
	assert.Contains(t, out, "fail  pager")

	raw, err := os.ReadFile(filled)
	require.NoError(t, err)
	doc, err := acroform.Open(raw, nil)
	require.NoError(t, err)

	values := map[string]string{}
	for _, f := range doc.Fields() {
		values[f.Name] = f.Value
	}
	assert.Equal(t, map[string]string{
		"PatientName": "Maria Garcia",
		"DOB":         "04/12/1990",
		"Insured":     "Yes",
	}, values)
}

func TestFillCommandFromStdin(t *testing.T) {
	ws := newWorkspace(t)
	target := filepath.Join(ws.dir, "custom.pdf")

	out, err := run(t, `{"PatientName": "Lee"}`, "fill", ws.template, "--dir", ws.dir,
		"--data", "-", "--out", target, "--flatten", "--format", "json")
	require.NoError(t, err)

	var doc filler.FilledDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.True(t, doc.Success)
	assert.Equal(t, target, doc.OutputPath)
	assert.FileExists(t, target)
}

func TestFillCommandMissingTemplate(t *testing.T) {
	ws := newWorkspace(t)

	out, err := run(t, "", "fill", filepath.Join(ws.dir, "missing.pdf"), "--dir", ws.dir, "--data", ws.data)
	require.Error(t, err)
	assert.Contains(t, out, "fill failed")
	assert.Contains(t, err.Error(), "cannot access template")
}

func TestFitCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "", "fit", "1234 North Main Street, Apartment 5, Springfield", "--max", "30",
		"--purpose", "address", "--dir", dir, "--format", "json")
	require.NoError(t, err)

	var res fitter.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.LessOrEqual(t, len([]rune(res.Fitted)), 30)
	assert.NotEqual(t, fitter.StrategyDirectFit, res.Strategy)

	out, err = run(t, "", "fit", "short", "--max", "30", "--dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "short\n", out)
}

func TestCommandErrors(t *testing.T) {
	ws := newWorkspace(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"fit without positive max", []string{"fit", "text", "--max", "0"}, "--max must be positive"},
		{"unknown format", []string{"fields", ws.template, "--format", "yaml"}, "unknown format"},
		{"missing data flag", []string{"fill", ws.template}, "data"},
		{"bad data file", []string{"preview", ws.template, "--data", ws.template}, "JSON object"},
		{"bad domain", []string{"fields", ws.template, "--domain", "nautical"}, "abbreviation domain"},
		{"missing argument", []string{"fields"}, "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", append(tt.args, "--dir", ws.dir)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
