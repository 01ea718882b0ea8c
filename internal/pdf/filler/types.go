package filler

import (
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/fitter"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/matcher"
)

// Fill methods reported in FieldFillResult.Method
const (
	MethodAcroForm = "acroform"
	MethodOverlay  = "overlay"
)

// Request describes one fill operation. Exactly one of TemplateBytes and
// TemplatePath must be set.
type Request struct {
	TemplateBytes []byte
	TemplatePath  string
	Data          map[string]string

	Flatten    bool   // remove widget annotations from the output
	FitText    bool   // shrink values that exceed a field's capacity
	OutputPath string // write the document here instead of FilledDocument.Output
}

// FieldFillResult is the outcome for one requested key
type FieldFillResult struct {
	FieldName     string           `json:"field_name"`
	MatchedField  string           `json:"matched_field,omitempty"`
	MatchStrategy matcher.Strategy `json:"match_strategy,omitempty"`
	Method        string           `json:"method,omitempty"`
	Success       bool             `json:"success"`
	OriginalValue string           `json:"original_value"`
	FilledValue   string           `json:"filled_value,omitempty"`
	Error         string           `json:"error,omitempty"`
	FitResult     *fitter.Result   `json:"fit_result,omitempty"`

	// validation failures are not retried as overlay text
	validation bool
}

// FilledDocument is the result of a fill, produced even when filling failed
type FilledDocument struct {
	RequestID    string            `json:"request_id"`
	Success      bool              `json:"success"`
	Output       []byte            `json:"-"`
	OutputPath   string            `json:"output_path,omitempty"`
	FieldResults []FieldFillResult `json:"field_results"`
	Warnings     []string          `json:"warnings"`
	Errors       []string          `json:"errors"`
}

// FieldsFilled counts successful field results
func (d *FilledDocument) FieldsFilled() int {
	n := 0
	for _, r := range d.FieldResults {
		if r.Success {
			n++
		}
	}
	return n
}

// FieldsFailed counts failed field results
func (d *FilledDocument) FieldsFailed() int {
	return len(d.FieldResults) - d.FieldsFilled()
}

// PreviewEntry shows how one key would be filled
type PreviewEntry struct {
	Key           string           `json:"key"`
	MatchedField  string           `json:"matched_field,omitempty"`
	MatchStrategy matcher.Strategy `json:"match_strategy,omitempty"`
	Kind          string           `json:"kind,omitempty"`
	Purpose       string           `json:"purpose,omitempty"`
	Method        string           `json:"method,omitempty"`
	OriginalValue string           `json:"original_value"`
	Value         string           `json:"value,omitempty"`
	FitResult     *fitter.Result   `json:"fit_result,omitempty"`
	Error         string           `json:"error,omitempty"`
}
