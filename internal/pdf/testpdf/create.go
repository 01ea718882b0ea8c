package testpdf

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// TextField is a single-widget text field laid out by pdfcpu's form generator
type TextField struct {
	ID     string
	Tip    string  // becomes the field's TU label
	X, Y   float64 // lower-left corner
	Width  float64
	MaxLen int
}

type jsonTextField struct {
	ID     string     `json:"id"`
	Tip    string     `json:"tip,omitempty"`
	Pos    [2]float64 `json:"pos"`
	Width  float64    `json:"width"`
	MaxLen int        `json:"maxlen,omitempty"`
}

// TextFields creates a one-page Letter document holding fields. Use Build for
// what pdfcpu cannot generate: inherited field trees, radio kids with custom
// states, XFA packets and positioned page text.
func TextFields(fields ...TextField) ([]byte, error) {
	tf := make([]jsonTextField, len(fields))
	for i, f := range fields {
		tf[i] = jsonTextField{ID: f.ID, Tip: f.Tip, Pos: [2]float64{f.X, f.Y}, Width: f.Width, MaxLen: f.MaxLen}
	}

	desc, err := json.Marshal(map[string]any{
		"paper":  "Letter",
		"origin": "LowerLeft",
		"fonts": map[string]any{
			"input": map[string]any{"name": "Helvetica", "size": 12},
		},
		"pages": map[string]any{
			"1": map[string]any{"content": map[string]any{"textfield": tf}},
		},
	})
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(desc), &out, nil); err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	return out.Bytes(), nil
}
