// Package schema describes the fillable fields of a document in a
// source-independent form and extracts them from AcroForm dictionaries, XFA
// templates and, for documents without either, the printed page layout.
package schema

import (
	"context"
	"regexp"
)

// Kind is the canonical input type of a field
type Kind string

const (
	KindText     Kind = "text"
	KindCheckbox Kind = "checkbox"
	KindRadio    Kind = "radio"
	KindChoice   Kind = "choice"
)

// Source names where a field was discovered
type Source string

const (
	SourceAcroForm Source = "acroform"
	SourceXFA      Source = "xfa"
	SourceVisual   Source = "visual"
)

// FieldPosition locates a field on its page in points. Page is 0-based and Y
// is measured from the top edge of the page.
type FieldPosition struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FieldConstraints restrict the values a field accepts
type FieldConstraints struct {
	// MaxLength is in characters; 0 means unconstrained
	MaxLength int            `json:"max_length,omitempty"`
	Pattern   *regexp.Regexp `json:"-"`
	Required  bool           `json:"required,omitempty"`
}

// CanonicalField is a fillable field independent of how the document encodes it
type CanonicalField struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Kind        Kind             `json:"kind"`
	Label       string           `json:"label,omitempty"`
	Purpose     string           `json:"purpose,omitempty"`
	Section     string           `json:"section,omitempty"`
	Position    FieldPosition    `json:"position"`
	Constraints FieldConstraints `json:"constraints"`
	Options     []string         `json:"options,omitempty"`
	Source      Source           `json:"source"`
}

// Placed reports whether the field has a usable position for overlay text
func (f CanonicalField) Placed() bool {
	return f.Position.Width > 0 && f.Position.Height > 0
}

// PageSize is a page's width and height in points
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Schema is the set of fields of one document
type Schema struct {
	Fields     []CanonicalField `json:"fields"`
	TotalPages int              `json:"total_pages"`
	PageSizes  []PageSize       `json:"page_sizes"`
	IsXFA      bool             `json:"is_xfa"`
	IsScanned  bool             `json:"is_scanned"`
	Title      string           `json:"title,omitempty"`
	FormType   string           `json:"form_type,omitempty"`
}

// Structured returns the fields backed by AcroForm dictionaries
func (s *Schema) Structured() []CanonicalField {
	var out []CanonicalField
	for _, f := range s.Fields {
		if f.Source == SourceAcroForm {
			out = append(out, f)
		}
	}
	return out
}

// Field looks up a field by ID
func (s *Schema) Field(id string) (CanonicalField, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return CanonicalField{}, false
}

// PageHeight returns the height of a 0-based page, or 0 when out of range
func (s *Schema) PageHeight(page int) float64 {
	if page < 0 || page >= len(s.PageSizes) {
		return 0
	}
	return s.PageSizes[page].Height
}

// Provider extracts the schema of a document
type Provider interface {
	Extract(ctx context.Context, doc []byte) (*Schema, error)
}
