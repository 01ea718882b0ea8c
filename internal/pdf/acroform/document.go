// Package acroform reads and writes interactive form fields of a PDF using
// pdfcpu's object model.
package acroform

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
)

// PageSize is a page's width and height in points
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Document is an opened PDF with its form fields indexed by qualified name.
// A Document is not safe for concurrent use.
type Document struct {
	ctx    *model.Context
	fields []*Field
	byName map[string]*Field

	// object number of a widget annotation -> 1-based page number
	widgetPages map[int]int

	// object number of a page dict -> 1-based page number
	pageRefs map[int]int

	logger *zap.Logger
}

// NewConfiguration returns the relaxed pdfcpu configuration used for all reads
func NewConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Open parses data and indexes its form fields
func Open(data []byte, logger *zap.Logger) (*Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, err := api.ReadContext(bytes.NewReader(data), NewConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	d := &Document{
		ctx:         ctx,
		byName:      make(map[string]*Field),
		widgetPages: make(map[int]int),
		pageRefs:    make(map[int]int),
		logger:      logger,
	}
	d.indexPages()
	if err := d.collectFields(); err != nil {
		return nil, err
	}
	return d, nil
}

// Fields returns the terminal fields in document order
func (d *Document) Fields() []*Field {
	return d.fields
}

// Names returns the qualified names of all terminal fields
func (d *Document) Names() []string {
	names := make([]string, len(d.fields))
	for i, f := range d.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a terminal field by qualified name
func (d *Document) Field(name string) (*Field, bool) {
	f, ok := d.byName[name]
	return f, ok
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// PageSizes returns the effective size of each page, first page first
func (d *Document) PageSizes() ([]PageSize, error) {
	dims, err := d.ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}
	out := make([]PageSize, len(dims))
	for i, dim := range dims {
		out[i] = PageSize{Width: dim.Width, Height: dim.Height}
	}
	return out, nil
}

// Bytes serializes the document, including any modifications
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// indexPages maps widget annotation object numbers to the page listing them
func (d *Document) indexPages() {
	for pageNr := 1; pageNr <= d.ctx.PageCount; pageNr++ {
		pageDict, pageRef, _, err := d.ctx.PageDict(pageNr, false)
		if err != nil || pageDict == nil {
			continue
		}
		if pageRef != nil {
			d.pageRefs[int(pageRef.ObjectNumber)] = pageNr
		}
		annotsObj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := d.ctx.DereferenceArray(annotsObj)
		if err != nil {
			continue
		}
		for _, a := range annots {
			if objNr, ok := objectNumber(a); ok {
				d.widgetPages[objNr] = pageNr
			}
		}
	}
}

func (d *Document) acroFormDict(create bool) (types.Dict, error) {
	rootDict, err := d.ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	obj, found := rootDict.Find("AcroForm")
	if !found {
		if !create {
			return nil, nil
		}
		acro := types.Dict{"Fields": types.Array{}}
		rootDict["AcroForm"] = acro
		return acro, nil
	}

	acro, err := d.ctx.DereferenceDict(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acro == nil && create {
		acro = types.Dict{"Fields": types.Array{}}
		rootDict["AcroForm"] = acro
	}
	return acro, nil
}

func objectNumber(o types.Object) (int, bool) {
	switch ref := o.(type) {
	case types.IndirectRef:
		return int(ref.ObjectNumber), true
	case *types.IndirectRef:
		if ref == nil {
			return 0, false
		}
		return int(ref.ObjectNumber), true
	}
	return 0, false
}
