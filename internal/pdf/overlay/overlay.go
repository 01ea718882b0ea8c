// Package overlay draws field values as text onto pages of documents that
// have no usable interactive fields.
package overlay

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/acroform"
	pdferrors "github.com/a3tai/mcp-pdf-formfill/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/schema"
)

// Config configures text placement. Sizes and offsets are in points. Text is
// stamped as pdfcpu watermarks, which land on the page as /Watermark artifacts
// inside an optional content group.
type Config struct {
	FontName        string
	Color           string
	DefaultFontSize float64
	MinFontSize     float64
	MaxFontSize     float64

	PadX  float64 // shift right of the field's left edge
	LiftY float64 // baseline lift above the field's bottom edge
}

// DefaultConfig returns the default overlay configuration
func DefaultConfig() Config {
	return Config{
		FontName:        "Helvetica",
		Color:           "#000000",
		DefaultFontSize: 12,
		MinFontSize:     6,
		MaxFontSize:     14,
		PadX:            2,
		LiftY:           3,
	}
}

// Item is one value to draw at a field position
type Item struct {
	Field    string
	Text     string
	Position schema.FieldPosition
}

// Renderer stamps items onto document pages
type Renderer struct {
	config Config
	logger *zap.Logger
}

// New creates a Renderer
func New(logger *zap.Logger, config ...Config) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return &Renderer{config: cfg, logger: logger}
}

// FontSize derives a font size from a field height. Fields too short to
// measure get the default size.
func (r *Renderer) FontSize(height float64) float64 {
	if height <= 5 {
		return r.config.DefaultFontSize
	}
	return math.Min(math.Max(height*0.75, r.config.MinFontSize), r.config.MaxFontSize)
}

// avgGlyphWidth approximates the mean Helvetica advance as a fraction of the
// font size
const avgGlyphWidth = 0.5

// Capacity estimates how many characters fit on one line of a field
func (r *Renderer) Capacity(pos schema.FieldPosition) int {
	if pos.Width <= 0 {
		return 0
	}
	return int(pos.Width / (r.FontSize(pos.Height) * avgGlyphWidth))
}

// Origin converts a top-origin field position into the bottom-left text
// origin in PDF user space
func (r *Renderer) Origin(pos schema.FieldPosition, pageHeight float64) (x, y float64) {
	return pos.X + r.config.PadX, pageHeight - (pos.Y + pos.Height) + r.config.LiftY
}

// Render draws items onto doc and returns the new document. pages gives the
// size of each page of doc, first page first.
func (r *Renderer) Render(ctx context.Context, doc []byte, pages []schema.PageSize, items []Item) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stamps := make(map[int][]*model.Watermark)
	drawn := 0
	for _, it := range items {
		text := strings.TrimSpace(it.Text)
		if text == "" {
			continue
		}
		page := it.Position.Page
		if page < 0 || page >= len(pages) {
			return nil, pdferrors.Newf(pdferrors.KindFilling, "page %d out of range", page+1).
				WithField(it.Field).
				WithDetail("pages", len(pages))
		}

		wm, err := r.stamp(text, it.Position, pages[page].Height)
		if err != nil {
			return nil, pdferrors.Wrap(pdferrors.KindFilling, "cannot build text stamp", err).WithField(it.Field)
		}
		stamps[page+1] = append(stamps[page+1], wm)
		drawn++
	}

	if drawn == 0 {
		return doc, nil
	}

	var out bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(doc), &out, stamps, acroform.NewConfiguration()); err != nil {
		return nil, pdferrors.Wrap(pdferrors.KindResource, "cannot stamp overlay text", err)
	}

	r.logger.Debug("overlay.rendered", zap.Int("items", drawn), zap.Int("pages", len(stamps)))
	return out.Bytes(), nil
}

// stampInset is where pdfcpu starts text inside a watermark's form XObject
// (its "0 3 Td"), above the anchor point.
const stampInset = 3.0

// stampOffset returns the watermark anchor that puts the text baseline at Origin
func (r *Renderer) stampOffset(pos schema.FieldPosition, pageHeight float64) (x, y float64) {
	x, y = r.Origin(pos, pageHeight)
	return x, y - stampInset
}

func (r *Renderer) stamp(text string, pos schema.FieldPosition, pageHeight float64) (*model.Watermark, error) {
	x, y := r.stampOffset(pos, pageHeight)
	size := int(math.Round(r.FontSize(pos.Height)))
	if size < 1 {
		size = 1
	}

	desc := fmt.Sprintf(
		"fontname:%s, points:%d, rotation:0, scalefactor:1 abs, position:bl, offset:%.2f %.2f, fillcolor:%s, opacity:1",
		r.config.FontName, size, x, y, r.config.Color)
	return api.TextWatermark(text, desc, true, false, types.POINTS)
}
