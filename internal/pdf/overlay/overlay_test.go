package overlay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/acroform"
	pdferrors "github.com/a3tai/mcp-pdf-formfill/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/schema"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/testpdf"
)

var letter = []schema.PageSize{{Width: testpdf.PageWidth, Height: testpdf.PageHeight}}

func TestFontSize(t *testing.T) {
	r := New(nil)

	tests := []struct {
		name   string
		height float64
		want   float64
	}{
		{"zero height uses default", 0, 12},
		{"too short to measure", 5, 12},
		{"clamped to minimum", 6, 6},
		{"proportional", 16, 12},
		{"clamped to maximum", 40, 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, r.FontSize(tt.height), 1e-9)
		})
	}
}

func TestFontSizeCustomConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultFontSize = 10
	cfg.MinFontSize = 8
	r := New(nil, cfg)

	assert.InDelta(t, 10, r.FontSize(3), 1e-9)
	assert.InDelta(t, 8, r.FontSize(8), 1e-9)
}

func TestCapacity(t *testing.T) {
	r := New(nil)
	assert.Equal(t, 20, r.Capacity(schema.FieldPosition{Width: 120, Height: 16}))
	assert.Equal(t, 10, r.Capacity(schema.FieldPosition{Width: 60, Height: 0}))
	assert.Zero(t, r.Capacity(schema.FieldPosition{Height: 16}))
}

func TestOrigin(t *testing.T) {
	r := New(nil)
	x, y := r.Origin(schema.FieldPosition{X: 100, Y: 72, Width: 200, Height: 20}, 792)
	assert.InDelta(t, 102, x, 1e-9)
	assert.InDelta(t, 703, y, 1e-9)
}

func TestStampOffsetKeepsBaselineAtOrigin(t *testing.T) {
	tests := []struct {
		name  string
		liftY float64
		wantY float64
	}{
		{"default lift", 3, 700},
		{"no lift", 0, 697},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LiftY = tt.liftY
			r := New(nil, cfg)
			pos := schema.FieldPosition{X: 100, Y: 72, Width: 200, Height: 20}

			x, y := r.stampOffset(pos, 792)
			ox, oy := r.Origin(pos, 792)
			assert.InDelta(t, ox, x, 1e-9)
			assert.InDelta(t, tt.wantY, y, 1e-9)
			assert.InDelta(t, oy, y+stampInset, 1e-9, "text baseline lands on the origin")

			wm, err := r.stamp("Jane", pos, 792)
			require.NoError(t, err)
			assert.InDelta(t, x, wm.Dx, 1e-9)
			assert.InDelta(t, y, wm.Dy, 1e-9)
		})
	}
}

func TestRender(t *testing.T) {
	doc := testpdf.VisualForm("Full Name:", "Date of Birth:")
	r := New(zaptest.NewLogger(t))

	out, err := r.Render(context.Background(), doc, letter, []Item{
		{Field: "Full Name", Text: "Jane Doe", Position: schema.FieldPosition{X: 134, Y: 79, Width: 400, Height: 16}},
		{Field: "Date of Birth", Text: "01/02/1990", Position: schema.FieldPosition{X: 160, Y: 119, Width: 300, Height: 16}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, doc, out)

	reopened, err := acroform.Open(out, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.PageCount())
}

func TestRenderNothingToDraw(t *testing.T) {
	doc := testpdf.VisualForm("Full Name:")
	out, err := New(nil).Render(context.Background(), doc, letter, []Item{
		{Field: "Full Name", Text: "  ", Position: schema.FieldPosition{Width: 10, Height: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, doc, out)
}

func TestRenderPageOutOfRange(t *testing.T) {
	doc := testpdf.VisualForm("Full Name:")
	_, err := New(nil).Render(context.Background(), doc, letter, []Item{
		{Field: "Full Name", Text: "Jane", Position: schema.FieldPosition{Page: 3, Width: 10, Height: 10}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, pdferrors.ErrFilling)
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Render(ctx, testpdf.VisualForm("Name:"), letter, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
