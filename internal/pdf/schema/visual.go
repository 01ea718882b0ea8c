package schema

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// Layout constants for fields inferred from printed labels, in points
const (
	visualGap       = 4.0  // space between a label and its field
	visualMinWidth  = 20.0 // narrower gaps are not treated as fields
	visualMargin    = 36.0 // right margin when a label ends the line
	visualPadHeight = 4.0  // field height above the font size
	visualDescent   = 3.0  // field bottom below the baseline
)

// glyph is one positioned character as reported by the text extractor
type glyph struct {
	x, y, w, size float64
	s             string
}

// word is a run of glyphs without an inter-word gap
type word struct {
	text       string
	x0, x1     float64
	y, size    float64
	underscore bool
}

// textLayout is the positioned text of a document
type textLayout struct {
	title string
	pages [][]glyph // 0-based
}

func (l *textLayout) empty() bool {
	for _, p := range l.pages {
		if len(p) > 0 {
			return false
		}
	}
	return true
}

// readLayout extracts positioned text with ledongthuc/pdf. Pages whose
// content streams cannot be interpreted are left empty.
func readLayout(doc []byte, logger *zap.Logger) (layout *textLayout, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while reading text layout: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for text extraction: %w", err)
	}

	layout = &textLayout{title: documentTitle(r)}
	for i := 1; i <= r.NumPage(); i++ {
		layout.pages = append(layout.pages, pageGlyphs(r, i, logger))
	}
	return layout, nil
}

func documentTitle(r *pdf.Reader) (title string) {
	defer func() {
		if recover() != nil {
			title = ""
		}
	}()
	return strings.TrimSpace(r.Trailer().Key("Info").Key("Title").Text())
}

func pageGlyphs(r *pdf.Reader, pageNum int, logger *zap.Logger) (glyphs []glyph) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Debug("schema.visual.page_failed", zap.Int("page", pageNum), zap.Any("panic", rec))
			glyphs = nil
		}
	}()

	page := r.Page(pageNum)
	if page.V.IsNull() {
		return nil
	}
	for _, t := range page.Content().Text {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		glyphs = append(glyphs, glyph{x: t.X, y: t.Y, w: t.W, size: t.FontSize, s: t.S})
	}
	return glyphs
}

// lines groups glyphs sharing a baseline, top of page first, each sorted left
// to right
func lines(glyphs []glyph) [][]glyph {
	sorted := append([]glyph(nil), glyphs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].y-sorted[j].y) > 0.5 {
			return sorted[i].y > sorted[j].y
		}
		return sorted[i].x < sorted[j].x
	})

	var out [][]glyph
	for _, g := range sorted {
		n := len(out)
		if n > 0 {
			first := out[n-1][0]
			if math.Abs(first.y-g.y) <= math.Max(first.size, 1)/2 {
				out[n-1] = append(out[n-1], g)
				continue
			}
		}
		out = append(out, []glyph{g})
	}
	for _, l := range out {
		sort.SliceStable(l, func(i, j int) bool { return l[i].x < l[j].x })
	}
	return out
}

// words splits a line at gaps wider than a fraction of the font size, and
// between underscore runs and other text
func words(line []glyph) []word {
	var out []word
	var cur *word
	for _, g := range line {
		under := strings.Trim(g.s, "_") == ""
		if cur != nil {
			gap := g.x - cur.x1
			if gap <= 0.15*math.Max(g.size, 1) && under == cur.underscore {
				cur.text += g.s
				cur.x1 = g.x + g.w
				continue
			}
			out = append(out, *cur)
		}
		cur = &word{text: g.s, x0: g.x, x1: g.x + g.w, y: g.y, size: g.size, underscore: under}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

// detectVisualFields finds "Label:" and "Label ____" patterns and places a
// text field to the right of each label
func detectVisualFields(layout *textLayout, sizes []PageSize) []CanonicalField {
	var fields []CanonicalField
	for page, glyphs := range layout.pages {
		if page >= len(sizes) {
			break
		}
		size := sizes[page]

		for _, line := range lines(glyphs) {
			ws := words(line)
			var label []string
			for i := 0; i < len(ws); i++ {
				w := ws[i]
				if w.underscore {
					if len(label) > 0 && len([]rune(w.text)) >= 3 {
						fields = append(fields, visualField(len(fields), page, size, strings.Join(label, " "), w.x0, w.x1, w))
					}
					label = nil
					continue
				}

				label = append(label, w.text)
				if !strings.HasSuffix(w.text, ":") {
					continue
				}

				text := strings.TrimSpace(strings.TrimSuffix(strings.Join(label, " "), ":"))
				label = nil
				if text == "" {
					continue
				}

				x0, x1 := w.x1+visualGap, size.Width-visualMargin
				if i+1 < len(ws) {
					next := ws[i+1]
					if next.underscore {
						x0, x1 = next.x0, next.x1
						i++
					} else {
						x1 = next.x0 - visualGap
					}
				}
				if x1-x0 < visualMinWidth {
					continue
				}
				fields = append(fields, visualField(len(fields), page, size, text, x0, x1, w))
			}
		}
	}
	return fields
}

func visualField(n, page int, size PageSize, label string, x0, x1 float64, w word) CanonicalField {
	height := w.size + visualPadHeight
	bottom := w.y - visualDescent
	return CanonicalField{
		ID:    fmt.Sprintf("visual_%d_%d", page, n),
		Name:  label,
		Kind:  KindText,
		Label: label,
		Position: FieldPosition{
			Page:   page,
			X:      x0,
			Y:      size.Height - bottom - height,
			Width:  x1 - x0,
			Height: height,
		},
		Source: SourceVisual,
	}
}
