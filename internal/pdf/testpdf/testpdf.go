// Package testpdf builds small, well-formed PDF documents for tests: pages of
// Helvetica text, AcroForm fields and optional XFA templates.
package testpdf

import (
	"bytes"
	"fmt"
	"strings"
)

// Letter page size in points
const (
	PageWidth  = 612.0
	PageHeight = 792.0
)

// Text is a line of Helvetica text; X and Y are the baseline origin in PDF
// user space (origin bottom-left).
type Text struct {
	Page int // 0-based
	X, Y float64
	Size float64
	S    string
}

// Kid is one radio button of a radio group
type Kid struct {
	State string
	Rect  [4]float64
}

// Field describes an AcroForm field. Type is "Tx", "Btn" or "Ch".
type Field struct {
	Name    string
	Type    string
	Page    int // 0-based
	Rect    [4]float64
	Flags   int
	MaxLen  int
	Label   string
	Options []string
	// OnState is the checkbox on-state name; empty means "Yes"
	OnState string
	// Kids makes the field a radio group
	Kids []Kid
}

// Form describes a whole test document
type Form struct {
	Pages  int
	Title  string
	Texts  []Text
	Fields []Field
	// XFA is a template packet; its presence adds an XFA entry to the AcroForm
	XFA string
	// NoAcroForm omits the AcroForm dictionary even when Fields is empty
	NoAcroForm bool
}

// Build renders f as PDF bytes with a correct cross-reference table. Plain
// single-widget text forms come from TextFields instead.
func Build(f Form) []byte {
	if f.Pages < 1 {
		f.Pages = 1
	}

	b := &builder{}
	catalog := b.reserve()
	pages := b.reserve()
	font := b.add(helvetica())

	pageRefs := make([]int, f.Pages)
	for i := range pageRefs {
		pageRefs[i] = b.reserve()
	}
	annots := make([][]int, f.Pages)

	var fieldRefs []int
	for _, fd := range f.Fields {
		ref, widgets := b.addField(fd, pageRefs)
		fieldRefs = append(fieldRefs, ref)
		annots[fd.Page] = append(annots[fd.Page], widgets...)
	}

	for i, ref := range pageRefs {
		content := b.add(stream(pageContent(f.Texts, i), ""))
		dict := fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %g %g] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >>",
			pages, PageWidth, PageHeight, content, font)
		if len(annots[i]) > 0 {
			dict += " /Annots " + refArray(annots[i])
		}
		b.set(ref, dict+" >>")
	}
	b.set(pages, fmt.Sprintf("<< /Type /Pages /Kids %s /Count %d >>", refArray(pageRefs), len(pageRefs)))

	root := fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R", pages)
	if len(f.Fields) > 0 || f.XFA != "" {
		acro := fmt.Sprintf("<< /Fields %s /DA (/Helv 0 Tf 0 g) /DR << /Font << /Helv %d 0 R >> >>", refArray(fieldRefs), font)
		if f.XFA != "" {
			xfa := b.add(stream(f.XFA, ""))
			acro += fmt.Sprintf(" /XFA [(template) %d 0 R]", xfa)
		}
		root += " /AcroForm " + acro + " >>"
	}
	b.set(catalog, root+" >>")

	info := 0
	if f.Title != "" {
		info = b.add(fmt.Sprintf("<< /Title (%s) /Producer (testpdf) >>", escape(f.Title)))
	}
	return b.bytes(catalog, info)
}

// VisualForm returns a document without interactive fields whose first page
// carries the given labels, one per line from the top.
func VisualForm(labels ...string) []byte {
	texts := make([]Text, len(labels))
	for i, l := range labels {
		texts[i] = Text{X: 72, Y: 700 - float64(i)*40, Size: 12, S: l}
	}
	return Build(Form{Texts: texts})
}

func (b *builder) addField(fd Field, pageRefs []int) (int, []int) {
	page := pageRefs[fd.Page]
	common := fmt.Sprintf("/T (%s)", escape(fd.Name))
	if fd.Label != "" {
		common += fmt.Sprintf(" /TU (%s)", escape(fd.Label))
	}
	if fd.Flags != 0 {
		common += fmt.Sprintf(" /Ff %d", fd.Flags)
	}

	switch {
	case len(fd.Kids) > 0:
		parent := b.reserve()
		var kids []int
		for _, k := range fd.Kids {
			on := b.add(stream("", "/Type /XObject /Subtype /Form /BBox [0 0 10 10]"))
			off := b.add(stream("", "/Type /XObject /Subtype /Form /BBox [0 0 10 10]"))
			kids = append(kids, b.add(fmt.Sprintf(
				"<< /Type /Annot /Subtype /Widget /Parent %d 0 R /P %d 0 R /Rect %s /AS /Off /AP << /N << /%s %d 0 R /Off %d 0 R >> >> >>",
				parent, page, rect(k.Rect), k.State, on, off)))
		}
		b.set(parent, fmt.Sprintf("<< /FT /Btn %s /Kids %s >>", common, refArray(kids)))
		return parent, kids

	case fd.Type == "Btn":
		state := fd.OnState
		if state == "" {
			state = "Yes"
		}
		on := b.add(stream("", "/Type /XObject /Subtype /Form /BBox [0 0 10 10]"))
		off := b.add(stream("", "/Type /XObject /Subtype /Form /BBox [0 0 10 10]"))
		ref := b.add(fmt.Sprintf(
			"<< /Type /Annot /Subtype /Widget /FT /Btn %s /P %d 0 R /Rect %s /V /Off /AS /Off /AP << /N << /%s %d 0 R /Off %d 0 R >> >> >>",
			common, page, rect(fd.Rect), state, on, off))
		return ref, []int{ref}

	default:
		extra := ""
		if fd.MaxLen > 0 {
			extra += fmt.Sprintf(" /MaxLen %d", fd.MaxLen)
		}
		if len(fd.Options) > 0 {
			opts := make([]string, len(fd.Options))
			for i, o := range fd.Options {
				opts[i] = "(" + escape(o) + ")"
			}
			extra += " /Opt [" + strings.Join(opts, " ") + "]"
		}
		ref := b.add(fmt.Sprintf(
			"<< /Type /Annot /Subtype /Widget /FT /%s %s%s /P %d 0 R /Rect %s /DA (/Helv 0 Tf 0 g) >>",
			fd.Type, common, extra, page, rect(fd.Rect)))
		return ref, []int{ref}
	}
}

func pageContent(texts []Text, page int) string {
	var sb strings.Builder
	for _, t := range texts {
		if t.Page != page {
			continue
		}
		size := t.Size
		if size == 0 {
			size = 12
		}
		fmt.Fprintf(&sb, "BT /F1 %g Tf %g %g Td (%s) Tj ET\n", size, t.X, t.Y, escape(t.S))
	}
	return sb.String()
}

type builder struct {
	objects []string
}

func (b *builder) reserve() int {
	b.objects = append(b.objects, "")
	return len(b.objects)
}

func (b *builder) add(body string) int {
	n := b.reserve()
	b.set(n, body)
	return n
}

func (b *builder) set(n int, body string) {
	b.objects[n-1] = body
}

func (b *builder) bytes(root, info int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(b.objects))
	for i, body := range b.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	trailer := fmt.Sprintf("/Size %d /Root %d 0 R", len(b.objects)+1, root)
	if info > 0 {
		trailer += fmt.Sprintf(" /Info %d 0 R", info)
	}
	fmt.Fprintf(&buf, "trailer\n<< %s >>\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return buf.Bytes()
}

func stream(content, dict string) string {
	if dict != "" {
		dict += " "
	}
	return fmt.Sprintf("<< %s/Length %d >>\nstream\n%s\nendstream", dict, len(content), content)
}

func refArray(refs []int) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = fmt.Sprintf("%d 0 R", r)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func rect(r [4]float64) string {
	return fmt.Sprintf("[%g %g %g %g]", r[0], r[1], r[2], r[3])
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// helvetica is a Type1 font dictionary with explicit widths so text
// extractors can compute glyph positions.
func helvetica() string {
	widths := []int{
		278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278, // 32-47
		556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556, // 48-63
		1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778, // 64-79
		667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556, // 80-95
		333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556, // 96-111
		556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584, // 112-126
	}
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = fmt.Sprint(w)
	}
	return "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [" +
		strings.Join(parts, " ") + "] >>"
}
