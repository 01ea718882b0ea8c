package acroform

import (
	"fmt"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
)

// Kind is the interactive type of a field
type Kind string

const (
	KindText      Kind = "text"
	KindCheckbox  Kind = "checkbox"
	KindRadio     Kind = "radio"
	KindChoice    Kind = "choice"
	KindButton    Kind = "button"
	KindSignature Kind = "signature"
	KindUnknown   Kind = "unknown"
)

// Field flag bits (PDF 32000-1, 12.7.3.1 and 12.7.4)
const (
	flagReadOnly   = 1 << 0
	flagRequired   = 1 << 1
	flagRadio      = 1 << 15
	flagPushbutton = 1 << 16
	flagCombo      = 1 << 17
	flagEdit       = 1 << 18
)

// Rect is a rectangle in PDF user space (origin bottom-left)
type Rect struct {
	LLX, LLY, URX, URY float64
}

// Width of the rectangle
func (r Rect) Width() float64 { return r.URX - r.LLX }

// Height of the rectangle
func (r Rect) Height() float64 { return r.URY - r.LLY }

// Widget is one visual instance of a field
type Widget struct {
	// Page is 1-based, 0 when unknown
	Page int
	Rect Rect

	// States are the on-state appearance names, without Off
	States []string

	dict types.Dict
}

// Option is one entry of a choice field
type Option struct {
	Export  string `json:"export"`
	Display string `json:"display"`
}

// Field is a terminal form field
type Field struct {
	Name     string
	Partial  string
	Kind     Kind
	Label    string
	Value    string
	MaxLen   int
	Required bool
	ReadOnly bool
	Editable bool
	Options  []Option
	Widgets  []Widget

	dict types.Dict
}

// OnStates returns the distinct on-state names across the field's widgets
func (f *Field) OnStates() []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range f.Widgets {
		for _, s := range w.States {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// inherited carries the inheritable attributes of ancestors
type inherited struct {
	ft     string
	ff     int
	maxLen int
	value  types.Object
	opt    types.Object
}

func (d *Document) collectFields() error {
	acro, err := d.acroFormDict(false)
	if err != nil {
		return err
	}
	if acro == nil {
		return nil
	}

	fieldsObj, found := acro.Find("Fields")
	if !found {
		return nil
	}
	fieldsArray, err := d.ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	visited := make(map[int]bool)
	for i, ref := range fieldsArray {
		d.walk(ref, "", inherited{}, visited, i)
	}
	return nil
}

// walk descends the field tree. Kids carrying a T entry are child fields;
// kids without one are widget annotations of the current field.
func (d *Document) walk(obj types.Object, parent string, inh inherited, visited map[int]bool, index int) {
	objNr, isRef := objectNumber(obj)
	if isRef {
		if visited[objNr] {
			return
		}
		visited[objNr] = true
	}

	dict, err := d.ctx.DereferenceDict(obj)
	if err != nil || dict == nil {
		d.logger.Debug("acroform.field.skipped", zap.Int("index", index), zap.Error(err))
		return
	}

	partial := d.text(dict, "T")
	name := partial
	switch {
	case parent != "" && partial != "":
		name = parent + "." + partial
	case parent != "":
		name = parent
	case partial == "":
		name = fmt.Sprintf("field_%d", index)
	}
	inh = d.inherit(dict, inh)

	var childFields, widgetRefs []types.Object
	if kidsObj, found := dict.Find("Kids"); found {
		if kids, err := d.ctx.DereferenceArray(kidsObj); err == nil {
			for _, kid := range kids {
				kd, err := d.ctx.DereferenceDict(kid)
				if err != nil || kd == nil {
					continue
				}
				if _, hasT := kd.Find("T"); hasT {
					childFields = append(childFields, kid)
				} else {
					widgetRefs = append(widgetRefs, kid)
				}
			}
		}
	}

	for i, child := range childFields {
		d.walk(child, name, inh, visited, i)
	}
	if len(childFields) > 0 && len(widgetRefs) == 0 {
		return
	}

	field := &Field{
		Name:    name,
		Partial: partial,
		Label:   d.text(dict, "TU"),
		dict:    dict,
	}
	d.describe(field, inh)

	if len(widgetRefs) == 0 {
		if _, hasRect := dict.Find("Rect"); hasRect {
			field.Widgets = append(field.Widgets, d.widget(obj, dict))
		}
	}
	for _, ref := range widgetRefs {
		if wd, err := d.ctx.DereferenceDict(ref); err == nil && wd != nil {
			field.Widgets = append(field.Widgets, d.widget(ref, wd))
		}
	}

	if _, dup := d.byName[field.Name]; dup {
		d.logger.Debug("acroform.field.duplicate", zap.String("name", field.Name))
		return
	}
	d.fields = append(d.fields, field)
	d.byName[field.Name] = field
}

func (d *Document) inherit(dict types.Dict, inh inherited) inherited {
	if o, found := dict.Find("FT"); found {
		if ft, err := d.ctx.DereferenceName(o, model.V10, nil); err == nil {
			inh.ft = string(ft)
		}
	}
	if o, found := dict.Find("Ff"); found {
		if ff, err := d.ctx.DereferenceInteger(o); err == nil && ff != nil {
			inh.ff = int(*ff)
		}
	}
	if o, found := dict.Find("MaxLen"); found {
		if ml, err := d.ctx.DereferenceInteger(o); err == nil && ml != nil {
			inh.maxLen = int(*ml)
		}
	}
	if o, found := dict.Find("V"); found {
		inh.value = o
	}
	if o, found := dict.Find("Opt"); found {
		inh.opt = o
	}
	return inh
}

func (d *Document) describe(f *Field, inh inherited) {
	f.Kind = kindOf(inh.ft, inh.ff)
	f.MaxLen = inh.maxLen
	f.ReadOnly = inh.ff&flagReadOnly != 0
	f.Required = inh.ff&flagRequired != 0
	f.Editable = inh.ff&flagEdit != 0

	if inh.value != nil {
		switch f.Kind {
		case KindCheckbox, KindRadio:
			if n, err := d.ctx.DereferenceName(inh.value, model.V10, nil); err == nil {
				f.Value = string(n)
			}
		default:
			if s, err := d.ctx.DereferenceStringOrHexLiteral(inh.value, model.V10, nil); err == nil {
				f.Value = s
			}
		}
	}

	if f.Kind == KindChoice && inh.opt != nil {
		f.Options = d.options(inh.opt)
	}
}

func kindOf(ft string, ff int) Kind {
	switch ft {
	case "Btn":
		if ff&flagRadio != 0 {
			return KindRadio
		}
		if ff&flagPushbutton != 0 {
			return KindButton
		}
		return KindCheckbox
	case "Tx":
		return KindText
	case "Ch":
		return KindChoice
	case "Sig":
		return KindSignature
	default:
		return KindUnknown
	}
}

// options reads Opt entries, either plain strings or [export display] pairs
func (d *Document) options(o types.Object) []Option {
	arr, err := d.ctx.DereferenceArray(o)
	if err != nil {
		return nil
	}

	var out []Option
	for _, item := range arr {
		if s, err := d.ctx.DereferenceStringOrHexLiteral(item, model.V10, nil); err == nil {
			out = append(out, Option{Export: s, Display: s})
			continue
		}
		pair, err := d.ctx.DereferenceArray(item)
		if err != nil || len(pair) < 2 {
			continue
		}
		export, err1 := d.ctx.DereferenceStringOrHexLiteral(pair[0], model.V10, nil)
		display, err2 := d.ctx.DereferenceStringOrHexLiteral(pair[1], model.V10, nil)
		if err1 == nil && err2 == nil {
			out = append(out, Option{Export: export, Display: display})
		}
	}
	return out
}

func (d *Document) widget(ref types.Object, dict types.Dict) Widget {
	w := Widget{dict: dict}

	if objNr, ok := objectNumber(ref); ok {
		w.Page = d.widgetPages[objNr]
	}
	if w.Page == 0 {
		if p, found := dict.Find("P"); found {
			if objNr, ok := objectNumber(p); ok {
				w.Page = d.pageRefs[objNr]
			}
		}
	}

	if rectObj, found := dict.Find("Rect"); found {
		if arr, err := d.ctx.DereferenceArray(rectObj); err == nil && len(arr) == 4 {
			var c [4]float64
			for i, v := range arr {
				if f, err := d.ctx.DereferenceNumber(v); err == nil {
					c[i] = f
				}
			}
			w.Rect = Rect{
				LLX: min(c[0], c[2]), LLY: min(c[1], c[3]),
				URX: max(c[0], c[2]), URY: max(c[1], c[3]),
			}
		}
	}

	w.States = d.onStates(dict)
	return w
}

// onStates lists the names in /AP /N other than Off
func (d *Document) onStates(dict types.Dict) []string {
	apObj, found := dict.Find("AP")
	if !found {
		return nil
	}
	ap, err := d.ctx.DereferenceDict(apObj)
	if err != nil || ap == nil {
		return nil
	}
	nObj, found := ap.Find("N")
	if !found {
		return nil
	}
	n, err := d.ctx.DereferenceDict(nObj)
	if err != nil || n == nil {
		return nil
	}

	var states []string
	for k := range n {
		if k != "Off" {
			states = append(states, k)
		}
	}
	sort.Strings(states)
	return states
}

// text reads a string entry, returning "" when absent or malformed
func (d *Document) text(dict types.Dict, key string) string {
	o, found := dict.Find(key)
	if !found {
		return ""
	}
	s, err := d.ctx.DereferenceStringOrHexLiteral(o, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}
