package acroform

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"

	pdferrors "github.com/a3tai/mcp-pdf-formfill/internal/pdf/errors"
)

const (
	stateOff = "Off"
	stateYes = "Yes"
)

// SetText stores value as the field's V entry. Existing appearance streams are
// dropped so viewers regenerate them from the new value.
func (d *Document) SetText(f *Field, value string) error {
	obj, err := EncodeText(value)
	if err != nil {
		return pdferrors.Wrap(pdferrors.KindFilling, "cannot encode value", err).WithField(f.Name)
	}
	f.dict["V"] = obj
	for _, w := range f.Widgets {
		delete(w.dict, "AP")
	}
	f.Value = value
	return nil
}

// SetCheckbox checks or clears a checkbox and returns the state written
func (d *Document) SetCheckbox(f *Field, checked bool) string {
	on := stateYes
	if states := f.OnStates(); len(states) > 0 {
		on = states[0]
	}
	state := stateOff
	if checked {
		state = on
	}
	d.setState(f, state)
	return state
}

// SetRadio selects the radio button whose state matches value
func (d *Document) SetRadio(f *Field, value string) (string, error) {
	state, ok := ChooseState(value, f.OnStates())
	if !ok {
		return "", pdferrors.Newf(pdferrors.KindFilling, "no radio option matches %q", value).
			WithField(f.Name).
			WithDetail("options", f.OnStates())
	}
	d.setState(f, state)
	return state, nil
}

func (d *Document) setState(f *Field, state string) {
	f.dict["V"] = types.Name(state)
	for _, w := range f.Widgets {
		as := stateOff
		for _, s := range w.States {
			if s == state {
				as = state
				break
			}
		}
		w.dict["AS"] = types.Name(as)
	}
	f.Value = state
}

// SetChoice selects the option matching value and returns its display text.
// Fields without options, or editable combo boxes, accept the value verbatim.
func (d *Document) SetChoice(f *Field, value string) (string, error) {
	opt, ok := ChooseOption(value, f.Options)
	if !ok {
		if len(f.Options) > 0 && !f.Editable {
			return "", pdferrors.Newf(pdferrors.KindFilling, "no option matches %q", value).
				WithField(f.Name).
				WithDetail("options", len(f.Options))
		}
		opt = Option{Export: value, Display: value}
	}

	obj, err := EncodeText(opt.Export)
	if err != nil {
		return "", pdferrors.Wrap(pdferrors.KindFilling, "cannot encode value", err).WithField(f.Name)
	}
	f.dict["V"] = obj
	for _, w := range f.Widgets {
		delete(w.dict, "AP")
	}
	f.Value = opt.Export
	return opt.Display, nil
}

// SetNeedAppearances asks viewers to regenerate field appearances, creating
// the AcroForm dictionary when the document has none.
func (d *Document) SetNeedAppearances() error {
	acro, err := d.acroFormDict(true)
	if err != nil {
		return err
	}
	acro["NeedAppearances"] = types.Boolean(true)
	return nil
}

// HasXFA reports whether the AcroForm carries an XFA entry
func (d *Document) HasXFA() bool {
	acro, err := d.acroFormDict(false)
	if err != nil || acro == nil {
		return false
	}
	_, found := acro.Find("XFA")
	return found
}

// RemoveXFA drops the XFA entry so viewers render the AcroForm values
func (d *Document) RemoveXFA() bool {
	acro, err := d.acroFormDict(false)
	if err != nil || acro == nil {
		return false
	}
	if _, found := acro.Find("XFA"); !found {
		return false
	}
	delete(acro, "XFA")
	return true
}

// RemoveWidgets deletes widget annotations from every page, keeping all other
// annotations, and returns how many were removed.
func (d *Document) RemoveWidgets() (int, error) {
	removed := 0
	for pageNr := 1; pageNr <= d.ctx.PageCount; pageNr++ {
		pageDict, _, _, err := d.ctx.PageDict(pageNr, false)
		if err != nil {
			return removed, fmt.Errorf("failed to read page %d: %w", pageNr, err)
		}
		annotsObj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := d.ctx.DereferenceArray(annotsObj)
		if err != nil {
			continue
		}

		kept := make(types.Array, 0, len(annots))
		for _, a := range annots {
			ad, err := d.ctx.DereferenceDict(a)
			if err == nil && ad != nil {
				if st, found := ad.Find("Subtype"); found {
					if name, ok := st.(types.Name); ok && name == "Widget" {
						removed++
						continue
					}
				}
			}
			kept = append(kept, a)
		}

		if len(kept) == 0 {
			delete(pageDict, "Annots")
		} else {
			pageDict["Annots"] = kept
		}
	}

	d.logger.Debug("acroform.widgets.removed", zap.Int("count", removed))
	return removed, nil
}
