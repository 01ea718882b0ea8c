package acroform

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// XFAPackets returns the decoded XFA packets keyed by packet name. A single
// stream XFA entry is returned under the key "xdp".
func (d *Document) XFAPackets() (map[string][]byte, error) {
	acro, err := d.acroFormDict(false)
	if err != nil || acro == nil {
		return nil, err
	}
	xfaObj, found := acro.Find("XFA")
	if !found {
		return nil, nil
	}

	obj, err := d.ctx.Dereference(xfaObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference XFA: %w", err)
	}

	packets := make(map[string][]byte)
	switch x := obj.(type) {
	case types.StreamDict:
		data, err := d.streamContent(x)
		if err != nil {
			return nil, err
		}
		packets["xdp"] = data
	case types.Array:
		for i := 0; i+1 < len(x); i += 2 {
			name, err := d.ctx.DereferenceStringOrHexLiteral(x[i], model.V10, nil)
			if err != nil {
				continue
			}
			so, err := d.ctx.Dereference(x[i+1])
			if err != nil {
				continue
			}
			sd, ok := so.(types.StreamDict)
			if !ok {
				continue
			}
			data, err := d.streamContent(sd)
			if err != nil {
				continue
			}
			packets[name] = data
		}
	default:
		return nil, fmt.Errorf("unexpected XFA entry type %T", obj)
	}
	return packets, nil
}

func (d *Document) streamContent(sd types.StreamDict) ([]byte, error) {
	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("failed to decode stream: %w", err)
	}
	return sd.Content, nil
}
