package schema

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"
)

// xfaPageHeightMM is the nominal page height used to split the absolute Y
// coordinates of single-flow XFA templates into pages
const xfaPageHeightMM = 280.0

const pointsPerMM = 72 / 25.4

// xfaField is a field declared in an XFA template, positioned in points
type xfaField struct {
	Name    string
	Path    string
	Label   string
	Kind    Kind
	Options []string
	Page    int
	X, Y    float64
	W, H    float64
}

// parseXFATemplate walks the template packet and returns its fields in
// document order. Malformed markup ends the walk but keeps what was parsed.
func parseXFATemplate(data []byte) []xfaField {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false

	var (
		fields   []xfaField
		subforms []string
		current  *xfaField
		speak    string
		depth    int // element depth inside the current field
		inCapt   int // depth of the open caption, 0 when outside
		inItems  int
		inText   bool
		inSpeak  bool
	)

	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}

		switch se := token.(type) {
		case xml.StartElement:
			if current == nil {
				switch se.Name.Local {
				case "subform", "exclGroup", "area":
					subforms = append(subforms, attr(se, "name"))
				case "field":
					current = &xfaField{Name: attr(se, "name"), Kind: KindText}
					current.Path = xfaPath(subforms, current.Name)
					x, y := xfaLength(attr(se, "x")), xfaLength(attr(se, "y"))
					current.Page = int(y / xfaPageHeightMM)
					current.X = x * pointsPerMM
					current.Y = (y - float64(current.Page)*xfaPageHeightMM) * pointsPerMM
					current.W = xfaLength(attr(se, "w")) * pointsPerMM
					current.H = xfaLength(attr(se, "h")) * pointsPerMM
					depth, inCapt, inItems, speak = 0, 0, 0, ""
				}
				continue
			}

			depth++
			switch se.Name.Local {
			case "caption":
				if inCapt == 0 {
					inCapt = depth
				}
			case "items":
				// a second items list carries export values
				if inItems == 0 && len(current.Options) == 0 {
					inItems = depth
				}
			case "checkButton":
				current.Kind = KindCheckbox
			case "choiceList":
				current.Kind = KindChoice
			case "speak":
				inSpeak = true
			case "text":
				inText = true
			}

		case xml.EndElement:
			if current == nil {
				switch se.Name.Local {
				case "subform", "exclGroup", "area":
					if len(subforms) > 0 {
						subforms = subforms[:len(subforms)-1]
					}
				}
				continue
			}

			if depth == 0 && se.Name.Local == "field" {
				if current.Label == "" {
					current.Label = speak
				}
				if current.Name != "" {
					fields = append(fields, *current)
				}
				current = nil
				continue
			}

			switch se.Name.Local {
			case "speak":
				inSpeak = false
			case "text":
				inText = false
			}
			if depth == inCapt {
				inCapt = 0
			}
			if depth == inItems {
				inItems = 0
			}
			depth--

		case xml.CharData:
			if current == nil {
				continue
			}
			text := strings.TrimSpace(string(se))
			if text == "" {
				continue
			}
			switch {
			case inSpeak && speak == "":
				speak = text
			case inText && inCapt > 0 && current.Label == "":
				current.Label = text
			case inText && inItems > 0:
				current.Options = append(current.Options, text)
			}
		}
	}

	return fields
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func xfaPath(subforms []string, name string) string {
	parts := make([]string, 0, len(subforms)+1)
	for _, s := range subforms {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(append(parts, name), ".")
}

// xfaLength converts an XFA measurement to millimetres. Unitless values are
// taken as millimetres.
func xfaLength(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}

	scale := 1.0
	for _, u := range []struct {
		suffix string
		scale  float64
	}{
		{"mm", 1},
		{"cm", 10},
		{"pt", 0.3528},
		{"in", 25.4},
	} {
		if strings.HasSuffix(v, u.suffix) {
			v, scale = strings.TrimSuffix(v, u.suffix), u.scale
			break
		}
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f * scale
}
