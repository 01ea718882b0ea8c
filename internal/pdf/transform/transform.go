// Package transform normalizes field values to the conventional written form
// for their purpose before they are placed on a form.
package transform

import (
	"regexp"
	"strings"
	"time"
)

// Purposes understood by Transform and produced by InferPurpose
const (
	PurposeText    = "text"
	PurposePhone   = "phone"
	PurposeDate    = "date"
	PurposeSSN     = "ssn"
	PurposeEmail   = "email"
	PurposeAddress = "address"
)

var (
	nonDigit = regexp.MustCompile(`\D`)
	isoDate  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Transform formats value for purpose. Values that do not fit the expected
// shape, and unknown purposes, are returned unchanged.
func Transform(value, purpose string) string {
	if value == "" || purpose == "" {
		return value
	}

	switch strings.ToLower(purpose) {
	case PurposePhone:
		return formatPhone(value)
	case PurposeDate:
		return formatDate(value)
	case PurposeSSN:
		return formatSSN(value)
	default:
		return value
	}
}

func formatPhone(value string) string {
	digits := nonDigit.ReplaceAllString(value, "")
	if len(digits) != 10 {
		return value
	}
	return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
}

func formatDate(value string) string {
	if !isoDate.MatchString(value) {
		return value
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return value
	}
	return t.Format("01/02/2006")
}

func formatSSN(value string) string {
	digits := nonDigit.ReplaceAllString(value, "")
	if len(digits) != 9 {
		return value
	}
	return digits[:3] + "-" + digits[3:5] + "-" + digits[5:]
}

var purposeHints = []struct {
	purpose string
	tokens  []string
}{
	{PurposePhone, []string{"phone", "mobile"}},
	{PurposeDate, []string{"date", "dob"}},
	{PurposeSSN, []string{"ssn"}},
	{PurposeEmail, []string{"email", "e-mail"}},
	{PurposeAddress, []string{"address", "street"}},
}

// InferPurpose guesses a field's purpose from its name, then its label.
// The first hint found in the name wins; the label is only consulted when the
// name says nothing.
func InferPurpose(name, label string) string {
	for _, text := range []string{name, label} {
		lower := strings.ToLower(text)
		if lower == "" {
			continue
		}
		for _, hint := range purposeHints {
			for _, tok := range hint.tokens {
				if strings.Contains(lower, tok) {
					return hint.purpose
				}
			}
		}
	}
	return PurposeText
}
