package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormType(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"2025 Form 1040 U.S. Individual Income Tax Return", FormIRS1040},
		{"Form 1040 tax return", FormIRS1040},
		{"Form 1040-ES vouchers", ""},
		{"Employment application", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormType(tt.title))
		})
	}
}

func TestApplyKnownForm(t *testing.T) {
	fields := []CanonicalField{
		{Name: "topmostSubform[0].Page1[0].f1_03[0]"},
		{Name: "topmostSubform[0].Page1[0].f1_47[0]"},
		{Name: "topmostSubform[0].Page1[0].c1_1[0]"},
		{Name: "topmostSubform[0].Page1[0].unknown[0]", Label: "kept"},
	}
	applyKnownForm(FormIRS1040, fields)

	assert.Equal(t, "Your social security number", fields[0].Label)
	assert.Equal(t, "Personal Information", fields[0].Section)
	assert.Equal(t, "ssn", fields[0].Purpose)
	require.NotNil(t, fields[0].Constraints.Pattern)
	assert.True(t, fields[0].Constraints.Pattern.MatchString("123-45-6789"))
	assert.False(t, fields[0].Constraints.Pattern.MatchString("12-345"))

	assert.Equal(t, "W-2 wages and salaries", fields[1].Label)
	require.NotNil(t, fields[1].Constraints.Pattern)
	assert.True(t, fields[1].Constraints.Pattern.MatchString("$52,000.00"))
	assert.False(t, fields[1].Constraints.Pattern.MatchString("lots"))

	assert.Equal(t, "Single", fields[2].Label)
	assert.Nil(t, fields[2].Constraints.Pattern)
	assert.Equal(t, "kept", fields[3].Label)

	other := []CanonicalField{{Name: "f1_01"}}
	applyKnownForm("", other)
	assert.Empty(t, other[0].Label)
}
