package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "phone", "phone", 1},
		{"both empty", "", "", 1},
		{"one empty", "abc", "", 0},
		{"shifted", "abcd", "bcde", 0.75},
		{"disjoint", "abc", "xyz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestRatioMultibyte(t *testing.T) {
	// "é" is one element, not two bytes
	assert.InDelta(t, 0.75, Ratio("café", "cafe"), 1e-9)
}

func TestCloseMatches(t *testing.T) {
	candidates := []string{"EmployeeName", "EmployeeAddress", "EmployerAddress", "Date"}

	got := CloseMatches("EmployeeAdress", candidates, 2, 0.7)
	assert.Equal(t, []string{"EmployeeAddress", "EmployerAddress"}, got)

	assert.Empty(t, CloseMatches("zzz", candidates, 3, 0.7))
	assert.Nil(t, CloseMatches("Date", candidates, 0, 0.7))
}

func TestBestMatch(t *testing.T) {
	got, ok := BestMatch("adress", []string{"address", "dress code"}, 0.8)
	assert.True(t, ok)
	assert.Equal(t, "address", got)

	_, ok = BestMatch("signature", []string{"address"}, 0.8)
	assert.False(t, ok)
}
