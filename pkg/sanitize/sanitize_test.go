package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "ferrari-296-gt3", "ferrari-296-gt3"},
		{"illegal characters", `a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"surrounding spaces and periods", "  .Spa Francorchamps.. ", "Spa Francorchamps"},
		{"inner periods kept", "v1.2.sto", "v1.2.sto"},
		{"non-ascii kept", "Nürburgring Nordschleife – 24h", "Nürburgring Nordschleife – 24h"},
		{"only periods", "...", ""},
		{"illegal at edge", "?track?", "_track_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Filename(tt.input))
		})
	}
}

func TestFilenameTruncates(t *testing.T) {
	long := strings.Repeat("é", 250)
	out := Filename(long)
	assert.Equal(t, MaxLength, utf8.RuneCountInString(out))

	// a space landing on the cut must not survive as a trailing character
	edge := strings.Repeat("a", MaxLength-1) + " b"
	out = Filename(edge)
	assert.Equal(t, strings.Repeat("a", MaxLength-1), out)
}

func TestFilenameProperties(t *testing.T) {
	inputs := []string{
		"", " ", ". .", "carX", "Team A / Garage 61", `C:\setups\week 12`,
		"  mixed ünïcödé <name>.  ", strings.Repeat("x.", 150) + " ",
		"龍の道?", "\ttabbed\n",
	}

	for _, in := range inputs {
		out := Filename(in)
		assert.False(t, strings.ContainsAny(out, `<>:"/\|?*`), "illegal char in %q", out)
		assert.LessOrEqual(t, utf8.RuneCountInString(out), MaxLength)
		if out != "" {
			assert.NotContains(t, " .", out[:1])
			assert.NotContains(t, " .", out[len(out)-1:])
		}
		assert.Equal(t, out, Filename(out), "not a fixed point for %q", in)
	}
}
