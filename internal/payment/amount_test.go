package payment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"60", 6000},
		{"60.5", 6050},
		{"60.50", 6050},
		{"0.07", 7},
		{".5", 50},
		{"0", 0},
		{"-3.25", -325},
		{"+2", 200},
		{" 12.34 ", 1234},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseAmount_Rejections(t *testing.T) {
	for _, in := range []string{"", ".", "1.234", "abc", "1,50", "12.3x", "--1", "1e3"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseAmount(in)
			require.Error(t, err)
		})
	}
}

func TestParseAmount_RejectsOverlongWholePart(t *testing.T) {
	for _, in := range []string{
		strings.Repeat("9", 20),
		strings.Repeat("9", 25) + ".99",
		"-" + strings.Repeat("1", 19),
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseAmount(in)
			require.Error(t, err)
		})
	}

	// Leading zeros do not count against the limit, and amounts near the
	// boundary still parse exactly.
	got, err := ParseAmount("000000000000000000012.34")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), got)

	got, err = ParseAmount("999999999999999.99")
	require.NoError(t, err)
	assert.Equal(t, int64(99999999999999999), got)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "7.05", FormatCents(705, language.English))
	assert.Equal(t, "-3.25", FormatCents(-325, language.English))
	assert.Equal(t, "1,234.50", FormatCents(123450, language.English))
}
