package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatMinorUnits(t *testing.T) {
	require.Equal(t, "25.50", FormatMinorUnits(2550))
	require.Equal(t, "0.05", FormatMinorUnits(5))
	require.Equal(t, "0.00", FormatMinorUnits(0))
	require.Equal(t, "10.00", FormatMinorUnits(1000))
	require.Equal(t, "-3.21", FormatMinorUnits(-321))
}

func TestParseMajorUnits(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int64
	}{
		{"25.50", 2550},
		{"25.5", 2550},
		{"25", 2500},
		{"0.05", 5},
		{"0", 0},
		// more than two decimals rounds half away from zero
		{"1.005", 101},
		{"1.004", 100},
		{"-1.005", -101},
		{" 12.34 ", 1234},
	} {
		got, err := ParseMajorUnits(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestParseMajorUnitsRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "12,34"} {
		_, err := ParseMajorUnits(in)
		require.Error(t, err, "input %q", in)
	}
}

func TestMoneyRoundTrip(t *testing.T) {
	for _, amount := range []int64{1, 99, 100, 2550, 123456789} {
		got, err := ParseMajorUnits(FormatMinorUnits(amount))
		require.NoError(t, err)
		require.Equal(t, amount, got)
	}
}
