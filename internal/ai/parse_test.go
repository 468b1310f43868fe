package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"envelope", "$2400$", 2400, false},
		{"envelope with text", "counter at $2350.5$ please", 2350.5, false},
		{"thousands separator", "$2,450$", 2450, false},
		{"fallback number", "I would offer 2300 per quintal", 2300, false},
		{"longest number wins", "for 100 quintal offer 2300", 2300, false},
		{"first envelope", "$1$ and $2$", 1, false},
		{"no number", "nothing here", 0, true},
		{"zero", "$0$", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrParseFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePriceWithUnit(t *testing.T) {
	v, unit, err := ParsePriceWithUnit("about 2,300 per Quintal")
	require.NoError(t, err)
	assert.Equal(t, 2300.0, v)
	assert.Equal(t, "quintal", unit)

	v, unit, err = ParsePriceWithUnit("2300/kg")
	require.NoError(t, err)
	assert.Equal(t, 2300.0, v)
	assert.Equal(t, "kg", unit)
}
