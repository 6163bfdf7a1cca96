package sku

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantBase  string
		wantLot   string
		wantError bool
	}{
		{
			name:     "bare base SKU",
			raw:      "4711",
			wantBase: "4711",
			wantLot:  "",
		},
		{
			name:     "base SKU with lot suffix",
			raw:      "4711-L23",
			wantBase: "4711",
			wantLot:  "L23",
		},
		{
			name:     "hyphenated base SKU without lot",
			raw:      "AB-100-XL",
			wantBase: "AB-100-XL",
			wantLot:  "",
		},
		{
			name:     "hyphenated base SKU with lot",
			raw:      "AB-100-L7",
			wantBase: "AB-100",
			wantLot:  "L7",
		},
		{
			name:     "lowercase l is not a lot suffix",
			raw:      "4711-l23",
			wantBase: "4711-l23",
			wantLot:  "",
		},
		{
			name:     "lot suffix requires digits",
			raw:      "4711-LABC",
			wantBase: "4711-LABC",
			wantLot:  "",
		},
		{
			name:     "surrounding whitespace is trimmed",
			raw:      "  4711-L23 ",
			wantBase: "4711",
			wantLot:  "L23",
		},
		{
			name:      "empty token",
			raw:       "",
			wantError: true,
		},
		{
			name:      "whitespace only",
			raw:       "   ",
			wantError: true,
		},
		{
			name:      "leading separator",
			raw:       "-L23",
			wantError: true,
		},
		{
			name:      "trailing separator",
			raw:       "4711-",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := Parse(tt.raw)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, token.BaseSKU)
			assert.Equal(t, tt.wantLot, token.LotNumber)
			assert.Equal(t, tt.wantLot != "", token.HasLot())
		})
	}
}

func TestCompose(t *testing.T) {
	assert.Equal(t, "4711-L23", Compose("4711", "L23"))
	assert.Equal(t, "4711", Compose("4711", ""))
}

func TestComposeRoundTrip(t *testing.T) {
	token, err := Parse(Compose("AB-100", "L7"))
	require.NoError(t, err)
	assert.Equal(t, "AB-100", token.BaseSKU)
	assert.Equal(t, "L7", token.LotNumber)
}
