package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMaterial(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Material
		wantErr  bool
	}{
		{name: "grey", input: "PA12_GREY", expected: MaterialPA12Grey},
		{name: "black", input: "PA12_BLACK", expected: MaterialPA12Black},
		{name: "glass bead", input: "PA12_GB", expected: MaterialPA12GB},
		{name: "lower case with spaces", input: "  pa12_grey ", expected: MaterialPA12Grey},
		{name: "unknown", input: "PLA", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMaterial(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				assert.Equal(t, MaterialUnknown, m)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, m)
			assert.True(t, m.Valid())
		})
	}
}

func TestMaterial_TextRoundTrip(t *testing.T) {
	for _, m := range Materials() {
		text, err := m.MarshalText()
		require.NoError(t, err)

		var parsed Material
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, m, parsed)
		assert.NotEmpty(t, m.Description())
		assert.NotEmpty(t, m.DisplayName())
	}

	assert.Equal(t, "PA12 Glass Bead", MaterialPA12GB.DisplayName())

	var m Material
	require.Error(t, m.UnmarshalText([]byte("NYLON")))
	assert.Equal(t, "UNKNOWN", MaterialUnknown.String())
	assert.False(t, MaterialUnknown.Valid())
}

func TestMaterialRates(t *testing.T) {
	rates := MaterialRates{PA12Grey: 0.50, PA12Black: 0.55, PA12GB: 0.60}

	assert.InDelta(t, 0.55, rates.Rate(MaterialPA12Black), 1e-9)
	assert.Zero(t, rates.Rate(MaterialUnknown))
}
