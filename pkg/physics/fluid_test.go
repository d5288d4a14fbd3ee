package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFluidByName(t *testing.T) {
	tests := []struct {
		name    string
		fluid   string
		wantErr bool
	}{
		{name: "water", fluid: "water"},
		{name: "glycol60", fluid: "glycol60"},
		{name: "unknown", fluid: "mercury", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := FluidByName(tt.fluid)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.fluid, f.Name)
			assert.NotNil(t, f.Density)
			assert.NotNil(t, f.SpecificHeat)
		})
	}
}

func TestWaterProperties(t *testing.T) {
	f, err := FluidByName("water")
	require.NoError(t, err)

	// Density maximum is near 4 degC at 0.999975 kg/l.
	assert.InDelta(t, 0.999975, f.Density(4.0), 1e-4)
	assert.InDelta(t, 0.998, f.Density(20.0), 1e-3)

	// c_p minimum sits in the 30-40 degC plateau.
	assert.InDelta(t, 4181.9, f.SpecificHeat(20.0), 0.1)
	assert.InDelta(t, 4178.55, f.SpecificHeat(35.0), 0.5)
}

func TestGlycolProperties(t *testing.T) {
	f, err := FluidByName("glycol60")
	require.NoError(t, err)

	// Exact table points interpolate exactly.
	assert.InDelta(t, 1.085007, f.Density(20.0), 1e-9)
	assert.InDelta(t, 3152.32, f.SpecificHeat(20.0), 1e-6)

	// Midpoint between two table entries is the mean.
	assert.InDelta(t, (3152.32+3181.33)/2, f.SpecificHeat(22.5), 1e-6)
}

func TestTableClamping(t *testing.T) {
	f, err := FluidByName("glycol60")
	require.NoError(t, err)

	assert.Equal(t, f.Density(-40.0), f.Density(-80.0))
	assert.Equal(t, f.SpecificHeat(105.0), f.SpecificHeat(200.0))
}
