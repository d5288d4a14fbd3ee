package measure

import (
	"testing"

	"github.com/isoflux/isoflux/pkg/adc"
	"github.com/isoflux/isoflux/pkg/config"
	"github.com/isoflux/isoflux/pkg/flow"
	"github.com/isoflux/isoflux/pkg/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// benchInstrument wires a full instrument against a synthetic scene.
func benchInstrument(t *testing.T, temps map[string]float64, flowVolts float64) (*IsoFlux, *adc.Mock) {
	t.Helper()
	cfg := testConfig()
	mock := sceneReader(t, cfg, temps, flowVolts)

	fluid, err := physics.FluidByName(cfg.Fluid)
	require.NoError(t, err)

	est := flow.NewVoltageSensor(mock,
		config.MuxAddr(cfg.Flow.Mux, cfg.ADC.CommonMux),
		cfg.Flow.Offset, cfg.VPerDigit(), cfg.Flow.Sensitivity,
		cfg.Filter.FlowWindow, fluid.Density)

	ix, err := New(mock, est, cfg)
	require.NoError(t, err)
	return ix, mock
}

func TestNew_VectorLayout(t *testing.T) {
	ix, _ := benchInstrument(t, map[string]float64{
		"cold": 24.0, "hs_1": 26.0, "hs_2": 28.0,
	}, 0.5)

	// 3 channels in series: exactly 2 measurement units, 3-element vectors.
	assert.Len(t, ix.Measurements(), 2)

	snap := ix.Snapshot()
	assert.Len(t, snap.Resistance, 3)
	assert.Len(t, snap.Temperature, 3)
	assert.Len(t, snap.Power, 3)
	assert.Equal(t, "bench", snap.ID)
	assert.Equal(t, []string{"Cold Inlet", "Heat Source 1", "Heat Source 2"}, snap.Info)
}

func TestScanAll_EndToEnd(t *testing.T) {
	ix, _ := benchInstrument(t, map[string]float64{
		"cold": 24.0, "hs_1": 26.0, "hs_2": 28.0,
	}, 0.5)

	require.NoError(t, ix.ScanAll())
	snap := ix.Snapshot()

	// Index 0 is the coolant influx point.
	assert.InDelta(t, 24.0, snap.Temperature[0], 0.01)
	assert.InDelta(t, 26.0, snap.Temperature[1], 0.01)
	assert.InDelta(t, 28.0, snap.Temperature[2], 0.01)
	assert.Equal(t, 0.0, snap.Power[0], "influx point has no power reading")
	assert.InDelta(t, 24.0, snap.RefTemperature, 0.01)

	// Flow: 0.5 V * 0.02371 l/s/V, mass flow scaled by glycol density.
	assert.InDelta(t, 0.5*23.71/1000, snap.FlowLiterSec, 1e-4)
	assert.Greater(t, snap.FlowKgSec, snap.FlowLiterSec,
		"glycol60 is denser than 1 kg/l in this range")

	// Heat balance: ~2 K differential at ~10 g/s and c_p ~3160 J/(kg K).
	assert.Greater(t, snap.Power[1], 0.0)
	assert.InDelta(t, snap.FlowKgSec*3160.0*2.0, snap.Power[1], 5.0)
}

func TestScanAll_PowerZeroForIsothermalLoop(t *testing.T) {
	ix, _ := benchInstrument(t, map[string]float64{
		"cold": 25.0, "hs_1": 25.0, "hs_2": 25.0,
	}, 0.5)

	require.NoError(t, ix.ScanAll())
	snap := ix.Snapshot()

	// No differential means no power beyond count quantization noise.
	assert.InDelta(t, 0.0, snap.Power[1], 0.5)
	assert.InDelta(t, 0.0, snap.Power[2], 0.5)
}

func TestZeroAll_IdempotentInStaticScene(t *testing.T) {
	ix, _ := benchInstrument(t, map[string]float64{
		"cold": 24.0, "hs_1": 26.0, "hs_2": 28.0,
	}, 0.5)

	require.NoError(t, ix.ScanAll())
	ix.ZeroAll()
	require.NoError(t, ix.ScanAll())

	snap := ix.Snapshot()
	for i := range snap.Power {
		assert.Equal(t, 0.0, snap.Power[i], "channel %d after zero-all", i)
	}

	// A second application in the same static scene changes nothing.
	ix.ZeroAll()
	require.NoError(t, ix.ScanAll())
	snap = ix.Snapshot()
	for i := range snap.Power {
		assert.Equal(t, 0.0, snap.Power[i], "channel %d after second zero-all", i)
	}
}

func TestTare_DrivesChannelToZero(t *testing.T) {
	ix, _ := benchInstrument(t, map[string]float64{
		"cold": 24.0, "hs_1": 26.0, "hs_2": 28.0,
	}, 0.5)

	require.NoError(t, ix.ScanAll())
	before := ix.Snapshot()
	require.Greater(t, before.Power[1], 0.0)

	require.NoError(t, ix.Tare(1))
	require.NoError(t, ix.ScanAll())

	snap := ix.Snapshot()
	assert.Equal(t, 0.0, snap.Power[1], "tared channel reads zero in a static scene")
	assert.InDelta(t, before.Power[2], snap.Power[2], 1e-9, "other channels unaffected")
	assert.Equal(t, before.Power[1], snap.PowerOffset[1])
}

func TestTare_OutOfRangeLeavesStateUntouched(t *testing.T) {
	ix, _ := benchInstrument(t, map[string]float64{
		"cold": 24.0, "hs_1": 26.0, "hs_2": 28.0,
	}, 0.5)
	require.NoError(t, ix.ScanAll())

	before := ix.PowerOffsets()

	for _, ch := range []int{-1, 0, 3, 99} {
		err := ix.Tare(ch)
		require.Error(t, err, "channel %d", ch)
		assert.ErrorIs(t, err, ErrChannelRange)
	}

	assert.Equal(t, before, ix.PowerOffsets())
}

func TestSetPowerOffset(t *testing.T) {
	ix, _ := benchInstrument(t, map[string]float64{
		"cold": 24.0, "hs_1": 26.0, "hs_2": 28.0,
	}, 0.5)

	require.NoError(t, ix.SetPowerOffset(2, 1.25))
	assert.Equal(t, 1.25, ix.PowerOffsets()[2])

	err := ix.SetPowerOffset(7, 1.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChannelRange)
}

func TestScanAll_HardwareErrorPropagates(t *testing.T) {
	ix, mock := benchInstrument(t, map[string]float64{
		"cold": 24.0, "hs_1": 26.0, "hs_2": 28.0,
	}, 0.5)

	mock.FailWith(adc.ErrTimeout)
	err := ix.ScanAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, adc.ErrTimeout)
}
