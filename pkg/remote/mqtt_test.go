package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isoflux/isoflux/pkg/measure"
)

// fakeInstrument records calibration calls without a measurement chain.
type fakeInstrument struct {
	offsets []float64

	taredCh   int
	tareCalls int
	tareErr   error
}

func (f *fakeInstrument) Snapshot() measure.Snapshot {
	return measure.Snapshot{
		ID:          "test",
		Power:       []float64{0, 1.5, 2.5},
		PowerOffset: f.offsets,
		Temperature: []float64{20, 21, 22},
		FlowKgSec:   0.01,
	}
}

func (f *fakeInstrument) Tare(ch int) error {
	f.tareCalls++
	if f.tareErr != nil {
		return f.tareErr
	}
	f.taredCh = ch
	return nil
}

func (f *fakeInstrument) SetPowerOffset(ch int, v float64) error {
	if ch < 0 || ch >= len(f.offsets) {
		return measure.ErrChannelRange
	}
	f.offsets[ch] = v
	return nil
}

func (f *fakeInstrument) PowerOffsets() []float64 {
	out := make([]float64, len(f.offsets))
	copy(out, f.offsets)
	return out
}

// testSurface wires a fake instrument and captures published payloads
// without a broker connection.
func testSurface(inst Instrument, shutdown func()) (*Surface, *map[string][]byte) {
	published := make(map[string][]byte)
	if shutdown == nil {
		shutdown = func() {}
	}
	s := New("cal0", inst, shutdown)
	s.publish = func(topic string, payload []byte) {
		published[topic] = payload
	}
	return s, &published
}

func TestDispatchTare(t *testing.T) {
	inst := &fakeInstrument{offsets: []float64{0, 0, 0}}
	s, published := testSurface(inst, nil)

	err := s.dispatch("tare", []byte("2"))
	require.NoError(t, err)
	assert.Equal(t, 2, inst.taredCh)

	// the mutation publishes the offset vector without waiting for the
	// status ticker
	payload, ok := (*published)["cal0/offset"]
	require.True(t, ok)
	var offsets []float64
	require.NoError(t, json.Unmarshal(payload, &offsets))
	assert.Len(t, offsets, 3)
}

func TestDispatchTareMalformed(t *testing.T) {
	inst := &fakeInstrument{offsets: []float64{0, 0}}
	s, published := testSurface(inst, nil)

	err := s.dispatch("tare", []byte("not-a-number"))
	assert.Error(t, err)
	assert.Zero(t, inst.tareCalls)
	assert.Empty(t, *published)
}

func TestDispatchTareRejected(t *testing.T) {
	inst := &fakeInstrument{
		offsets: []float64{0, 0},
		tareErr: measure.ErrChannelRange,
	}
	s, published := testSurface(inst, nil)

	err := s.dispatch("tare", []byte("7"))
	assert.ErrorIs(t, err, measure.ErrChannelRange)
	assert.Empty(t, *published, "rejected command must not publish offsets")
}

func TestDispatchSetOffset(t *testing.T) {
	inst := &fakeInstrument{offsets: []float64{0, 0, 0}}
	s, published := testSurface(inst, nil)

	err := s.dispatch("set_offsets/1", []byte("0.125"))
	require.NoError(t, err)
	assert.Equal(t, 0.125, inst.offsets[1])
	assert.Contains(t, *published, "cal0/offset")
}

func TestDispatchSetOffsetOutOfRange(t *testing.T) {
	inst := &fakeInstrument{offsets: []float64{0, 0}}
	s, _ := testSurface(inst, nil)

	err := s.dispatch("set_offsets/9", []byte("1.0"))
	assert.ErrorIs(t, err, measure.ErrChannelRange)
	assert.Equal(t, []float64{0, 0}, inst.offsets)
}

func TestDispatchSetOffsetMalformed(t *testing.T) {
	inst := &fakeInstrument{offsets: []float64{0, 0}}
	s, _ := testSurface(inst, nil)

	assert.Error(t, s.dispatch("set_offsets/x", []byte("1.0")))
	assert.Error(t, s.dispatch("set_offsets/1", []byte("watts")))
	assert.Equal(t, []float64{0, 0}, inst.offsets)
}

func TestDispatchPoweroff(t *testing.T) {
	inst := &fakeInstrument{offsets: []float64{0}}

	called := false
	s, _ := testSurface(inst, func() { called = true })

	// wrong confirmation payload must not shut down
	assert.Error(t, s.dispatch("poweroff", []byte("yes")))
	assert.False(t, called)

	require.NoError(t, s.dispatch("poweroff", []byte("OK")))
	assert.True(t, called)
}

func TestDispatchUnknownAction(t *testing.T) {
	inst := &fakeInstrument{offsets: []float64{0}}
	s, _ := testSurface(inst, nil)

	assert.Error(t, s.dispatch("reboot", nil))
}

func TestPublishStatusTopics(t *testing.T) {
	inst := &fakeInstrument{offsets: []float64{0, 0.5, 0}}
	s, published := testSurface(inst, nil)

	s.publishStatus()

	for _, topic := range []string{"cal0/power", "cal0/offset", "cal0/temp", "cal0/flow"} {
		assert.Contains(t, *published, topic)
	}

	var flow float64
	require.NoError(t, json.Unmarshal((*published)["cal0/flow"], &flow))
	assert.Equal(t, 0.01, flow)
}
