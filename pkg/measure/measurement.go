// Package measure implements the heat-balance measurement core: the
// per-channel bridge scan pipeline, the calibration offset store and the
// acquisition loop that ties them to the flow estimator.
package measure

import (
	"fmt"

	"github.com/isoflux/isoflux/pkg/adc"
	"github.com/isoflux/isoflux/pkg/config"
	"github.com/isoflux/isoflux/pkg/physics"
)

// Measurement is one heat-source unit: the upstream/downstream RTD pair of
// one heat source in the coolant flow sequence, together with its channel
// address sequence and solved state. Owned and updated exclusively by the
// acquisition loop.
type Measurement struct {
	// Info is the display name of the downstream (heat source) channel.
	Info string

	seq     *adc.Sequencer
	offsets []float64 // per-leg raw-count offsets, aligned with the sequence

	// Leg positions within the address sequence.
	refIdx, upIdx, downIdx int

	nRef    float64
	rs      [2]float64 // series resistance, upstream then downstream
	r0      [2]float64 // RTD base resistance at 0 degC
	rOffset [2]float64 // resistance trim, accounts for wiring

	// Solved state from the last scan.
	ChAvg       []float64
	RUpstream   float64
	RDownstream float64
	TUpstream   float64
	TDownstream float64
	Power       float64
}

// NewMeasurement builds the measurement unit for one adjacent sensor pair
// of the flow sequence. The per-sweep sampling order is fixed: optionally
// the flow channel, then the resistance reference, then the upstream
// sensor measured against the reference, then the downstream sensor
// measured against the upstream one. Keeping the reference adjacent to the
// differential legs minimizes drift between a reading and its reference.
func NewMeasurement(reader adc.Reader, cfg *config.Config, upstream, downstream config.Channel) *Measurement {
	var seq []byte
	var offsets []float64

	if cfg.Flow.Mode == config.FlowModeVoltage {
		seq = append(seq, config.MuxAddr(cfg.Flow.Mux, cfg.ADC.CommonMux))
		offsets = append(offsets, cfg.Flow.Offset)
	}
	refIdx := len(seq)
	seq = append(seq, config.MuxAddr(cfg.Reference.Mux, cfg.ADC.CommonMux))
	offsets = append(offsets, cfg.Reference.Offset)

	upIdx := len(seq)
	seq = append(seq, config.MuxAddr(upstream.Mux, cfg.Reference.Mux))
	offsets = append(offsets, upstream.Offset)

	downIdx := len(seq)
	seq = append(seq, config.MuxAddr(downstream.Mux, upstream.Mux))
	offsets = append(offsets, downstream.Offset)

	return &Measurement{
		Info:    downstream.Info,
		seq:     adc.NewSequencer(reader, seq, cfg.Filter.Window),
		offsets: offsets,
		refIdx:  refIdx,
		upIdx:   upIdx,
		downIdx: downIdx,
		nRef:    cfg.Reference.NRef,
		rs:      [2]float64{upstream.SeriesResistance, downstream.SeriesResistance},
		r0:      [2]float64{upstream.BaseResistance, downstream.BaseResistance},
		rOffset: [2]float64{upstream.ResistanceOffset, downstream.ResistanceOffset},
	}
}

// Scan acquires one averaged sweep window and solves both bridge legs to
// resistances and temperatures. Any hardware or domain error fails the
// scan; partial results are not kept.
func (m *Measurement) Scan() error {
	avg, err := m.seq.Acquire()
	if err != nil {
		return fmt.Errorf("%s: %w", m.Info, err)
	}
	m.ChAvg = avg

	u0 := avg[m.refIdx] - m.offsets[m.refIdx]
	udUp := avg[m.upIdx] - m.offsets[m.upIdx]
	udDown := avg[m.downIdx] - m.offsets[m.downIdx]

	// Upstream sensor against the fixed reference leg. The resistance trim
	// is subtracted after the bridge inversion, never folded into it.
	m.RUpstream = physics.Wheatstone(udUp, u0, m.nRef, m.rs[0]) - m.rOffset[0]

	// The downstream sensor uses the upstream sensor as its reference leg:
	// the differential reading adds to the absolute one to form the second
	// bridge's reference voltage, and the reference ratio is recomputed
	// from the trimmed upstream resistance.
	nRefDown := m.rs[0] / m.RUpstream
	m.RDownstream = physics.Wheatstone(udDown, u0+udUp, nRefDown, m.rs[1]) - m.rOffset[1]

	if m.TUpstream, err = physics.PtRTDTemperature(m.RUpstream, m.r0[0]); err != nil {
		return fmt.Errorf("%s upstream: %w", m.Info, err)
	}
	if m.TDownstream, err = physics.PtRTDTemperature(m.RDownstream, m.r0[1]); err != nil {
		return fmt.Errorf("%s downstream: %w", m.Info, err)
	}
	return nil
}

// ComputePower performs the heat balance for the last scanned temperature
// pair. The temperature offset corrects the downstream reading before the
// differential is formed; the power offset subtraction is always the final
// step so a field tare never alters the raw computation path.
func (m *Measurement) ComputePower(kgSec float64, cTh func(float64) float64, tempOffset, powerOffset float64) {
	tDown := m.TDownstream - tempOffset
	c := cTh((m.TUpstream + tDown) / 2)
	m.Power = kgSec*c*(tDown-m.TUpstream) - powerOffset
}

// Sequence returns the channel address sequence of this measurement.
func (m *Measurement) Sequence() []byte {
	return m.seq.Sequence()
}

// Window returns the averaging window size.
func (m *Measurement) Window() int {
	return m.seq.Window()
}
