package measure

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/isoflux/isoflux/pkg/adc"
	"github.com/isoflux/isoflux/pkg/config"
	"github.com/isoflux/isoflux/pkg/flow"
	"github.com/isoflux/isoflux/pkg/physics"
)

// State of the acquisition loop.
type State int

const (
	StateRunning State = iota
	StateStopping
)

// Snapshot is a value copy of the published aggregate state. Vectors have
// one element per channel of the flow sequence; index 0 is the coolant
// influx point and carries no power reading by definition.
type Snapshot struct {
	ID        string
	Timestamp time.Time

	Info              []string
	Resistance        []float64 // Ohms, trim-corrected
	Temperature       []float64 // degC, offset-corrected
	Power             []float64 // W, offset-corrected; [0] is always 0.0
	PowerOffset       []float64 // W
	TemperatureOffset []float64 // K

	FlowLiterSec   float64
	FlowKgSec      float64
	RefTemperature float64
}

// IsoFlux owns the full measurement chain of one instrument: the per-pair
// bridge measurements, the flow estimator, the calibration offsets and the
// published state vectors.
//
// Concurrency: the acquisition loop is the sole writer of the state
// vectors; the calibration operations are the sole writers of the offsets
// but also read power values. One mutex serializes every calibration
// operation, each per-channel state update and the snapshot step. The
// hardware scanning itself runs outside the lock: it dominates cycle
// latency and must not stall calibration commands.
type IsoFlux struct {
	id           string
	fluid        physics.Fluid
	measurements []*Measurement
	flowSensor   flow.Estimator

	mu          sync.Mutex
	state       State
	offsets     *OffsetStore
	info        []string
	resistance  []float64
	temperature []float64
	power       []float64
	tUp         []float64 // per-measurement upstream temperature
	flowLiter   float64
	flowKg      float64
	refTemp     float64

	cbMu      sync.RWMutex
	callbacks []func(Snapshot)
}

// New builds the instrument from its configuration. A flow sequence of N
// channels yields exactly N-1 measurement units and N-element state
// vectors.
func New(reader adc.Reader, estimator flow.Estimator, cfg *config.Config) (*IsoFlux, error) {
	fluid, err := physics.FluidByName(cfg.Fluid)
	if err != nil {
		return nil, err
	}

	n := len(cfg.FlowSequence)
	info := make([]string, n)
	tempTrims := make([]float64, n)
	measurements := make([]*Measurement, 0, n-1)

	for i, name := range cfg.FlowSequence {
		ch, err := cfg.Channel(name)
		if err != nil {
			return nil, err
		}
		info[i] = ch.Info
		tempTrims[i] = ch.TemperatureOffset
		if i == 0 {
			continue
		}
		up, err := cfg.Channel(cfg.FlowSequence[i-1])
		if err != nil {
			return nil, err
		}
		measurements = append(measurements, NewMeasurement(reader, cfg, up, ch))
	}

	return &IsoFlux{
		id:           cfg.ID,
		fluid:        fluid,
		measurements: measurements,
		flowSensor:   estimator,
		offsets:      NewOffsetStore(tempTrims),
		info:         info,
		resistance:   make([]float64, n),
		temperature:  make([]float64, n),
		power:        make([]float64, n),
		tUp:          make([]float64, n-1),
	}, nil
}

// Measurements returns the measurement units in flow order.
func (ix *IsoFlux) Measurements() []*Measurement {
	return ix.measurements
}

// State returns the acquisition loop state.
func (ix *IsoFlux) State() State {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.state
}

// OnUpdate registers a callback invoked with a snapshot after each
// throttled publish step. Callbacks run inside the shared critical section:
// they must return quickly and must not call calibration operations.
func (ix *IsoFlux) OnUpdate(fn func(Snapshot)) {
	ix.cbMu.Lock()
	defer ix.cbMu.Unlock()
	ix.callbacks = append(ix.callbacks, fn)
}

// Run drives the acquisition loop until the context is cancelled or a
// cycle fails. Cancellation is cooperative and observed once per full
// pass: an in-progress pass across all channels is never interrupted.
// A failed cycle is fatal by design; recovery is process restart.
func (ix *IsoFlux) Run(ctx context.Context) error {
	log.Printf("acquisition: %d heat measurement channels configured", len(ix.measurements))
	log.Printf("acquisition: output averaged over %d sweeps per scan", ix.measurements[0].Window())

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			ix.setState(StateStopping)
			log.Printf("acquisition: stop requested, loop terminated")
			return nil
		default:
		}

		if err := ix.ScanAll(); err != nil {
			ix.setState(StateStopping)
			return fmt.Errorf("acquisition cycle failed: %w", err)
		}

		if elapsed := time.Since(last); elapsed >= time.Second {
			last = last.Add(elapsed)
			ix.publish()
		}
	}
}

// ScanAll runs one full measurement cycle across all channels in flow
// order. Hardware reads happen outside the shared lock; each channel's
// state update takes it briefly so calibration read-modify-writes never
// interleave with a vector write to the same index.
func (ix *IsoFlux) ScanAll() error {
	kgSec := ix.flowSensor.KgSec()

	for i, m := range ix.measurements {
		if err := m.Scan(); err != nil {
			return err
		}

		if i == 0 {
			// The flow meter sits upstream of the first sensor, so the
			// coolant temperature at the meter is the first upstream
			// reading. Refresh mass flow before any power computation.
			ix.flowSensor.SetTemperature(m.TUpstream)
			if err := ix.flowSensor.Update(); err != nil {
				return fmt.Errorf("flow sensor: %w", err)
			}
			kgSec = ix.flowSensor.KgSec()
		}

		ix.mu.Lock()
		idx := i + 1
		if i == 0 {
			// Index 0 stores the coolant influx sensor values. It has no
			// power reading; power[0] stays at exactly 0.0.
			ix.resistance[0] = m.RUpstream
			ix.temperature[0] = m.TUpstream
			ix.refTemp = m.TUpstream
			ix.flowKg = kgSec
			ix.flowLiter = ix.flowSensor.LiterSec()
		}
		tOff := ix.offsets.Temperature(idx)
		m.ComputePower(kgSec, ix.fluid.SpecificHeat, tOff, ix.offsets.Power(idx))
		ix.tUp[i] = m.TUpstream
		ix.resistance[idx] = m.RDownstream
		ix.temperature[idx] = m.TDownstream - tOff
		ix.power[idx] = m.Power
		ix.mu.Unlock()
	}
	return nil
}

// ZeroAll performs the local all-channel zero calibration: every channel's
// temperature offset grows by its current corrected differential, driving
// the next computed power toward zero for all channels simultaneously.
func (ix *IsoFlux) ZeroAll() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for i := range ix.measurements {
		idx := i + 1
		ix.offsets.AddTemperature(idx, ix.temperature[idx]-ix.tUp[i])
	}
	log.Printf("calibration: zero-all applied to %d channels", len(ix.measurements))
}

// Tare increases the power offset of one channel by its current computed
// power, driving its next reading toward zero. Index 0 (coolant influx)
// and out-of-range indices are rejected without mutating state.
func (ix *IsoFlux) Tare(ch int) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ch <= 0 || ch >= len(ix.power) {
		return fmt.Errorf("tare channel %d of %d: %w", ch, len(ix.power), ErrChannelRange)
	}
	old := ix.offsets.Power(ch)
	if err := ix.offsets.AddPower(ch, ix.power[ch]); err != nil {
		return err
	}
	log.Printf("calibration: tare channel %d, offset %.3f -> %.3f W",
		ch, old, ix.offsets.Power(ch))
	return nil
}

// SetPowerOffset overwrites one channel's power offset. Out-of-range
// indices are rejected without mutating state.
func (ix *IsoFlux) SetPowerOffset(ch int, v float64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.offsets.SetPower(ch, v); err != nil {
		return err
	}
	log.Printf("calibration: channel %d power offset set to %.3f W", ch, v)
	return nil
}

// PowerOffsets returns a copy of the power offset vector.
func (ix *IsoFlux) PowerOffsets() []float64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.offsets.PowerVector()
}

// Snapshot returns a value copy of the current aggregate state.
func (ix *IsoFlux) Snapshot() Snapshot {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.snapshotLocked()
}

func (ix *IsoFlux) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:                ix.id,
		Timestamp:         time.Now(),
		Info:              make([]string, len(ix.info)),
		Resistance:        make([]float64, len(ix.resistance)),
		Temperature:       make([]float64, len(ix.temperature)),
		Power:             make([]float64, len(ix.power)),
		PowerOffset:       ix.offsets.PowerVector(),
		TemperatureOffset: ix.offsets.TemperatureVector(),
		FlowLiterSec:      ix.flowLiter,
		FlowKgSec:         ix.flowKg,
		RefTemperature:    ix.refTemp,
	}
	copy(s.Info, ix.info)
	copy(s.Resistance, ix.resistance)
	copy(s.Temperature, ix.temperature)
	copy(s.Power, ix.power)
	return s
}

// publish renders one snapshot to every registered callback inside the
// shared critical section.
func (ix *IsoFlux) publish() {
	ix.cbMu.RLock()
	callbacks := make([]func(Snapshot), len(ix.callbacks))
	copy(callbacks, ix.callbacks)
	ix.cbMu.RUnlock()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	snap := ix.snapshotLocked()
	for _, cb := range callbacks {
		if cb != nil {
			cb(snap)
		}
	}
}

func (ix *IsoFlux) setState(s State) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.state = s
}
