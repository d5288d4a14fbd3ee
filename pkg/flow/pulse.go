package flow

import (
	"sync"
	"time"
)

// pulseWindow accumulates edge statistics for one averaging period. It is
// written by the edge callback and swapped out whole by the estimator, so
// the callback never races a half-consumed window.
type pulseWindow struct {
	count       int
	firstMicros int64
	lastMicros  int64
}

// PulseSensor estimates volumetric flow by timing falling-edge pulses from
// a turbine-style flow meter over a fixed averaging period.
//
// The edge callback and Update may run on different goroutines; the window
// state is guarded by its own mutex and consumed by swapping. Each sensor
// owns its window: the callback registered through Start closes over this
// specific instance.
type PulseSensor struct {
	pulsesPerLiter float64
	period         time.Duration
	density        func(tempC float64) float64
	source         EdgeSource

	mu     sync.Mutex
	window pulseWindow

	periodStart time.Time
	tempC       float64
	literSec    float64
	kgSec       float64
}

// NewPulseSensor creates a pulse-timing estimator.
//
//	pulsesPerLiter: flow meter sensitivity in pulses per liter
//	period:         averaging period
//	density:        coolant density in kg/liter as a function of degC
func NewPulseSensor(source EdgeSource, pulsesPerLiter float64, period time.Duration,
	density func(float64) float64) *PulseSensor {
	return &PulseSensor{
		pulsesPerLiter: pulsesPerLiter,
		period:         period,
		density:        density,
		source:         source,
		periodStart:    time.Now(),
		tempC:          DefaultTemperature,
	}
}

// Start registers the edge callback with the source and begins counting.
func (s *PulseSensor) Start() error {
	return s.source.Notify(s.edge)
}

// Close stops edge delivery.
func (s *PulseSensor) Close() error {
	return s.source.Close()
}

// edge records one falling-edge transition. Invoked asynchronously by the
// edge source with a monotonic microsecond timestamp.
func (s *PulseSensor) edge(micros int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.window.count == 0 {
		s.window.firstMicros = micros
	}
	s.window.lastMicros = micros
	s.window.count++
}

// SetTemperature sets the coolant influx temperature in degC.
func (s *PulseSensor) SetTemperature(tempC float64) {
	s.tempC = tempC
}

// Update recomputes the flow values. At each averaging period boundary the
// accumulated pulse window is swapped out and converted; between boundaries
// only the mass flow is refreshed for the current temperature.
func (s *PulseSensor) Update() error {
	if elapsed := time.Since(s.periodStart); elapsed >= s.period {
		s.periodStart = s.periodStart.Add(elapsed)
		s.literSec = s.consumeWindow()
	}
	s.kgSec = s.literSec * s.density(s.tempC)
	return nil
}

// consumeWindow atomically takes the accumulated window and converts it to
// a volumetric flow rate. A window with no pulses, a single pulse, or a
// degenerate timestamp span reports 0.0 instead of dividing by zero.
func (s *PulseSensor) consumeWindow() float64 {
	s.mu.Lock()
	w := s.window
	s.window = pulseWindow{}
	s.mu.Unlock()

	if w.count == 0 {
		return 0.0
	}
	elapsed := w.lastMicros - w.firstMicros
	if elapsed <= 0 {
		return 0.0
	}
	return float64(w.count) * 1e6 / (s.pulsesPerLiter * float64(elapsed))
}

// LiterSec returns the current volumetric flow rate in liter/sec.
func (s *PulseSensor) LiterSec() float64 { return s.literSec }

// KgSec returns the current mass flow rate in kg/sec.
func (s *PulseSensor) KgSec() float64 { return s.kgSec }
