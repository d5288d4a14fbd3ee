package flow

import (
	"fmt"

	"github.com/isoflux/isoflux/pkg/adc"
)

// DefaultTemperature is assumed until the acquisition loop provides the
// first coolant influx reading.
const DefaultTemperature = 25.0

// VoltageSensor estimates volumetric flow from a dedicated converter
// channel whose voltage is proportional to the flow rate.
type VoltageSensor struct {
	reader adc.Reader
	addr   byte
	offset float64

	vPerDigit   float64
	sensitivity float64 // liter/sec per volt
	density     func(tempC float64) float64

	ring *adc.Ring

	tempC    float64
	voltage  float64
	literSec float64
	kgSec    float64
}

// NewVoltageSensor creates a voltage-strategy estimator.
//
//	addr:        full multiplexer code of the flow channel
//	offset:      raw-count channel offset
//	vPerDigit:   input-referred volts per converter digit
//	sensitivity: flow meter sensitivity in liter/sec per volt
//	window:      averaging window applied on top of each reading
//	density:     coolant density in kg/liter as a function of degC
func NewVoltageSensor(reader adc.Reader, addr byte, offset, vPerDigit, sensitivity float64,
	window int, density func(float64) float64) *VoltageSensor {
	return &VoltageSensor{
		reader:      reader,
		addr:        addr,
		offset:      offset,
		vPerDigit:   vPerDigit,
		sensitivity: sensitivity,
		density:     density,
		ring:        adc.NewRing(window),
		tempC:       DefaultTemperature,
	}
}

// Prime seeds the averaging window with an initial reading so the first
// cycle starts from live data instead of zeros.
func (s *VoltageSensor) Prime() error {
	v, err := s.reader.Read(s.addr)
	if err != nil {
		return fmt.Errorf("priming flow channel: %w", err)
	}
	s.ring.Fill(float64(v) - s.offset)
	s.recompute()
	return nil
}

// SetTemperature sets the coolant influx temperature in degC.
func (s *VoltageSensor) SetTemperature(tempC float64) {
	s.tempC = tempC
}

// Update acquires one flow channel sample, advances the averaging window
// and refreshes the flow values.
func (s *VoltageSensor) Update() error {
	v, err := s.reader.Read(s.addr)
	if err != nil {
		return fmt.Errorf("reading flow channel: %w", err)
	}
	s.ring.Push(float64(v) - s.offset)
	s.recompute()
	return nil
}

func (s *VoltageSensor) recompute() {
	s.voltage = s.ring.Mean() * s.vPerDigit
	s.literSec = s.voltage * s.sensitivity
	s.kgSec = s.literSec * s.density(s.tempC)
}

// Voltage returns the current averaged sensor voltage in volts.
func (s *VoltageSensor) Voltage() float64 { return s.voltage }

// LiterSec returns the current volumetric flow rate in liter/sec.
func (s *VoltageSensor) LiterSec() float64 { return s.literSec }

// KgSec returns the current mass flow rate in kg/sec.
func (s *VoltageSensor) KgSec() float64 { return s.kgSec }
