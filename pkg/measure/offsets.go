package measure

import (
	"errors"
	"fmt"
)

// ErrChannelRange is returned when a calibration command names a channel
// index outside the configured state vectors. The offending command is
// rejected without mutating any state.
var ErrChannelRange = errors.New("channel index out of range")

// OffsetStore holds the mutable per-channel calibration offsets, indexed
// like the public state vectors: index 0 is the coolant influx point,
// indices 1..N-1 are the heat sources in flow order.
//
// Offsets live only in process memory; a restart resets them to the
// configuration defaults. Mutation happens only through the calibration
// operations on IsoFlux, which serialize against the snapshot step.
type OffsetStore struct {
	temp  []float64 // K, corrects downstream sensor self-heating
	power []float64 // W, field tare
}

// NewOffsetStore creates the store for n channels with the temperature
// trims seeded from the configuration (index 0 stays zero by definition:
// the influx sensor needs no self-heating correction).
func NewOffsetStore(tempTrims []float64) *OffsetStore {
	n := len(tempTrims)
	s := &OffsetStore{
		temp:  make([]float64, n),
		power: make([]float64, n),
	}
	copy(s.temp, tempTrims)
	return s
}

// Temperature returns the temperature offset of channel i.
func (s *OffsetStore) Temperature(i int) float64 { return s.temp[i] }

// Power returns the power offset of channel i.
func (s *OffsetStore) Power(i int) float64 { return s.power[i] }

// AddTemperature increases the temperature offset of channel i by delta.
func (s *OffsetStore) AddTemperature(i int, delta float64) {
	s.temp[i] += delta
}

// AddPower increases the power offset of channel i by delta, rejecting
// indices without a power reading (index 0 is the influx point).
func (s *OffsetStore) AddPower(i int, delta float64) error {
	if i <= 0 || i >= len(s.power) {
		return fmt.Errorf("tare channel %d of %d: %w", i, len(s.power), ErrChannelRange)
	}
	s.power[i] += delta
	return nil
}

// SetPower overwrites the power offset of channel i.
func (s *OffsetStore) SetPower(i int, v float64) error {
	if i < 0 || i >= len(s.power) {
		return fmt.Errorf("set offset channel %d of %d: %w", i, len(s.power), ErrChannelRange)
	}
	s.power[i] = v
	return nil
}

// PowerVector returns a copy of the power offset vector.
func (s *OffsetStore) PowerVector() []float64 {
	out := make([]float64, len(s.power))
	copy(out, s.power)
	return out
}

// TemperatureVector returns a copy of the temperature offset vector.
func (s *OffsetStore) TemperatureVector() []float64 {
	out := make([]float64, len(s.temp))
	copy(out, s.temp)
	return out
}

// Len returns the number of channels.
func (s *OffsetStore) Len() int { return len(s.power) }
