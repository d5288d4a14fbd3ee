// Package flow estimates the coolant mass flow rate. Two interchangeable
// sensing strategies exist behind one contract: a voltage-proportional
// converter channel and falling-edge pulse timing on a digital input.
package flow

// Estimator produces the coolant flow rate for the current reference
// temperature. Implementations are owned by the acquisition loop and are
// not safe for concurrent use unless documented otherwise.
type Estimator interface {
	// SetTemperature sets the coolant influx temperature in degC used for
	// the volumetric to mass conversion. The acquisition loop refreshes it
	// once per cycle before calling Update.
	SetTemperature(tempC float64)
	// Update refreshes the volumetric and mass flow values.
	Update() error
	// LiterSec returns the current volumetric flow rate in liter/sec.
	LiterSec() float64
	// KgSec returns the current mass flow rate in kg/sec.
	KgSec() float64
}

// EdgeSource delivers a monotonic microsecond timestamp for each qualifying
// transition on a digital input. Supplied by the GPIO subsystem.
type EdgeSource interface {
	// Notify registers the callback invoked on each edge and starts
	// delivery. The callback must return quickly.
	Notify(fn func(micros int64)) error
	// Close stops edge delivery.
	Close() error
}

// Ensure both strategies satisfy the contract.
var (
	_ Estimator = (*VoltageSensor)(nil)
	_ Estimator = (*PulseSensor)(nil)
)
