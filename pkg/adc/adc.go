// Package adc defines the raw-sample contract between the measurement core
// and the analog-to-digital converter hardware, together with the sweep
// sequencing and averaging used by the bridge scan.
package adc

import "errors"

var (
	// ErrNotConnected is returned when the converter hardware cannot be
	// reached. Fatal at startup.
	ErrNotConnected = errors.New("adc: hardware not connected")
	// ErrTimeout is returned when the converter does not signal data ready
	// within the hardware timeout. Fatal to the current acquisition cycle;
	// there is no automatic retry.
	ErrTimeout = errors.New("adc: data ready timeout")
)

// Reader provides signed raw digital counts from a multiplexed converter
// input. The address is the full multiplexer register code selecting the
// physical input pair to sample.
type Reader interface {
	// Read switches the multiplexer to addr, settles and returns one count.
	Read(addr byte) (int32, error)
	// ReadSequence cycles the multiplexer through seq and stores one count
	// per address into out. len(out) must equal len(seq). The converter
	// pipeline means each address is programmed one sample ahead of its
	// readout, so the sequence order is exactly the sampling order.
	ReadSequence(seq []byte, out []int32) error
}
