package flow

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Ensure GPIOEdgeSource implements EdgeSource.
var _ EdgeSource = (*GPIOEdgeSource)(nil)

// GPIOEdgeSource delivers falling-edge timestamps from a GPIO input pin.
// periph.io host.Init must have run before construction.
type GPIOEdgeSource struct {
	pin  gpio.PinIn
	done chan struct{}
}

// NewGPIOEdgeSource opens the named pin (e.g. "GPIO6") for falling-edge
// detection with the internal pull-up enabled.
func NewGPIOEdgeSource(pinName string) (*GPIOEdgeSource, error) {
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", pinName)
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("configuring pin %q: %w", pinName, err)
	}
	return &GPIOEdgeSource{
		pin:  pin,
		done: make(chan struct{}),
	}, nil
}

// Notify starts a goroutine that blocks on edge detection and invokes fn
// with a monotonic microsecond timestamp per falling edge.
func (s *GPIOEdgeSource) Notify(fn func(micros int64)) error {
	start := time.Now()
	go func() {
		for {
			select {
			case <-s.done:
				return
			default:
			}
			// Bounded wait so Close is observed without an edge.
			if s.pin.WaitForEdge(500 * time.Millisecond) {
				fn(time.Since(start).Microseconds())
			}
		}
	}()
	return nil
}

// Close stops edge delivery and releases the pin.
func (s *GPIOEdgeSource) Close() error {
	close(s.done)
	return s.pin.Halt()
}
