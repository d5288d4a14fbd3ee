package adc

import (
	"math/rand"
	"sync"
)

// Ensure Mock implements Reader.
var _ Reader = (*Mock)(nil)

// Mock simulates a multiplexed converter for testing and development.
// Counts are set per multiplexer address; reads return the set count plus
// optional uniform noise, or an injected error.
type Mock struct {
	mu     sync.RWMutex
	counts map[byte]int32
	noise  int32
	err    error
	rng    *rand.Rand
}

// NewMock creates a mock reader with no configured channels.
func NewMock() *Mock {
	return &Mock{
		counts: make(map[byte]int32),
		rng:    rand.New(rand.NewSource(1)),
	}
}

// SetCount sets the count returned for the given multiplexer address.
func (m *Mock) SetCount(addr byte, v int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[addr] = v
}

// SetNoise sets the amplitude of uniform noise added to every read.
func (m *Mock) SetNoise(amplitude int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noise = amplitude
}

// FailWith makes every subsequent read return err. Passing nil clears the
// injected failure.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Read returns the configured count for addr. Unset addresses read as 0.
func (m *Mock) Read(addr byte) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return 0, m.err
	}
	v := m.counts[addr]
	if m.noise > 0 {
		v += m.rng.Int31n(2*m.noise+1) - m.noise
	}
	return v, nil
}

// ReadSequence fills out with one count per address in seq.
func (m *Mock) ReadSequence(seq []byte, out []int32) error {
	for i, addr := range seq {
		v, err := m.Read(addr)
		if err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}
