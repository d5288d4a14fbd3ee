package adc

import "fmt"

// Sequencer acquires a fixed-order sequence of multiplexed channels and
// reduces each channel to a windowed mean.
//
// The address order within a sweep is part of the measurement design: the
// reference leg is sampled immediately adjacent to each differential leg so
// that drift between a differential reading and its reference is minimized.
// The order is fixed at construction and never reordered.
type Sequencer struct {
	reader Reader
	seq    []byte
	window int
	sweeps [][]int32
}

// NewSequencer creates a sequencer for the given address sequence and
// averaging window size.
func NewSequencer(reader Reader, seq []byte, window int) *Sequencer {
	if window < 1 {
		window = 1
	}
	sweeps := make([][]int32, window)
	for i := range sweeps {
		sweeps[i] = make([]int32, len(seq))
	}
	s := make([]byte, len(seq))
	copy(s, seq)
	return &Sequencer{
		reader: reader,
		seq:    s,
		window: window,
		sweeps: sweeps,
	}
}

// Acquire performs window consecutive full sweeps of the address sequence
// and returns the elementwise mean per address. Each call issues
// window*len(seq) hardware reads. Any read failure aborts the acquisition.
func (s *Sequencer) Acquire() ([]float64, error) {
	for j := 0; j < s.window; j++ {
		if err := s.reader.ReadSequence(s.seq, s.sweeps[j]); err != nil {
			return nil, fmt.Errorf("sweep %d/%d: %w", j+1, s.window, err)
		}
	}

	avg := make([]float64, len(s.seq))
	for i := range s.seq {
		var sum int64
		for j := 0; j < s.window; j++ {
			sum += int64(s.sweeps[j][i])
		}
		avg[i] = float64(sum) / float64(s.window)
	}
	return avg, nil
}

// Window returns the averaging window size.
func (s *Sequencer) Window() int {
	return s.window
}

// Sequence returns a copy of the address sequence.
func (s *Sequencer) Sequence() []byte {
	seq := make([]byte, len(s.seq))
	copy(seq, s.seq)
	return seq
}
