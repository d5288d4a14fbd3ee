package adc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencer_Acquire(t *testing.T) {
	mock := NewMock()
	mock.SetCount(0x18, 350000)
	mock.SetCount(0x28, 1200)
	mock.SetCount(0x31, -450)

	seq := []byte{0x18, 0x28, 0x31}
	s := NewSequencer(mock, seq, 16)

	avg, err := s.Acquire()
	require.NoError(t, err)
	require.Len(t, avg, 3)
	assert.Equal(t, 350000.0, avg[0])
	assert.Equal(t, 1200.0, avg[1])
	assert.Equal(t, -450.0, avg[2])
}

func TestSequencer_AveragesNoise(t *testing.T) {
	mock := NewMock()
	mock.SetCount(0x18, 100000)
	mock.SetNoise(50)

	s := NewSequencer(mock, []byte{0x18}, 256)
	avg, err := s.Acquire()
	require.NoError(t, err)

	// Uniform noise of +-50 digits averages well below its amplitude
	// over 256 sweeps.
	assert.InDelta(t, 100000.0, avg[0], 10.0)
}

func TestSequencer_ReadFailureAbortsSweep(t *testing.T) {
	mock := NewMock()
	mock.FailWith(ErrTimeout)

	s := NewSequencer(mock, []byte{0x18, 0x28}, 4)
	_, err := s.Acquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSequencer_FixedOrder(t *testing.T) {
	var order []byte
	r := readerFunc(func(seq []byte, out []int32) error {
		order = append(order, seq...)
		return nil
	})

	seq := []byte{0x18, 0x21, 0x32}
	s := NewSequencer(r, seq, 2)
	_, err := s.Acquire()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x18, 0x21, 0x32, 0x18, 0x21, 0x32}, order)
}

func TestSequencer_WindowFloor(t *testing.T) {
	s := NewSequencer(NewMock(), []byte{0x18}, 0)
	assert.Equal(t, 1, s.Window())
}

// readerFunc adapts a function to the Reader interface for tests.
type readerFunc func(seq []byte, out []int32) error

func (f readerFunc) Read(addr byte) (int32, error) {
	var out [1]int32
	err := f([]byte{addr}, out[:])
	return out[0], err
}

func (f readerFunc) ReadSequence(seq []byte, out []int32) error {
	return f(seq, out)
}
