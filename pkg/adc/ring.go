package adc

// Ring is a fixed-size circular sample buffer that owns its write cursor.
// Mean is over the filled portion until the buffer wraps for the first
// time, then over the whole window.
type Ring struct {
	buf    []float64
	cursor int
	filled int
}

// NewRing creates a ring buffer with the given window size.
// Sizes below 1 are treated as 1.
func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{buf: make([]float64, size)}
}

// Push appends one sample, overwriting the oldest once the window is full.
func (r *Ring) Push(v float64) {
	r.buf[r.cursor] = v
	r.cursor = (r.cursor + 1) % len(r.buf)
	if r.filled < len(r.buf) {
		r.filled++
	}
}

// Fill seeds every slot of the window with v.
func (r *Ring) Fill(v float64) {
	for i := range r.buf {
		r.buf[i] = v
	}
	r.cursor = 0
	r.filled = len(r.buf)
}

// Mean returns the average of the samples currently in the window,
// or 0 for an empty buffer.
func (r *Ring) Mean() float64 {
	if r.filled == 0 {
		return 0
	}
	var sum float64
	for _, v := range r.buf[:r.filled] {
		sum += v
	}
	return sum / float64(r.filled)
}

// Len returns the window size.
func (r *Ring) Len() int {
	return len(r.buf)
}
