// Package delay provides a fixed-size circular delay line used by the
// mixer's time-based effect units.
package delay

import "fmt"

// Line is a circular delay line with integer-sample taps.
type Line struct {
	buffer   []float64
	writePos int
}

// New returns a delay line able to hold size samples of history.
func New(size int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("delay size must be > 0: %d", size)
	}

	return &Line{buffer: make([]float64, size)}, nil
}

// Len returns the internal buffer size.
func (d *Line) Len() int {
	return len(d.buffer)
}

// Write writes one sample and advances the write position.
func (d *Line) Write(sample float64) {
	d.buffer[d.writePos] = sample

	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// Read returns the sample written delay steps ago. A delay of 0 reads the
// most recently written sample; delays are clamped to the line length.
func (d *Line) Read(delay int) float64 {
	size := len(d.buffer)
	if size == 0 {
		return 0
	}

	if delay < 0 {
		delay = 0
	}

	if delay >= size {
		delay = size - 1
	}

	readPos := d.writePos - 1 - delay
	if readPos < 0 {
		readPos += size
	}

	return d.buffer[readPos]
}

// Reset clears all line state.
func (d *Line) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}

	d.writePos = 0
}
