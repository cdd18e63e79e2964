// Package window implements a fixed-size sliding window over float64
// outcomes, used to report rolling statistics such as the recent
// auction win rate.
package window

import "fmt"

// Window keeps the last size values pushed into it, evicting the
// oldest value on overflow.
type Window struct {
	values []float64
	index  int
	count  int
}

// New creates a new Window holding at most size values.
func New(size int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("new: window size must be > 0 \n\thave(%v)",
			size)
	}
	return &Window{values: make([]float64, size)}, nil
}

// Push adds a value to the window, evicting the oldest value if the
// window is full.
func (w *Window) Push(v float64) {
	w.values[w.index] = v
	w.index = (w.index + 1) % len(w.values)
	if w.count < len(w.values) {
		w.count++
	}
}

// Size returns the number of values currently held by the window.
func (w *Window) Size() int {
	return w.count
}

// Full returns whether the window holds its maximum number of values.
func (w *Window) Full() bool {
	return w.count == len(w.values)
}

// Mean returns the mean of the values currently held by the window,
// or 0 for an empty window.
func (w *Window) Mean() float64 {
	if w.count == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < w.count; i++ {
		sum += w.values[i]
	}
	return sum / float64(w.count)
}
