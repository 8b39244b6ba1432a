// Package effects holds the per-sample stereo processors a patch can run on
// its mixed output.
package effects

// Effector processes one stereo frame.
type Effector interface {
	Process(l, r float64) (float64, float64)
	Reset()
}

// Chain runs effects in order.
type Chain []Effector

func (c Chain) Process(l, r float64) (float64, float64) {
	for _, e := range c {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c Chain) Reset() {
	for _, e := range c {
		e.Reset()
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
