package lfo

import "math"

// Wave selects the LFO shape.
type Wave int

const (
	Sine Wave = iota
	Triangle
	Square
	Saw
)

// LFO is a low-frequency oscillator shared by all voices of a patch.
type LFO struct {
	depth  float64 // output range is [-depth, +depth]; units are the caller's
	rateHz float64
	wave   Wave
	phase  float64 // [0, 1)
}

// Set configures the LFO. The phase is kept so depth changes from a
// controller do not restart the cycle.
func (l *LFO) Set(depth, rateHz float64, wave Wave) {
	l.depth = depth
	l.rateHz = rateHz
	if wave < Sine || wave > Saw {
		wave = Sine
	}
	l.wave = wave
}

// Sample advances the LFO by one sample and returns a value in [-depth, +depth].
// Returns 0 while the LFO is inactive.
func (l *LFO) Sample(sampleRate float64) float64 {
	if !l.Active() || sampleRate == 0 {
		return 0
	}
	var v float64
	switch l.wave {
	case Triangle:
		if l.phase < 0.5 {
			v = 4.0*l.phase - 1.0
		} else {
			v = 3.0 - 4.0*l.phase
		}
	case Square:
		if l.phase < 0.5 {
			v = 1.0
		} else {
			v = -1.0
		}
	case Saw:
		v = 1.0 - 2.0*l.phase
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}
	l.phase += l.rateHz / sampleRate
	l.phase -= math.Floor(l.phase)
	return v * l.depth
}

// Active returns true if the LFO has non-zero depth and rate.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

// Reset zeros the LFO phase.
func (l *LFO) Reset() {
	l.phase = 0
}
