// Package state holds the scalars shared between the MIDI drain, the engine's
// send hook and the peripheral update. Values are stored as float32 bit
// patterns so a receive goroutine or a status reader never sees a torn write.
package state

import (
	"math"
	"sync/atomic"
)

type Shared struct {
	gain uint32
	led  uint32
}

// New returns state with unity gain and the LED off.
func New() *Shared {
	s := &Shared{}
	s.SetGain(1)
	return s
}

func (s *Shared) Gain() float32 {
	return math.Float32frombits(atomic.LoadUint32(&s.gain))
}

func (s *Shared) SetGain(g float32) {
	atomic.StoreUint32(&s.gain, math.Float32bits(g))
}

// LED returns the last level written by the patch.
func (s *Shared) LED() float32 {
	return math.Float32frombits(atomic.LoadUint32(&s.led))
}

func (s *Shared) SetLED(level float32) {
	atomic.StoreUint32(&s.led, math.Float32bits(level))
}
