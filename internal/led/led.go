// Package led maps the patch's LED level onto an 8-bit PWM duty cycle and
// drives the peripheral that shows it.
package led

import "math"

// Gain is applied to the level before clamping; patches tend to emit
// envelope levels well under full scale.
const Gain = 3.0

// Duty converts a level to a PWM duty value.
func Duty(level float32) uint8 {
	v := float64(level) * Gain
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(math.Round(v * 255))
}

// PWM is a PWM-capable output taking an 8-bit duty value.
type PWM interface {
	SetDuty(duty uint8)
}

// Discard is a PWM with nothing attached.
type Discard struct{}

func (Discard) SetDuty(uint8) {}
