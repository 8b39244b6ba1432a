package effects

// Echo is a stereo feedback delay. Cross moves the repeats between channels;
// at 1 they ping-pong. The wet level can change while running.
type Echo struct {
	bufL, bufR []float64
	pos        int
	feedback   float64
	cross      float64
	wet        float64
}

// NewEcho allocates delayMs of history at sampleRate. feedback is capped
// below 1 so the tail always decays.
func NewEcho(sampleRate int, delayMs, feedback, cross float64) *Echo {
	n := int(delayMs * float64(sampleRate) / 1000)
	if n < 1 {
		n = 1
	}
	return &Echo{
		bufL:     make([]float64, n),
		bufR:     make([]float64, n),
		feedback: clamp(feedback, 0, 0.95),
		cross:    clamp(cross, 0, 1),
	}
}

// SetWet sets the mix, 0 (dry only) to 1.
func (e *Echo) SetWet(wet float64) { e.wet = clamp(wet, 0, 1) }

func (e *Echo) Wet() float64 { return e.wet }

func (e *Echo) Process(l, r float64) (float64, float64) {
	dl, dr := e.bufL[e.pos], e.bufR[e.pos]
	straight, swapped := e.feedback*(1-e.cross), e.feedback*e.cross
	e.bufL[e.pos] = l + dl*straight + dr*swapped
	e.bufR[e.pos] = r + dr*straight + dl*swapped
	if e.pos++; e.pos == len(e.bufL) {
		e.pos = 0
	}
	if e.wet == 0 {
		return l, r
	}
	return l*(1-e.wet) + dl*e.wet, r*(1-e.wet) + dr*e.wet
}

func (e *Echo) Reset() {
	clear(e.bufL)
	clear(e.bufR)
	e.pos = 0
}
