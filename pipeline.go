package picopd

import "github.com/cbegin/picopd-go/internal/audio"

// FullScale maps a float sample of 1.0 to the S16 output.
const FullScale = 32767

// renderAudio runs one block through the engine into a pool buffer. When the
// pool has nothing free the block is skipped rather than waited for.
func (c *Core) renderAudio() bool {
	b := c.pool.Take(false)
	if b == nil {
		return false
	}
	frames := b.MaxFrames
	if n := len(c.scratch) / audio.Channels; frames > n {
		frames = n
	}
	n := frames * audio.Channels
	block := c.scratch[:n]
	c.engine.Process(block, block, frames)
	ConvertS16(b.Samples[:n], block, c.shared.Gain())
	clear(b.Samples[n:])
	b.Frames = b.MaxFrames
	c.pool.Give(b)
	return true
}

// ConvertS16 writes src scaled by gain into dst, saturating at the int16 range.
func ConvertS16(dst []int16, src []float32, gain float32) {
	g := float64(gain) * FullScale
	for i, x := range src {
		dst[i] = saturate(float64(x) * g)
	}
}

func saturate(v float64) int16 {
	switch {
	case v != v:
		return 0
	case v >= 32767:
		return 32767
	case v <= -32768:
		return -32768
	}
	return int16(v)
}
