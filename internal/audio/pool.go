package audio

// Channels is the interleaved channel count of every buffer.
const Channels = 2

// Buffer is a block of interleaved stereo signed 16-bit samples.
type Buffer struct {
	Samples   []int16
	MaxFrames int
	Frames    int
}

// Pool is a bounded set of buffers cycling between one producer (the control
// loop) and one consumer (the output transport). The producer never waits:
// Take(false) returns nil when every buffer is in flight.
type Pool struct {
	free  chan *Buffer
	ready chan *Buffer
}

// NewPool allocates count buffers of frames stereo frames each.
func NewPool(count, frames int) *Pool {
	if count <= 0 {
		count = 1
	}
	p := &Pool{
		free:  make(chan *Buffer, count),
		ready: make(chan *Buffer, count),
	}
	for i := 0; i < count; i++ {
		p.free <- &Buffer{
			Samples:   make([]int16, frames*Channels),
			MaxFrames: frames,
		}
	}
	return p
}

// Take checks out an empty buffer for writing.
func (p *Pool) Take(block bool) *Buffer {
	if block {
		return <-p.free
	}
	select {
	case b := <-p.free:
		return b
	default:
		return nil
	}
}

// Give hands a filled buffer to the consumer.
func (p *Pool) Give(b *Buffer) {
	p.ready <- b
}

// Consume returns the oldest filled buffer.
func (p *Pool) Consume(block bool) *Buffer {
	if block {
		return <-p.ready
	}
	select {
	case b := <-p.ready:
		return b
	default:
		return nil
	}
}

// Recycle returns a played buffer to the free list.
func (p *Pool) Recycle(b *Buffer) {
	b.Frames = 0
	p.free <- b
}
