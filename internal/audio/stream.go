package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// StreamReader is the consumer side of a Pool: it serialises filled buffers
// as 16-bit little-endian stereo and recycles each buffer once it is read.
type StreamReader struct {
	pool *Pool
	cur  *Buffer
	off  int // bytes of cur already read
	done chan struct{}
	once sync.Once
}

func NewStreamReader(pool *Pool) *StreamReader {
	return &StreamReader{pool: pool, done: make(chan struct{})}
}

// Read blocks until a buffer is available or the reader is closed.
func (r *StreamReader) Read(p []byte) (int, error) {
	n := 0
	for n+1 < len(p) {
		if r.cur == nil {
			if n > 0 {
				// Return what we have rather than wait with a partial read.
				b := r.pool.Consume(false)
				if b == nil {
					return n, nil
				}
				r.cur = b
			} else {
				select {
				case b := <-r.pool.ready:
					r.cur = b
				case <-r.done:
					return 0, io.EOF
				}
			}
			r.off = 0
		}
		avail := r.cur.Frames * Channels * 2
		for r.off < avail && n+1 < len(p) {
			s := r.cur.Samples[r.off/2]
			binary.LittleEndian.PutUint16(p[n:], uint16(s))
			r.off += 2
			n += 2
		}
		if r.off >= avail {
			r.pool.Recycle(r.cur)
			r.cur = nil
		}
	}
	return n, nil
}

// Close unblocks a pending Read.
func (r *StreamReader) Close() error {
	r.once.Do(func() { close(r.done) })
	return nil
}

// Player plays a Pool through the shared ebiten audio context.
type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// NewPlayer connects pool to the sound card. bufferFrames sets the device
// buffer; the pool depth should cover it.
func NewPlayer(sampleRate int, pool *Pool, bufferFrames int) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(pool)
	pl, err := ctx.NewPlayer(reader)
	if err != nil {
		return nil, err
	}
	if bufferFrames > 0 {
		pl.SetBufferSize(time.Duration(bufferFrames) * time.Second / time.Duration(sampleRate))
	}
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play()  { p.player.Play() }
func (p *Player) Pause() { p.player.Pause() }
func (p *Player) IsPlaying() bool {
	return p.player.IsPlaying()
}

func (p *Player) Stop() error {
	p.player.Pause()
	if err := p.reader.Close(); err != nil {
		return err
	}
	return p.player.Close()
}
