package picopd

import (
	"encoding/binary"

	"github.com/cbegin/picopd-go/internal/audio"
	"github.com/cbegin/picopd-go/internal/midi"
	"github.com/cbegin/picopd-go/internal/usbmidi"
)

// ScheduledPacket is a MIDI packet due before the given audio block.
type ScheduledPacket struct {
	Block  int
	Packet midi.Packet
}

// DemoPhrase is a short arpeggio and chord with a volume move and a pitch
// bend. Every note it starts is ended by the last block.
func DemoPhrase(blocksPerBeat int) []ScheduledPacket {
	var out []ScheduledPacket
	notes := []byte{60, 64, 67, 72}
	for i, n := range notes {
		at := i * blocksPerBeat
		out = append(out,
			ScheduledPacket{at, midi.NewPacket(0x90, n, 100)},
			ScheduledPacket{at + blocksPerBeat*3/4, midi.NewPacket(0x80, n, 0)},
		)
	}
	chord := len(notes) * blocksPerBeat
	for _, n := range notes[:3] {
		out = append(out, ScheduledPacket{chord, midi.NewPacket(0x90, n, 90)})
	}
	out = append(out,
		ScheduledPacket{chord + blocksPerBeat/2, midi.NewPacket(0xB0, 7, 80)},
		ScheduledPacket{chord + blocksPerBeat, midi.NewPacket(0xE0, 0x00, 0x60)},
	)
	for _, n := range notes[:3] {
		out = append(out, ScheduledPacket{chord + 2*blocksPerBeat, midi.NewPacket(0x80, n, 0)})
	}
	return out
}

// RenderScript drives c for the given number of audio blocks, injecting each
// scheduled packet into in before its block, and returns the interleaved PCM.
// c must have been built with in as its port and pool as its pool, and
// nothing else may consume from pool.
func RenderScript(c *Core, in *usbmidi.Memory, pool *audio.Pool, script []ScheduledPacket, blocks int) []int16 {
	var out []int16
	next := 0
	for block := 0; block < blocks; {
		for next < len(script) && script[next].Block <= block {
			in.Inject(script[next].Packet)
			next++
		}
		if !c.Tick() {
			continue
		}
		b := pool.Consume(false)
		out = append(out, b.Samples[:b.Frames*audio.Channels]...)
		pool.Recycle(b)
		block++
	}
	return out
}

// EncodeWAVPCM16LE wraps interleaved signed 16-bit samples in a WAV container.
func EncodeWAVPCM16LE(samples []int16, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 2
	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[44+i*2:], uint16(s))
	}
	return out
}
