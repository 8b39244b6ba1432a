package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/picopd-go/internal/engine"
	"github.com/cbegin/picopd-go/internal/state"
	"github.com/cbegin/picopd-go/internal/voice"
)

// Source yields received packets without blocking.
type Source interface {
	Available() bool
	ReadPacket(p *Packet) bool
}

// Ingress turns channel voice messages into patch messages. It owns all
// mutation of the voice table. Refused notes, unmatched note-offs and
// unknown statuses are dropped without a trace.
type Ingress struct {
	voices   *voice.Table
	sender   engine.Sender
	shared   *state.Shared
	volumeCC uint8
	ctlIn    engine.Hash
	bendIn   engine.Hash
}

func NewIngress(voices *voice.Table, sender engine.Sender, shared *state.Shared, volumeCC uint8) *Ingress {
	return &Ingress{
		voices:   voices,
		sender:   sender,
		shared:   shared,
		volumeCC: volumeCC,
		ctlIn:    engine.CtlIn,
		bendIn:   engine.BendIn,
	}
}

// Drain handles every packet currently buffered in src, in arrival order,
// and returns how many were read.
func (in *Ingress) Drain(src Source) int {
	if !src.Available() {
		return 0
	}
	var (
		p Packet
		n int
	)
	for src.ReadPacket(&p) {
		in.Handle(p.Status(), p.Data1(), p.Data2())
		n++
	}
	return n
}

// Handle translates one message.
func (in *Ingress) Handle(status, data1, data2 byte) {
	raw := [3]byte{status, data1, data2}
	msg := gomidi.Message(raw[:])

	var (
		ch, key, vel, cc, val uint8
		rel                   int16
		abs                   uint16
	)
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		// A repeated note-on retriggers the voice that already holds the note.
		slot, ok := in.voices.FindByNote(key)
		if !ok {
			if slot, ok = in.voices.Allocate(key); !ok {
				return
			}
		}
		in.sender.SendMessage(in.voices.Address(slot), engine.Floats(float32(key), float32(vel), float32(ch)))

	case msg.GetNoteEnd(&ch, &key):
		slot, ok := in.voices.FindByNote(key)
		if !ok {
			return
		}
		in.sender.SendMessage(in.voices.Address(slot), engine.Floats(float32(key), 0, float32(ch)))
		in.voices.Release(slot)

	case msg.GetControlChange(&ch, &cc, &val):
		in.sender.SendMessage(in.ctlIn, engine.Floats(float32(val), float32(cc), float32(ch)))
		if cc == in.volumeCC {
			in.shared.SetGain(float32(val) / 127)
		}

	case msg.GetPitchBend(&ch, &rel, &abs):
		in.sender.SendMessage(in.bendIn, engine.Floats(float32(abs), float32(ch)))
	}
}
