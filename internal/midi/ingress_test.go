package midi

import (
	"math"
	"testing"

	"github.com/cbegin/picopd-go/internal/engine"
	"github.com/cbegin/picopd-go/internal/state"
	"github.com/cbegin/picopd-go/internal/voice"
)

type sent struct {
	target engine.Hash
	msg    engine.Message
}

type recorder struct {
	msgs []sent
}

func (r *recorder) SendMessage(target engine.Hash, msg engine.Message) bool {
	r.msgs = append(r.msgs, sent{target, msg})
	return true
}

type queue struct {
	packets []Packet
}

func (q *queue) Available() bool { return len(q.packets) > 0 }

func (q *queue) ReadPacket(p *Packet) bool {
	if len(q.packets) == 0 {
		return false
	}
	*p = q.packets[0]
	q.packets = q.packets[1:]
	return true
}

var testVoices = []engine.Hash{0xA0, 0xA1, 0xA2, 0xA3}

func newTestIngress() (*Ingress, *voice.Table, *recorder, *state.Shared) {
	tbl := voice.New(testVoices)
	rec := &recorder{}
	shared := state.New()
	return NewIngress(tbl, rec, shared, 7), tbl, rec, shared
}

func wantMsg(t *testing.T, got sent, target engine.Hash, args ...float32) {
	t.Helper()
	if got.target != target {
		t.Fatalf("target = %s, want %s", got.target, target)
	}
	if got.msg.Len() != len(args) {
		t.Fatalf("arg count = %d, want %d (%s)", got.msg.Len(), len(args), got.msg)
	}
	for i, a := range args {
		if got.msg.Float(i) != a {
			t.Fatalf("arg %d = %v, want %v (%s)", i, got.msg.Float(i), a, got.msg)
		}
	}
}

func TestNoteOnUpToPolyphonyThenDrop(t *testing.T) {
	in, _, rec, _ := newTestIngress()
	for i := 0; i < len(testVoices); i++ {
		in.Handle(0x90, byte(60+i), 100)
	}
	if len(rec.msgs) != len(testVoices) {
		t.Fatalf("messages = %d, want %d", len(rec.msgs), len(testVoices))
	}
	seen := make(map[engine.Hash]bool)
	for i, m := range rec.msgs {
		if seen[m.target] {
			t.Fatalf("address %s reused", m.target)
		}
		seen[m.target] = true
		wantMsg(t, m, testVoices[i], float32(60+i), 100, 0)
		if m.msg.Format != "fff" {
			t.Fatalf("format = %q", m.msg.Format)
		}
	}
	in.Handle(0x90, 72, 100)
	if len(rec.msgs) != len(testVoices) {
		t.Fatalf("note past polyphony should be dropped, got %d messages", len(rec.msgs))
	}
}

func TestNoteOffForUnknownNoteIsNoop(t *testing.T) {
	in, tbl, rec, _ := newTestIngress()
	v := tbl.Version()
	in.Handle(0x80, 61, 0)
	in.Handle(0x90, 61, 0)
	if len(rec.msgs) != 0 || tbl.Version() != v {
		t.Fatalf("unexpected effect: %d messages, version %d->%d", len(rec.msgs), v, tbl.Version())
	}
}

func TestNoteOnOffRoundTripFreesSlot(t *testing.T) {
	in, tbl, rec, _ := newTestIngress()
	in.Handle(0x90, 60, 100)
	in.Handle(0x80, 60, 64)
	if len(rec.msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(rec.msgs))
	}
	wantMsg(t, rec.msgs[0], testVoices[0], 60, 100, 0)
	wantMsg(t, rec.msgs[1], testVoices[0], 60, 0, 0)
	slot, ok := tbl.Allocate(62)
	if !ok || slot != 0 {
		t.Fatalf("slot 0 not returned to the pool: (%d, %v)", slot, ok)
	}
}

func TestVelocityZeroNoteOnReleases(t *testing.T) {
	in, _, rec, _ := newTestIngress()
	in.Handle(0x93, 64, 90)
	in.Handle(0x93, 64, 0)
	wantMsg(t, rec.msgs[1], testVoices[0], 64, 0, 3)
	if _, ok := in.voices.FindByNote(64); ok {
		t.Fatalf("voice still active")
	}
}

func TestRepeatedNoteOnRetriggersSameVoice(t *testing.T) {
	in, tbl, rec, _ := newTestIngress()
	in.Handle(0x90, 60, 100)
	in.Handle(0x90, 60, 80)
	wantMsg(t, rec.msgs[1], testVoices[0], 60, 80, 0)
	if slot, _ := tbl.Allocate(61); slot != 1 {
		t.Fatalf("retrigger consumed a second slot")
	}
}

func TestControlChangeVolume(t *testing.T) {
	in, _, rec, shared := newTestIngress()
	in.Handle(0xB2, 7, 64)
	if len(rec.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(rec.msgs))
	}
	wantMsg(t, rec.msgs[0], engine.CtlIn, 64, 7, 2)
	if got := shared.Gain(); math.Abs(float64(got)-64.0/127.0) > 1e-6 {
		t.Fatalf("gain = %v, want %v", got, 64.0/127.0)
	}
	in.Handle(0xB0, 1, 10)
	if got := shared.Gain(); math.Abs(float64(got)-64.0/127.0) > 1e-6 {
		t.Fatalf("non-volume controller changed gain to %v", got)
	}
}

func TestAllNotesOffIsAPlainController(t *testing.T) {
	in, tbl, rec, _ := newTestIngress()
	in.Handle(0x90, 60, 100)
	in.Handle(0x91, 64, 100)
	rec.msgs = nil
	in.Handle(0xB2, CCAllNotesOff, 0)
	in.Handle(0xB2, CCAllSoundOff, 0)
	if len(rec.msgs) != 2 {
		t.Fatalf("messages = %d, want one control-in each", len(rec.msgs))
	}
	wantMsg(t, rec.msgs[0], engine.CtlIn, 0, CCAllNotesOff, 2)
	wantMsg(t, rec.msgs[1], engine.CtlIn, 0, CCAllSoundOff, 2)
	if !tbl.At(0).Active || !tbl.At(1).Active {
		t.Fatalf("controller released held voices")
	}
}

func TestDecodeDoesNotAllocate(t *testing.T) {
	in, _, rec, _ := newTestIngress()
	rec.msgs = make([]sent, 0, 4096)
	allocs := testing.AllocsPerRun(100, func() {
		in.Handle(0x90, 60, 100)
		in.Handle(0xB0, 1, 64)
		in.Handle(0xE0, 0x00, 0x40)
		in.Handle(0x80, 60, 0)
	})
	if allocs != 0 {
		t.Fatalf("allocs per decode = %v", allocs)
	}
}

func TestPitchBend(t *testing.T) {
	in, _, rec, _ := newTestIngress()
	in.Handle(0xE1, 0x00, 0x40)
	wantMsg(t, rec.msgs[0], engine.BendIn, 8192, 1)
	if rec.msgs[0].msg.Format != "ff" {
		t.Fatalf("format = %q", rec.msgs[0].msg.Format)
	}
	in.Handle(0xE0, 0x7F, 0x7F)
	wantMsg(t, rec.msgs[1], engine.BendIn, 16383, 0)
}

func TestOtherStatusesIgnored(t *testing.T) {
	in, _, rec, _ := newTestIngress()
	for _, status := range []byte{0xA0, 0xC0, 0xD0, 0xF8, 0xFE, 0x00, 0x45} {
		in.Handle(status, 1, 2)
	}
	if len(rec.msgs) != 0 {
		t.Fatalf("ignored statuses produced %d messages", len(rec.msgs))
	}
}

func TestDrainPreservesArrivalOrder(t *testing.T) {
	in, _, rec, _ := newTestIngress()
	q := &queue{packets: []Packet{
		NewPacket(0x90, 60, 100),
		NewPacket(0xB0, 7, 127),
		NewPacket(0x80, 60, 0),
	}}
	if n := in.Drain(q); n != 3 {
		t.Fatalf("drained %d, want 3", n)
	}
	if q.Available() {
		t.Fatalf("queue not empty")
	}
	wantMsg(t, rec.msgs[0], testVoices[0], 60, 100, 0)
	wantMsg(t, rec.msgs[1], engine.CtlIn, 127, 7, 0)
	wantMsg(t, rec.msgs[2], testVoices[0], 60, 0, 0)
	if n := in.Drain(q); n != 0 {
		t.Fatalf("empty drain returned %d", n)
	}
}
