package midi

import (
	"bytes"
	"testing"

	"github.com/cbegin/picopd-go/internal/engine"
)

func TestNoteOutPacket(t *testing.T) {
	for _, tc := range []struct {
		name string
		msg  engine.Message
		want Packet
	}{
		{"note on", engine.Floats(60, 100), Packet{0x09, 0x90, 60, 100}},
		{"velocity zero is note off", engine.Floats(60, 0), Packet{0x08, 0x80, 60, 0}},
		{"fractions truncate", engine.Floats(61.9, 0.7), Packet{0x08, 0x80, 61, 0}},
		{"channel argument ignored", engine.Floats(48, 1.5, 9), Packet{0x09, 0x90, 48, 1}},
		{"missing velocity", engine.Floats(40), Packet{0x08, 0x80, 40, 0}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := NoteOutPacket(tc.msg); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestControlOutPacket(t *testing.T) {
	got := ControlOutPacket(engine.Floats(74, 33.6, 0))
	want := Packet{0x0B, 0xB0, 74, 33}
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestPacketFromBytes(t *testing.T) {
	for _, tc := range []struct {
		in   []byte
		want Packet
		ok   bool
	}{
		{[]byte{0x91, 60, 100}, Packet{0x09, 0x91, 60, 100}, true},
		{[]byte{0xC0, 5}, Packet{0x0C, 0xC0, 5, 0}, true},
		{[]byte{0xF8}, Packet{0x0F, 0xF8, 0, 0}, true},
		{[]byte{0xF0, 1, 2}, Packet{}, false},
		{[]byte{0xF0, 1, 2, 3, 0xF7}, Packet{}, false},
		{nil, Packet{}, false},
	} {
		got, ok := PacketFromBytes(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("PacketFromBytes(% X) = (%s, %v), want (%s, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
		if ok && !bytes.Equal(got.Message(), tc.in) {
			t.Fatalf("Message() = % X, want % X", got.Message(), tc.in)
		}
	}
}
