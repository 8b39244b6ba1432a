package midi

import "github.com/cbegin/picopd-go/internal/engine"

// NoteOutPacket builds a note packet from (note, velocity). A velocity that
// truncates to zero or below produces a note-off.
func NoteOutPacket(m engine.Message) Packet {
	note := int(m.Float(0))
	vel := int(m.Float(1))
	if vel > 0 {
		return Packet{0x09, TypeNoteOn, byte(note), byte(vel)}
	}
	return Packet{0x08, TypeNoteOff, byte(note), byte(vel)}
}

// ControlOutPacket builds a control change packet; the first two arguments
// become data1 and data2.
func ControlOutPacket(m engine.Message) Packet {
	return Packet{0x0B, TypeControlChange, byte(int(m.Float(0))), byte(int(m.Float(1)))}
}
