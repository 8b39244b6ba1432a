// Package midi translates between USB-MIDI packets and patch messages.
package midi

import "fmt"

// Channel voice message types (status high nibble).
const (
	TypeNoteOff       = 0x80
	TypeNoteOn        = 0x90
	TypePolyTouch     = 0xA0
	TypeControlChange = 0xB0
	TypeProgramChange = 0xC0
	TypeTouch         = 0xD0
	TypePitchBend     = 0xE0
)

// Channel mode controllers. Ingress passes them on like any other controller.
const (
	CCAllSoundOff = 120
	CCAllNotesOff = 123
)

// Packet is a 4-byte USB-MIDI event packet: cable/code index, status, data1, data2.
type Packet [4]byte

// NewPacket frames a channel message for cable 0. The code index is the
// status high nibble, which is what USB-MIDI uses for channel voice messages.
func NewPacket(status, data1, data2 byte) Packet {
	return Packet{status >> 4, status, data1, data2}
}

// PacketFromBytes frames a short MIDI message of one to three bytes.
// Sysex and other multi-packet messages are rejected.
func PacketFromBytes(msg []byte) (Packet, bool) {
	if len(msg) == 0 || len(msg) > 3 {
		return Packet{}, false
	}
	status := msg[0]
	var p Packet
	switch {
	case status >= 0x80 && status < 0xF0:
		p[0] = status >> 4
	case status >= 0xF8:
		p[0] = 0x0F
	default:
		return Packet{}, false
	}
	copy(p[1:], msg)
	return p, true
}

func (p Packet) CodeIndex() byte { return p[0] & 0x0F }
func (p Packet) Status() byte    { return p[1] }
func (p Packet) Data1() byte     { return p[2] }
func (p Packet) Data2() byte     { return p[3] }

// Message returns the MIDI bytes carried by the packet.
func (p Packet) Message() []byte {
	switch p[1] & 0xF0 {
	case TypeProgramChange, TypeTouch:
		return []byte{p[1], p[2]}
	}
	if p[1] >= 0xF8 {
		return []byte{p[1]}
	}
	return []byte{p[1], p[2], p[3]}
}

func (p Packet) String() string {
	return fmt.Sprintf("%02X %02X %02X %02X", p[0], p[1], p[2], p[3])
}
