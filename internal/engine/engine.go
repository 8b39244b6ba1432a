// Package engine describes the contract between the control core and a
// compiled synthesis patch: receivers addressed by 32-bit name hashes, typed
// float messages in, output events and print lines out.
package engine

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Hash identifies a receiver or send object inside a compiled patch.
type Hash uint32

// Well-known receivers the patch compiler reserves for MIDI.
const (
	NoteIn         Hash = 0x67E37CA3
	CtlIn          Hash = 0x41BE0F9C
	PolyTouchIn    Hash = 0xBC530F59
	PgmChangeIn    Hash = 0x2E1EA03D
	TouchIn        Hash = 0x553925BD
	BendIn         Hash = 0x3083F0F7
	MidiIn         Hash = 0x149631BE
	MidiRealtimeIn Hash = 0x6FFF0BCF

	NoteOut      Hash = 0x0D1D4AC2
	CtlOut       Hash = 0xE5E2A040
	PolyTouchOut Hash = 0xD5ACA9D1
	PgmChangeOut Hash = 0x8753E39E
	TouchOut     Hash = 0x476D4387
	BendOut      Hash = 0xE8458013
	MidiOut      Hash = 0x6511DE55
	MidiOutPort  Hash = 0x165707E4
)

// HashString returns the receiver hash the patch compiler assigns to name.
// It is MurmurHash2 with the length as seed, reading 4-byte little-endian words.
func HashString(name string) Hash {
	const (
		m = 0x5bd1e995
		r = 24
	)
	b := []byte(name)
	x := uint32(len(b))
	for len(b) >= 4 {
		k := binary.LittleEndian.Uint32(b)
		k *= m
		k ^= k >> r
		k *= m
		x *= m
		x ^= k
		b = b[4:]
	}
	switch len(b) {
	case 3:
		x ^= uint32(b[2]) << 16
		fallthrough
	case 2:
		x ^= uint32(b[1]) << 8
		fallthrough
	case 1:
		x ^= uint32(b[0])
		x *= m
	}
	x ^= x >> 13
	x *= m
	x ^= x >> 15
	return Hash(x)
}

func (h Hash) String() string {
	return fmt.Sprintf("0x%08X", uint32(h))
}

// ParseHash accepts "0x"-prefixed hex or plain decimal.
func ParseHash(s string) (Hash, error) {
	s = strings.TrimSpace(s)
	var (
		v   uint64
		err error
	)
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		v, err = strconv.ParseUint(rest, 16, 32)
	} else {
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return Hash(v), nil
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n uint32
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("hash must be a string or number: %s", data)
		}
		*h = Hash(n)
		return nil
	}
	v, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// MaxArgs bounds the argument count of a single message.
const MaxArgs = 4

// Message is a fixed-size float tuple with a format tag ("fff", "ff", ...).
// It never allocates, so it can be built on the audio path.
type Message struct {
	Format string
	args   [MaxArgs]float32
	n      int
}

var formats = [MaxArgs + 1]string{"", "f", "ff", "fff", "ffff"}

// Floats builds a message of float arguments. Arguments past MaxArgs are dropped.
func Floats(args ...float32) Message {
	var m Message
	m.n = copy(m.args[:], args)
	m.Format = formats[m.n]
	return m
}

// Len returns the number of arguments.
func (m Message) Len() int { return m.n }

// Float returns argument i, or 0 when the message is shorter.
func (m Message) Float(i int) float32 {
	if i < 0 || i >= m.n {
		return 0
	}
	return m.args[i]
}

func (m Message) String() string {
	var sb strings.Builder
	for i := 0; i < m.n; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(float64(m.args[i]), 'g', -1, 32))
	}
	return sb.String()
}

// Event is one output produced by the patch during Process.
type Event struct {
	Name string
	Hash Hash
	Msg  Message
}

// SendHook receives output events synchronously from inside Process.
type SendHook func(ev Event)

// PrintHook receives the patch's print lines.
type PrintHook func(name, text string)

// Sender accepts control messages addressed to a receiver.
type Sender interface {
	// SendMessage schedules msg for target and reports whether the
	// patch has such a receiver.
	SendMessage(target Hash, msg Message) bool
}

// Engine is a compiled patch.
type Engine interface {
	Sender
	// Process renders frames of interleaved stereo audio from in into out.
	// in and out may be the same slice. Output events are delivered through
	// the send hook before Process returns.
	Process(in, out []float32, frames int) int
	SetSendHook(SendHook)
	SetPrintHook(PrintHook)
}
