package voice

import "github.com/cbegin/picopd-go/internal/engine"

// Voice is one slot of the table.
type Voice struct {
	Note    uint8
	Active  bool
	Address engine.Hash
}

// Table is a fixed-capacity voice registry. Slots are identified by index and
// each slot's engine address is bound once at construction. Allocation never
// steals: when every slot is active the note is refused.
type Table struct {
	voices  []Voice
	version uint64
}

// New creates one inactive slot per address, in the given order.
func New(addresses []engine.Hash) *Table {
	t := &Table{voices: make([]Voice, len(addresses))}
	for i, addr := range addresses {
		t.voices[i].Address = addr
	}
	return t
}

// Len returns the polyphony.
func (t *Table) Len() int { return len(t.voices) }

// Allocate claims the lowest free slot for note.
func (t *Table) Allocate(note uint8) (int, bool) {
	for i := range t.voices {
		if !t.voices[i].Active {
			t.voices[i].Note = note
			t.voices[i].Active = true
			t.version++
			return i, true
		}
	}
	return -1, false
}

// FindByNote returns the lowest active slot holding note.
func (t *Table) FindByNote(note uint8) (int, bool) {
	for i := range t.voices {
		if t.voices[i].Active && t.voices[i].Note == note {
			return i, true
		}
	}
	return -1, false
}

// Release marks slot inactive. The stale note is left in place.
func (t *Table) Release(slot int) {
	if slot < 0 || slot >= len(t.voices) || !t.voices[slot].Active {
		return
	}
	t.voices[slot].Active = false
	t.version++
}

// Address returns the engine receiver bound to slot.
func (t *Table) Address(slot int) engine.Hash {
	return t.voices[slot].Address
}

// At returns a copy of slot.
func (t *Table) At(slot int) Voice {
	return t.voices[slot]
}

// Version changes whenever a slot is allocated or released.
func (t *Table) Version() uint64 { return t.version }

// Snapshot copies the table for readers outside the control loop.
func (t *Table) Snapshot() []Voice {
	out := make([]Voice, len(t.voices))
	copy(out, t.voices)
	return out
}
