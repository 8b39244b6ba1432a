// Package router dispatches the patch's output events to side effects.
package router

import (
	"github.com/cbegin/picopd-go/internal/engine"
	"github.com/cbegin/picopd-go/internal/midi"
	"github.com/cbegin/picopd-go/internal/state"
)

// Route is what happens to events sent to one hash.
type Route int

const (
	Ignored Route = iota
	NoteOut
	ControlOut
	LEDOut
)

func (r Route) String() string {
	switch r {
	case NoteOut:
		return "note-out"
	case ControlOut:
		return "control-out"
	case LEDOut:
		return "led-out"
	default:
		return "ignored"
	}
}

// Sink transmits MIDI packets when a receiver is attached.
type Sink interface {
	Mounted() bool
	WritePacket(p midi.Packet)
}

// Router holds a hash to route table fixed at construction.
type Router struct {
	routes map[engine.Hash]Route
	out    Sink
	shared *state.Shared
}

// DefaultRoutes maps the patch compiler's MIDI sends plus the LED send. A
// zero led hash leaves the LED unrouted.
// The remaining MIDI sends are listed as ignored until they get a handler.
func DefaultRoutes(led engine.Hash) map[engine.Hash]Route {
	routes := map[engine.Hash]Route{
		engine.NoteOut:      NoteOut,
		engine.CtlOut:       ControlOut,
		engine.PolyTouchOut: Ignored,
		engine.PgmChangeOut: Ignored,
		engine.TouchOut:     Ignored,
		engine.BendOut:      Ignored,
		engine.MidiOut:      Ignored,
		engine.MidiOutPort:  Ignored,
	}
	if led != 0 {
		routes[led] = LEDOut
	}
	return routes
}

func New(routes map[engine.Hash]Route, out Sink, shared *state.Shared) *Router {
	table := make(map[engine.Hash]Route, len(routes))
	for h, r := range routes {
		table[h] = r
	}
	return &Router{routes: table, out: out, shared: shared}
}

// Lookup reports the route for h.
func (r *Router) Lookup(h engine.Hash) Route {
	return r.routes[h]
}

// Route handles one event. It is installed as the engine's send hook and
// runs inside Process, so it must not block.
func (r *Router) Route(ev engine.Event) {
	var p midi.Packet
	switch r.routes[ev.Hash] {
	case LEDOut:
		r.shared.SetLED(ev.Msg.Float(0))
		return
	case NoteOut:
		p = midi.NoteOutPacket(ev.Msg)
	case ControlOut:
		p = midi.ControlOutPacket(ev.Msg)
	default:
		return
	}
	if p[0] != 0 && r.out.Mounted() {
		r.out.WritePacket(p)
	}
}
