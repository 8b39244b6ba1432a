package usbmidi

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/cbegin/picopd-go/internal/midi"
)

const defaultRescanInterval = time.Second

// DefaultExcluded lists virtual/system ports that are never auto-connected.
var DefaultExcluded = []string{"Midi Through", "Through Port", "Dummy"}

type DeviceOption func(*Device)

// WithPreferred picks ports matching any of patterns first.
func WithPreferred(patterns ...string) DeviceOption {
	return func(d *Device) { d.preferred = patterns }
}

// WithExcluded replaces DefaultExcluded.
func WithExcluded(patterns ...string) DeviceOption {
	return func(d *Device) { d.excluded = patterns }
}

func WithRescanInterval(iv time.Duration) DeviceOption {
	return func(d *Device) { d.rescan = iv }
}

// Device is a Port over a host MIDI driver. It follows hot-plug: Task
// rescans at most once per interval, connects to a preferred input and
// output, and notices when they disappear. Received messages arrive on the
// driver's goroutine and are queued for the loop to drain.
type Device struct {
	mu        sync.Mutex
	drv       drivers.Driver
	logger    *slog.Logger
	preferred []string
	excluded  []string
	rescan    time.Duration
	lastScan  time.Time

	in     drivers.In
	inName string
	stopFn func()

	out     drivers.Out
	outName string
	send    func(gomidi.Message) error
	mounted atomic.Bool

	rx   packetQueue
	tx   packetQueue
	held heldNotes
}

func NewDevice(drv drivers.Driver, logger *slog.Logger, opts ...DeviceOption) *Device {
	d := &Device{
		drv:      drv,
		logger:   logger,
		excluded: DefaultExcluded,
		rescan:   defaultRescanInterval,
		rx:       newPacketQueue(),
		tx:       newPacketQueue(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) Available() bool                { return d.rx.Available() }
func (d *Device) ReadPacket(p *midi.Packet) bool { return d.rx.ReadPacket(p) }
func (d *Device) Mounted() bool                  { return d.mounted.Load() }

// WritePacket queues p for the next Task. It never touches the driver, so
// it is safe inside the engine's send hook. Packets are dropped while no
// output is connected or when the queue is full.
func (d *Device) WritePacket(p midi.Packet) {
	if !d.mounted.Load() {
		return
	}
	d.tx.push(p)
}

// Task rescans ports when the interval has elapsed, then sends the packets
// queued since the previous call.
func (d *Device) Task() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if now := time.Now(); d.lastScan.IsZero() || now.Sub(d.lastScan) >= d.rescan {
		d.lastScan = now
		d.scanInputs()
		d.scanOutputs()
	}
	d.flush()
}

func (d *Device) flush() {
	var p midi.Packet
	for d.tx.ReadPacket(&p) {
		if d.send == nil {
			continue
		}
		if err := d.send(gomidi.Message(p.Message())); err != nil {
			d.logger.Debug("midi: send failed", "device", d.outName, "packet", p.String(), "err", err)
		}
	}
}

// Close disconnects both directions. The driver itself is left to the caller.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeIn()
	d.closeOut()
}

func (d *Device) scanInputs() {
	ins, err := d.drv.Ins()
	if err != nil {
		d.logger.Error("midi: list inputs failed", "err", err)
		return
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	names = filterExcluded(names, d.excluded)

	if d.in != nil {
		if contains(names, d.inName) {
			return
		}
		d.logger.Warn("midi: input disappeared", "device", d.inName)
		d.closeIn()
		// Release whatever the vanished controller left held.
		d.held.release(func(p midi.Packet) { d.rx.push(p) })
		return
	}
	name, ok := pickPreferred(names, d.preferred)
	if !ok {
		return
	}
	for _, in := range ins {
		if in.String() == name {
			if err := d.openIn(in); err != nil {
				d.logger.Error("midi: connect input failed", "device", name, "err", err)
			}
			return
		}
	}
}

func (d *Device) openIn(in drivers.In) error {
	if err := in.Open(); err != nil {
		return fmt.Errorf("open %q: %w", in.String(), err)
	}
	name := in.String()
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, _ int32) {
		d.receive(msg)
	}, gomidi.HandleError(func(listenErr error) {
		d.logger.Warn("midi: listener error", "device", name, "err", listenErr)
	}))
	if err != nil {
		_ = in.Close()
		return fmt.Errorf("listen %q: %w", name, err)
	}
	d.in = in
	d.inName = name
	d.stopFn = stop
	d.logger.Info("midi: input connected", "device", name)
	return nil
}

// receive runs on the driver's goroutine.
func (d *Device) receive(msg gomidi.Message) {
	p, ok := midi.PacketFromBytes(msg)
	if !ok {
		return
	}
	d.held.observe(msg)
	d.rx.push(p)
}

func (d *Device) closeIn() {
	if d.stopFn != nil {
		d.stopFn()
		d.stopFn = nil
	}
	if d.in != nil {
		_ = d.in.Close()
		d.in = nil
	}
	d.inName = ""
}

func (d *Device) scanOutputs() {
	outs, err := d.drv.Outs()
	if err != nil {
		d.logger.Error("midi: list outputs failed", "err", err)
		return
	}
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	names = filterExcluded(names, d.excluded)

	if d.out != nil {
		if contains(names, d.outName) {
			return
		}
		d.logger.Warn("midi: output disappeared", "device", d.outName)
		d.closeOut()
		return
	}
	name, ok := pickPreferred(names, d.preferred)
	if !ok {
		return
	}
	for _, out := range outs {
		if out.String() != name {
			continue
		}
		send, err := gomidi.SendTo(out)
		if err != nil {
			d.logger.Error("midi: connect output failed", "device", name, "err", err)
			return
		}
		d.out = out
		d.outName = name
		d.send = send
		d.mounted.Store(true)
		d.logger.Info("midi: output connected", "device", name)
		return
	}
}

func (d *Device) closeOut() {
	d.mounted.Store(false)
	d.send = nil
	if d.out != nil {
		_ = d.out.Close()
		d.out = nil
	}
	d.outName = ""
}

// heldNotes remembers which notes the input has started and not yet ended.
type heldNotes struct {
	mu sync.Mutex
	on [16][128]bool
}

func (h *heldNotes) observe(msg gomidi.Message) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		h.mu.Lock()
		h.on[ch][key&0x7F] = true
		h.mu.Unlock()
	case msg.GetNoteEnd(&ch, &key):
		h.mu.Lock()
		h.on[ch][key&0x7F] = false
		h.mu.Unlock()
	}
}

// release emits a note-off on the original channel for every held note,
// in channel then note order, and forgets them.
func (h *heldNotes) release(emit func(midi.Packet)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.on {
		for key, on := range h.on[ch] {
			if on {
				emit(midi.NewPacket(midi.TypeNoteOff|byte(ch), byte(key), 0))
				h.on[ch][key] = false
			}
		}
	}
}

func filterExcluded(names, excluded []string) []string {
	out := names[:0]
	for _, name := range names {
		skip := false
		for _, pat := range excluded {
			if containsCI(name, pat) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, name)
		}
	}
	return out
}

// pickPreferred returns the first name matching a preferred pattern, in
// pattern order, or the only name when there is exactly one.
func pickPreferred(names, preferred []string) (string, bool) {
	for _, pat := range preferred {
		for _, name := range names {
			if containsCI(name, pat) {
				return name, true
			}
		}
	}
	if len(names) == 1 {
		return names[0], true
	}
	return "", false
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
