// Package usbmidi provides the MIDI transports the control loop polls.
package usbmidi

import (
	"sync"

	"github.com/cbegin/picopd-go/internal/midi"
)

// Port is a packet transport in both directions. Task runs connection
// bookkeeping and is called once per loop iteration; no method blocks.
type Port interface {
	Task()
	Available() bool
	ReadPacket(p *midi.Packet) bool
	Mounted() bool
	WritePacket(p midi.Packet)
}

// queueSize bounds packets buffered between two drains.
const queueSize = 256

// packetQueue is a bounded single-consumer queue. Producers never block; when the
// loop falls behind, newer packets are dropped.
type packetQueue chan midi.Packet

func newPacketQueue() packetQueue { return make(packetQueue, queueSize) }

func (q packetQueue) push(p midi.Packet) bool {
	select {
	case q <- p:
		return true
	default:
		return false
	}
}

func (q packetQueue) Available() bool { return len(q) > 0 }

func (q packetQueue) ReadPacket(p *midi.Packet) bool {
	select {
	case *p = <-q:
		return true
	default:
		return false
	}
}

// Memory is an in-process port: packets are injected by the caller and
// written packets are collected.
type Memory struct {
	rx      packetQueue
	mu      sync.Mutex
	mounted bool
	sent    []midi.Packet
}

func NewMemory(mounted bool) *Memory {
	return &Memory{rx: newPacketQueue(), mounted: mounted}
}

// Inject queues p for the next drain. It reports false when the queue is full.
func (m *Memory) Inject(p midi.Packet) bool { return m.rx.push(p) }

func (m *Memory) Task() {}

func (m *Memory) Available() bool                { return m.rx.Available() }
func (m *Memory) ReadPacket(p *midi.Packet) bool { return m.rx.ReadPacket(p) }

func (m *Memory) SetMounted(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mounted = v
}

func (m *Memory) Mounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

func (m *Memory) WritePacket(p midi.Packet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, p)
}

// Sent returns and clears the written packets.
func (m *Memory) Sent() []midi.Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sent
	m.sent = nil
	return out
}
