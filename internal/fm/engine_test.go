package fm

import (
	"math"
	"testing"

	"github.com/cbegin/picopd-go/internal/config"
	"github.com/cbegin/picopd-go/internal/engine"
)

var receivers = []engine.Hash{0x100, 0x101}

func newTestPatch() (*Patch, *[]engine.Event) {
	p := New(48000, DefaultParams(), receivers, config.Receiver{Name: "led", Hash: engine.HashString("led")})
	var events []engine.Event
	p.SetSendHook(func(ev engine.Event) { events = append(events, ev) })
	return p, &events
}

func peakAbs(buf []float32) float64 {
	var m float64
	for _, s := range buf {
		if a := math.Abs(float64(s)); a > m {
			m = a
		}
	}
	return m
}

func TestPatchGeneratesSignalAfterNoteOn(t *testing.T) {
	p, _ := newTestPatch()
	buf := make([]float32, 512)
	p.Process(buf, buf, 256)
	if peakAbs(buf) != 0 {
		t.Fatalf("expected silence before any note")
	}
	if !p.SendMessage(receivers[0], engine.Floats(60, 100, 0)) {
		t.Fatalf("voice receiver not recognised")
	}
	for i := 0; i < 4; i++ {
		p.Process(buf, buf, 256)
	}
	if peakAbs(buf) < 0.001 {
		t.Fatalf("expected non-zero output")
	}
	if p.ActiveVoiceCount() != 1 {
		t.Fatalf("active voices = %d", p.ActiveVoiceCount())
	}
}

func TestPatchReleaseEndsVoice(t *testing.T) {
	p, _ := newTestPatch()
	buf := make([]float32, 512)
	p.SendMessage(receivers[1], engine.Floats(64, 127, 0))
	p.Process(buf, buf, 256)
	p.SendMessage(receivers[1], engine.Floats(64, 0, 0))
	// release is 0.2s; render half a second
	for i := 0; i < 100; i++ {
		p.Process(buf, buf, 256)
	}
	if p.ActiveVoiceCount() != 0 {
		t.Fatalf("voice still sounding after release")
	}
}

func TestPatchEmitsEventsInsideProcess(t *testing.T) {
	p, events := newTestPatch()
	p.SendMessage(receivers[0], engine.Floats(60, 100, 2))
	p.SendMessage(engine.CtlIn, engine.Floats(64, 1, 2))
	if len(*events) != 0 {
		t.Fatalf("events delivered outside Process")
	}
	buf := make([]float32, 256)
	p.Process(buf, buf, 128)
	got := *events
	if len(got) != 3 {
		t.Fatalf("events = %d, want noteout, ctlout, led", len(got))
	}
	if got[0].Hash != engine.NoteOut || got[0].Msg.Float(0) != 60 || got[0].Msg.Float(1) != 100 {
		t.Fatalf("first event = %+v", got[0])
	}
	if got[1].Hash != engine.CtlOut || got[1].Msg.Float(0) != 1 || got[1].Msg.Float(1) != 64 {
		t.Fatalf("second event = %+v", got[1])
	}
	if got[2].Hash != engine.HashString("led") || got[2].Msg.Float(0) <= 0 {
		t.Fatalf("led event = %+v", got[2])
	}
}

func TestPatchBendAndUnknownReceiver(t *testing.T) {
	p, _ := newTestPatch()
	if !p.SendMessage(engine.BendIn, engine.Floats(16383, 0)) {
		t.Fatalf("bend receiver not recognised")
	}
	if math.Abs(p.bend-2) > 0.001 {
		t.Fatalf("bend = %f semitones, want ~2", p.bend)
	}
	var printed string
	p.SetPrintHook(func(name, text string) { printed = name + ": " + text })
	if p.SendMessage(0x42, engine.Floats(1)) {
		t.Fatalf("unknown receiver accepted")
	}
	if printed != "fm: no receiver 0x00000042" {
		t.Fatalf("print = %q", printed)
	}
}

func TestPatchProcessClampsFrames(t *testing.T) {
	p, _ := newTestPatch()
	buf := make([]float32, 10)
	if n := p.Process(buf, buf, 64); n != 5 {
		t.Fatalf("processed %d frames, want 5", n)
	}
}

func TestEffectsDepthSetsEchoLevel(t *testing.T) {
	p, _ := newTestPatch()
	if p.echo.Wet() != 0 {
		t.Fatalf("echo should start dry")
	}
	p.SendMessage(engine.CtlIn, engine.Floats(127, 91, 0))
	if math.Abs(p.echo.Wet()-DefaultParams().EchoMaxWet) > 1e-9 {
		t.Fatalf("wet = %f", p.echo.Wet())
	}
}

func TestEchoTailOutlivesRelease(t *testing.T) {
	p, _ := newTestPatch()
	p.SendMessage(engine.CtlIn, engine.Floats(127, 91, 0))
	buf := make([]float32, 512)
	p.SendMessage(receivers[0], engine.Floats(72, 127, 0))
	for i := 0; i < 10; i++ {
		p.Process(buf, buf, 256)
	}
	p.SendMessage(receivers[0], engine.Floats(72, 0, 0))
	for p.ActiveVoiceCount() > 0 {
		p.Process(buf, buf, 256)
	}
	p.Process(buf, buf, 256)
	if peakAbs(buf) < 1e-4 {
		t.Fatalf("expected echo tail after the voice ended")
	}
}
