package fm

import (
	"math"

	"github.com/cbegin/picopd-go/internal/config"
	"github.com/cbegin/picopd-go/internal/effects"
	"github.com/cbegin/picopd-go/internal/engine"
	"github.com/cbegin/picopd-go/internal/lfo"
)

const twoPi = math.Pi * 2

// maxPending bounds the output events queued between two Process calls.
const maxPending = 64

type Params struct {
	CarrierMul   float64
	ModMul       float64
	ModIndex     float64
	AttackSec    float64
	DecaySec     float64
	SustainLvl   float64
	ReleaseSec   float64
	MasterGain   float64
	VelocityAmp  float64
	LPFCutoff    float64 // lowpass filter cutoff in Hz (0 = disabled)
	VibratoHz    float64
	VibratoDepth float64 // semitones at modulation wheel full scale
	BendRange    float64 // semitones either side of center
	EchoMs       float64
	EchoFeedback float64
	EchoCross    float64
	EchoMaxWet   float64 // wet level at effects depth full scale
}

func DefaultParams() Params {
	return Params{
		CarrierMul:   1.0,
		ModMul:       2.0,
		ModIndex:     1.6,
		AttackSec:    0.005,
		DecaySec:     0.12,
		SustainLvl:   0.75,
		ReleaseSec:   0.2,
		MasterGain:   0.45,
		VelocityAmp:  0.8,
		LPFCutoff:    12000,
		VibratoHz:    5.5,
		VibratoDepth: 0.5,
		BendRange:    2,
		EchoMs:       180,
		EchoFeedback: 0.35,
		EchoCross:    0.6,
		EchoMaxWet:   0.5,
	}
}

const (
	ccModWheel     = 1
	ccEffectsDepth = 91
)

// Receiver and send names the patch uses for its output events.
const (
	NoteOutName = "__hv_noteout"
	CtlOutName  = "__hv_ctlout"
	PrintName   = "fm"
)

type envState int

const (
	envOff envState = iota
	envAttack
	envDecay
	envSustain
	envRelease
)

type voice struct {
	state    envState
	env      float64
	note     int
	velocity float64
	freq     float64
	carPhase float64
	modPhase float64
}

// Patch is a polyphonic two-operator FM patch with one receiver per voice,
// shaped like a compiled patch context: messages are queued by SendMessage
// and take effect, together with their output events, on the next Process.
type Patch struct {
	sampleRate float64
	params     Params
	receivers  map[engine.Hash]int
	voices     []voice
	bend       float64
	vibrato    lfo.LFO
	lpfL       float64
	lpfR       float64
	lpfAlpha   float64
	echo       *effects.Echo
	fx         effects.Chain
	ledName    string
	ledHash    engine.Hash
	pending    []engine.Event
	sendHook   engine.SendHook
	printHook  engine.PrintHook
}

// New builds a patch with one voice per receiver hash. LED levels are sent
// to led once per processed block.
func New(sampleRate int, params Params, receivers []engine.Hash, led config.Receiver) *Patch {
	p := &Patch{
		sampleRate: float64(sampleRate),
		params:     params,
		receivers:  make(map[engine.Hash]int, len(receivers)),
		voices:     make([]voice, len(receivers)),
		ledName:    led.Name,
		ledHash:    led.Hash,
		pending:    make([]engine.Event, 0, maxPending),
	}
	for i, h := range receivers {
		p.receivers[h] = i
	}
	if params.LPFCutoff > 0 && params.LPFCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (twoPi * params.LPFCutoff)
		dt := 1.0 / float64(sampleRate)
		p.lpfAlpha = dt / (rc + dt)
	}
	p.vibrato.Set(0, params.VibratoHz, lfo.Sine)
	p.echo = effects.NewEcho(sampleRate, params.EchoMs, params.EchoFeedback, params.EchoCross)
	p.fx = effects.Chain{p.echo}
	return p
}

func (p *Patch) SetSendHook(h engine.SendHook)   { p.sendHook = h }
func (p *Patch) SetPrintHook(h engine.PrintHook) { p.printHook = h }

func (p *Patch) SendMessage(target engine.Hash, msg engine.Message) bool {
	if slot, ok := p.receivers[target]; ok {
		note := int(msg.Float(0))
		vel := msg.Float(1)
		if vel > 0 {
			p.noteOn(slot, note, float64(vel))
		} else {
			p.noteOff(slot)
		}
		p.queue(NoteOutName, engine.NoteOut, engine.Floats(float32(note), vel, msg.Float(2)))
		return true
	}
	switch target {
	case engine.CtlIn:
		value, cc := msg.Float(0), msg.Float(1)
		switch int(cc) {
		case ccModWheel:
			p.vibrato.Set(float64(value)/127*p.params.VibratoDepth, p.params.VibratoHz, lfo.Sine)
		case ccEffectsDepth:
			p.echo.SetWet(float64(value) / 127 * p.params.EchoMaxWet)
		}
		p.queue(CtlOutName, engine.CtlOut, engine.Floats(cc, value, msg.Float(2)))
		return true
	case engine.BendIn:
		p.bend = (float64(msg.Float(0)) - 8192) / 8192 * p.params.BendRange
		return true
	}
	p.print("no receiver " + target.String())
	return false
}

func (p *Patch) queue(name string, h engine.Hash, msg engine.Message) {
	if len(p.pending) == cap(p.pending) {
		return
	}
	p.pending = append(p.pending, engine.Event{Name: name, Hash: h, Msg: msg})
}

func (p *Patch) print(text string) {
	if p.printHook != nil {
		p.printHook(PrintName, text)
	}
}

func (p *Patch) noteOn(slot, note int, velocity float64) {
	v := &p.voices[slot]
	*v = voice{
		state:    envAttack,
		env:      v.env,
		note:     note,
		velocity: clamp(velocity/127.0, 0, 1),
		freq:     midiToFreq(note),
	}
}

func (p *Patch) noteOff(slot int) {
	v := &p.voices[slot]
	if v.state != envOff {
		v.state = envRelease
	}
}

// Process ignores in; the patch has no audio inputs. It renders into out,
// which may alias in.
func (p *Patch) Process(in, out []float32, frames int) int {
	if n := len(out) / 2; frames > n {
		frames = n
	}
	for _, ev := range p.pending {
		if p.sendHook != nil {
			p.sendHook(ev)
		}
	}
	p.pending = p.pending[:0]

	var peak float64
	for i := 0; i < frames; i++ {
		pitch := p.bend + p.vibrato.Sample(p.sampleRate)
		freqMul := 1.0
		if pitch != 0 {
			freqMul = math.Pow(2, pitch/12)
		}
		var sum float64
		for vi := range p.voices {
			v := &p.voices[vi]
			if v.state == envOff {
				continue
			}
			sum += p.renderVoice(v, freqMul)
			if v.env > peak {
				peak = v.env
			}
		}
		sum *= p.params.MasterGain
		l, r := sum, sum
		if p.lpfAlpha > 0 {
			p.lpfL += p.lpfAlpha * (l - p.lpfL)
			p.lpfR += p.lpfAlpha * (r - p.lpfR)
			l, r = p.lpfL, p.lpfR
		}
		l, r = p.fx.Process(l, r)
		out[2*i] = float32(l)
		out[2*i+1] = float32(r)
	}
	if p.sendHook != nil {
		p.sendHook(engine.Event{Name: p.ledName, Hash: p.ledHash, Msg: engine.Floats(float32(peak))})
	}
	return frames
}

func (p *Patch) renderVoice(v *voice, freqMul float64) float64 {
	advanceEnv(v, &p.params, p.sampleRate)
	mod := math.Sin(v.modPhase) * p.params.ModIndex * v.env
	sig := math.Sin(v.carPhase+mod) * v.env * (0.2 + v.velocity*p.params.VelocityAmp)
	f := v.freq * freqMul
	v.carPhase += twoPi * f * p.params.CarrierMul / p.sampleRate
	if v.carPhase > twoPi {
		v.carPhase -= twoPi
	}
	v.modPhase += twoPi * f * p.params.ModMul / p.sampleRate
	if v.modPhase > twoPi {
		v.modPhase -= twoPi
	}
	return sig
}

// ActiveVoiceCount returns the number of voices still sounding, release tails included.
func (p *Patch) ActiveVoiceCount() int {
	n := 0
	for i := range p.voices {
		if p.voices[i].state != envOff {
			n++
		}
	}
	return n
}

func advanceEnv(v *voice, params *Params, sampleRate float64) {
	switch v.state {
	case envAttack:
		step := 1.0 / (params.AttackSec * sampleRate)
		if step <= 0 || math.IsInf(step, 0) {
			step = 1
		}
		v.env += step
		if v.env >= 1 {
			v.env = 1
			v.state = envDecay
		}
	case envDecay:
		step := (1 - params.SustainLvl) / (params.DecaySec * sampleRate)
		if step <= 0 || math.IsInf(step, 0) {
			step = 1
		}
		v.env -= step
		if v.env <= params.SustainLvl {
			v.env = params.SustainLvl
			v.state = envSustain
		}
	case envSustain:
	case envRelease:
		step := 1.0 / (params.ReleaseSec * sampleRate)
		if step <= 0 || math.IsInf(step, 0) {
			step = 1
		}
		v.env -= step
		if v.env <= 0.0001 {
			v.env = 0
			v.state = envOff
		}
	}
}

func midiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
