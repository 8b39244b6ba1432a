package picopd

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cbegin/picopd-go/internal/audio"
	"github.com/cbegin/picopd-go/internal/config"
	"github.com/cbegin/picopd-go/internal/engine"
	"github.com/cbegin/picopd-go/internal/led"
	"github.com/cbegin/picopd-go/internal/midi"
	"github.com/cbegin/picopd-go/internal/router"
	"github.com/cbegin/picopd-go/internal/state"
	"github.com/cbegin/picopd-go/internal/usbmidi"
	"github.com/cbegin/picopd-go/internal/voice"
)

const defaultIdleInterval = 500 * time.Microsecond

type Option func(*coreConfig)

type coreConfig struct {
	idle      time.Duration
	pwm       led.PWM
	printHook engine.PrintHook
}

func defaultCoreConfig() coreConfig {
	return coreConfig{
		idle: defaultIdleInterval,
		pwm:  led.Discard{},
		printHook: func(name, text string) {
			slog.Debug("["+name+"] "+text)
		},
	}
}

// WithIdleInterval sets how long Run waits after a Tick that found no free
// audio buffer. Zero spins.
func WithIdleInterval(d time.Duration) Option {
	return func(cfg *coreConfig) {
		cfg.idle = d
	}
}

// WithPWM attaches the LED peripheral.
func WithPWM(pwm led.PWM) Option {
	return func(cfg *coreConfig) {
		cfg.pwm = pwm
	}
}

// WithPrintHook replaces the default handler for the patch's print output.
func WithPrintHook(h engine.PrintHook) Option {
	return func(cfg *coreConfig) {
		cfg.printHook = h
	}
}

// Core owns everything the control loop touches: the voice table, the shared
// scalars, the scratch block and the collaborators. All of its methods except
// Status must be called from the loop's goroutine.
type Core struct {
	engine  engine.Engine
	port    usbmidi.Port
	pool    *audio.Pool
	pwm     led.PWM
	shared  *state.Shared
	voices  *voice.Table
	ingress *midi.Ingress
	router  *router.Router
	scratch []float32
	idle    time.Duration

	published uint64
	snapshot  atomic.Pointer[[]voice.Voice]
}

// Status is a point-in-time view of the core for diagnostics.
type Status struct {
	Gain        float32
	LEDLevel    float32
	LEDDuty     uint8
	Voices      []voice.Voice
	MIDIMounted bool
}

// New wires eng, port and pool together according to s. The router is
// installed as eng's send hook.
func New(s config.Settings, eng engine.Engine, port usbmidi.Port, pool *audio.Pool, opts ...Option) (*Core, error) {
	if eng == nil || port == nil || pool == nil {
		return nil, errors.New("engine, port and pool are required")
	}
	s.Resolve()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	cfg := defaultCoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.pwm == nil {
		cfg.pwm = led.Discard{}
	}

	shared := state.New()
	voices := voice.New(s.Addresses())
	c := &Core{
		engine:  eng,
		port:    port,
		pool:    pool,
		pwm:     cfg.pwm,
		shared:  shared,
		voices:  voices,
		ingress: midi.NewIngress(voices, eng, shared, uint8(s.VolumeCC)),
		router:  router.New(router.DefaultRoutes(s.LEDHash), port, shared),
		scratch: make([]float32, s.BufferSize*audio.Channels),
		idle:    cfg.idle,
	}
	c.published = voices.Version()
	snap := voices.Snapshot()
	c.snapshot.Store(&snap)

	eng.SetSendHook(c.router.Route)
	if cfg.printHook != nil {
		eng.SetPrintHook(cfg.printHook)
	}
	return c, nil
}

// Tick runs one loop iteration: transport bookkeeping, MIDI drain, LED
// update, one audio block. It never blocks and reports whether an audio
// block was produced.
func (c *Core) Tick() bool {
	c.port.Task()
	c.ingress.Drain(c.port)
	c.publishVoices()
	c.pwm.SetDuty(led.Duty(c.shared.LED()))
	return c.renderAudio()
}

// Run ticks until ctx is done.
func (c *Core) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !c.Tick() && c.idle > 0 {
			time.Sleep(c.idle)
		}
	}
}

func (c *Core) publishVoices() {
	if v := c.voices.Version(); v != c.published {
		snap := c.voices.Snapshot()
		c.snapshot.Store(&snap)
		c.published = v
	}
}

// Status may be called from any goroutine.
func (c *Core) Status() Status {
	level := c.shared.LED()
	return Status{
		Gain:        c.shared.Gain(),
		LEDLevel:    level,
		LEDDuty:     led.Duty(level),
		Voices:      *c.snapshot.Load(),
		MIDIMounted: c.port.Mounted(),
	}
}

// Gain returns the current output gain.
func (c *Core) Gain() float32 { return c.shared.Gain() }
