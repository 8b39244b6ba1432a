package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	picopd "github.com/cbegin/picopd-go"
	"github.com/cbegin/picopd-go/internal/audio"
	"github.com/cbegin/picopd-go/internal/config"
	"github.com/cbegin/picopd-go/internal/fm"
	"github.com/cbegin/picopd-go/internal/led"
	"github.com/cbegin/picopd-go/internal/status"
	"github.com/cbegin/picopd-go/internal/usbmidi"

	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger = slog.Default()

// initLogger routes slog, and with it the stdlib log package, to stderr or
// to a rotating file.
func initLogger(logfile string, debug bool) io.Writer {
	var w io.Writer = os.Stderr
	if logfile != "" {
		w = &lumberjack.Logger{
			Filename:   logfile,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
		}
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}))
	slog.SetDefault(logger)
	return w
}

func main() {
	var (
		settingsPath = flag.String("settings", "", "path to settings.json (defaults when empty)")
		debug        = flag.Bool("debug", false, "debug logging")
		logfile      = flag.String("log", "", "log to a rotating file instead of stderr")
		statusAddr   = flag.String("status", "", "serve the status endpoint on this address, e.g. 127.0.0.1:8080")
		renderPath   = flag.String("render", "", "render the demo phrase to a WAV file and exit")
		seconds      = flag.Float64("seconds", 4, "length of -render output")
		ledPort      = flag.String("led-port", "", "serial port for the LED (overrides led_port)")
		midiPrefer   = flag.String("midi-prefer", "", "comma-separated substrings of preferred MIDI port names")
	)
	flag.Parse()

	logWriter := initLogger(*logfile, *debug)

	settings, err := config.Load(*settingsPath)
	if err != nil {
		logger.Error("settings", "err", err)
		os.Exit(1)
	}
	if *ledPort != "" {
		settings.LEDPort = *ledPort
	}

	if *renderPath != "" {
		if err := render(settings, *renderPath, *seconds); err != nil {
			logger.Error("render", "err", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, settings, *statusAddr, splitList(*midiPrefer), logWriter); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, settings config.Settings, statusAddr string, prefer []string, accessLog io.Writer) error {
	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("midi driver: %w", err)
	}
	defer drv.Close()
	dev := usbmidi.NewDevice(drv, logger, usbmidi.WithPreferred(prefer...))
	defer dev.Close()

	var pwm led.PWM = led.Discard{}
	if settings.LEDPort != "" {
		sp, err := led.OpenSerial(settings.LEDPort, settings.LEDBaud, logger)
		if err != nil {
			return err
		}
		defer sp.Close()
		pwm = sp
	}

	pool := audio.NewPool(settings.AudioBuffers, settings.BufferSize)
	patch := fm.New(settings.SampleRate, fm.DefaultParams(), settings.Addresses(), settings.LED())
	core, err := picopd.New(settings, patch, dev, pool, picopd.WithPWM(pwm))
	if err != nil {
		return err
	}

	player, err := audio.NewPlayer(settings.SampleRate, pool, settings.BufferSize*settings.AudioBuffers)
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer player.Stop()
	player.Play()

	if statusAddr != "" {
		srv := &http.Server{
			Addr:              statusAddr,
			Handler:           status.NewHandler(core, logger, accessLog),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server", "err", err)
			}
		}()
		defer srv.Close()
		logger.Info("status endpoint up", "addr", statusAddr)
	}

	logger.Info("running",
		"sample_rate", settings.SampleRate,
		"buffer_size", settings.BufferSize,
		"voices", settings.MaxVoices,
		"led_port", settings.LEDPort)
	return core.Run(ctx)
}

func render(settings config.Settings, path string, seconds float64) error {
	port := usbmidi.NewMemory(true)
	pool := audio.NewPool(settings.AudioBuffers, settings.BufferSize)
	patch := fm.New(settings.SampleRate, fm.DefaultParams(), settings.Addresses(), settings.LED())
	core, err := picopd.New(settings, patch, port, pool)
	if err != nil {
		return err
	}
	blockSecs := float64(settings.BufferSize) / float64(settings.SampleRate)
	blocks := int(seconds / blockSecs)
	// Half a second per beat.
	perBeat := int(0.5/blockSecs + 0.5)
	if perBeat < 1 {
		perBeat = 1
	}
	samples := picopd.RenderScript(core, port, pool, picopd.DemoPhrase(perBeat), blocks)
	wav := picopd.EncodeWAVPCM16LE(samples, settings.SampleRate, audio.Channels)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return err
	}
	logger.Info("rendered", "path", path, "blocks", blocks, "bytes", len(wav))
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
