package led

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
)

func TestDuty(t *testing.T) {
	for _, tc := range []struct {
		level float32
		want  uint8
	}{
		{0, 0},
		{0.1, 77},
		{0.5, 255},
		{1.0 / 3.0, 255},
		{2, 255},
		{-0.4, 0},
		{float32(math.NaN()), 0},
	} {
		if got := Duty(tc.level); got != tc.want {
			t.Errorf("Duty(%v) = %d, want %d", tc.level, got, tc.want)
		}
	}
}

type fakePort struct {
	bytes.Buffer
	fail   bool
	closed bool
}

func (f *fakePort) Write(p []byte) (int, error) {
	if f.fail {
		return 0, errors.New("unplugged")
	}
	return f.Buffer.Write(p)
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEncodeFrame(t *testing.T) {
	got := EncodeFrame(0x80)
	want := []byte{0xAA, 0x55, 0x02, 0x20, 0x80, 0x02 ^ 0x20 ^ 0x80}
	if !bytes.Equal(got, want) {
		t.Fatalf("frame = % X, want % X", got, want)
	}
}

func TestSerialPWMWritesOnlyChanges(t *testing.T) {
	port := &fakePort{}
	pwm := NewSerialPWM(port, quietLogger())
	pwm.SetDuty(0)
	pwm.SetDuty(0)
	pwm.SetDuty(77)
	pwm.SetDuty(77)
	want := append(EncodeFrame(0), EncodeFrame(77)...)
	if !bytes.Equal(port.Bytes(), want) {
		t.Fatalf("wrote % X, want % X", port.Bytes(), want)
	}
	if err := pwm.Close(); err != nil || !port.closed {
		t.Fatalf("close: %v closed=%v", err, port.closed)
	}
}

func TestSerialPWMRetriesAfterWriteError(t *testing.T) {
	port := &fakePort{fail: true}
	pwm := NewSerialPWM(port, quietLogger())
	pwm.SetDuty(10)
	port.fail = false
	pwm.SetDuty(10)
	if !bytes.Equal(port.Bytes(), EncodeFrame(10)) {
		t.Fatalf("failed write should not be remembered, wrote % X", port.Bytes())
	}
}
