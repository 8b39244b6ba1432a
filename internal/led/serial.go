package led

import (
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"
)

const (
	sof0       = 0xAA
	sof1       = 0x55
	cmdSetDuty = 0x20
)

// EncodeFrame builds the wire frame for one duty update:
//
//	[SOF0][SOF1][LEN][CMD][duty][CKS]
//
// LEN counts CMD and payload; CKS is the XOR of LEN, CMD and payload.
func EncodeFrame(duty uint8) []byte {
	length := byte(2)
	cks := length ^ cmdSetDuty ^ duty
	return []byte{sof0, sof1, length, cmdSetDuty, duty, cks}
}

// SerialPWM forwards duty values to a microcontroller over a serial line.
// Only changes are written, so calling SetDuty every loop iteration is cheap.
type SerialPWM struct {
	port    io.WriteCloser
	last    int
	logger  *slog.Logger
	scratch []byte
}

// OpenSerial opens the named serial device at the given baud rate.
func OpenSerial(name string, baud int, logger *slog.Logger) (*SerialPWM, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("led: open %s: %w", name, err)
	}
	logger.Info("led: serial port opened", "device", name, "baud", baud)
	return NewSerialPWM(p, logger), nil
}

// NewSerialPWM wraps an already open port.
func NewSerialPWM(port io.WriteCloser, logger *slog.Logger) *SerialPWM {
	return &SerialPWM{port: port, last: -1, logger: logger}
}

func (s *SerialPWM) SetDuty(duty uint8) {
	if int(duty) == s.last {
		return
	}
	s.scratch = append(s.scratch[:0], EncodeFrame(duty)...)
	if _, err := s.port.Write(s.scratch); err != nil {
		s.logger.Error("led: write error", "err", err)
		return
	}
	s.last = int(duty)
}

func (s *SerialPWM) Close() error {
	s.logger.Info("led: closing port")
	return s.port.Close()
}
