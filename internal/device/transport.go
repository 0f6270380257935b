package device

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Transport is the byte channel to the device. Reads block until at least
// one byte is available and return ErrReadTimeout once the transport's read
// timeout elapses without data.
type Transport interface {
	io.Reader
	io.Writer
}

// inputResetter is implemented by transports that can discard unread input,
// used to resynchronise after a failed exchange.
type inputResetter interface {
	ResetInputBuffer() error
}

// SerialConfig configures the serial transport.
type SerialConfig struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// DefaultSerialConfig returns the line parameters the firmware uses.
func DefaultSerialConfig(port string) SerialConfig {
	return SerialConfig{
		Port:        port,
		BaudRate:    2000000,
		ReadTimeout: 60 * time.Second,
	}
}

// SerialTransport is a Transport over a serial port.
type SerialTransport struct {
	port serial.Port
	name string
}

// OpenSerial opens and configures the serial port (8N1).
func OpenSerial(cfg SerialConfig) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	return &SerialTransport{port: port, name: cfg.Port}, nil
}

// Read implements io.Reader. The serial library reports an expired read
// timeout as a zero-length read with no error.
func (t *SerialTransport) Read(p []byte) (int, error) {
	n, err := t.port.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, ErrReadTimeout
	}
	return n, err
}

func (t *SerialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

// ResetInputBuffer discards bytes received but not yet read.
func (t *SerialTransport) ResetInputBuffer() error {
	return t.port.ResetInputBuffer()
}

// Close closes the port.
func (t *SerialTransport) Close() error {
	return t.port.Close()
}

// Name returns the port name.
func (t *SerialTransport) Name() string {
	return t.name
}
