// Package device drives the floppy controller over its line-oriented serial
// command protocol.
package device

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MGerckens/floppyfs/internal/logging"
	"github.com/MGerckens/floppyfs/internal/metrics"
)

type exchangeState int

const (
	awaitingEcho exchangeState = iota
	collecting
)

// Channel frames command/response exchanges over a Transport.
//
// The protocol carries no request identifiers, so responses are matched to
// commands purely by arrival order. Send must therefore never be called
// concurrently; the caller owns serialization.
type Channel struct {
	t  Transport
	br *bufio.Reader
}

// NewChannel binds a channel to a transport.
func NewChannel(t Transport) *Channel {
	return &Channel{
		t:  t,
		br: bufio.NewReader(t),
	}
}

// Send writes one command and collects the response payload: every line
// between the prompt echo and the blank terminator line. A device error line
// ends the exchange with a *DeviceError; transport failures are returned as
// *TransportError.
func (c *Channel) Send(command string) ([]string, error) {
	start := time.Now()
	name := commandName(command)

	lines, err := c.exchange(command)

	metrics.RecordDeviceCommand(name, outcome(err), time.Since(start))
	var te *TransportError
	if errors.As(err, &te) {
		c.resync()
	}
	return lines, err
}

func (c *Channel) exchange(command string) ([]string, error) {
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	if _, err := io.WriteString(c.t, command); err != nil {
		return nil, transportError(err)
	}

	state := awaitingEcho
	var payload []string
	for {
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		kind, code, msg := classifyLine(line)

		if state == awaitingEcho {
			if kind == linePrompt {
				state = collecting
				continue
			}
			logging.S().Debugf("device: dropping %q before prompt echo", line)
			continue
		}

		switch kind {
		case linePrompt:
			// A repeated prompt carries no payload.
		case lineError:
			metrics.RecordDeviceError(strconv.Itoa(int(code)))
			return nil, &DeviceError{Code: code, Message: msg}
		case lineTerminator:
			return payload, nil
		default:
			payload = append(payload, line)
		}
	}
}

func (c *Channel) readLine() (string, error) {
	line, err := c.br.ReadString('\n')
	if err != nil {
		return "", transportError(err)
	}
	line = strings.TrimRight(line, "\r\n")
	logging.S().Debugf("device: %q", line)
	return line, nil
}

// resync drops buffered input after a transport failure so a late response
// is not attributed to the next command.
func (c *Channel) resync() {
	c.br.Reset(c.t)
	if r, ok := c.t.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			logging.S().Warnf("device: reset input buffer: %v", err)
		}
	}
}

func transportError(err error) error {
	switch {
	case errors.Is(err, ErrReadTimeout), errors.Is(err, os.ErrDeadlineExceeded):
		return &TransportError{Kind: TransportTimeout, Err: err}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, os.ErrClosed):
		return &TransportError{Kind: TransportClosed, Err: err}
	default:
		return &TransportError{Kind: TransportIO, Err: err}
	}
}

func commandName(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "empty"
	}
	return strings.ToLower(fields[0])
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if _, ok := AsDeviceError(err); ok {
		return "device_error"
	}
	if IsTimeout(err) {
		return "timeout"
	}
	return "transport_error"
}
