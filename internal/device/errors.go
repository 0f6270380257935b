package device

import (
	"errors"
	"fmt"
	"strconv"
)

// Code is a FatFs result code as printed by the device in "Error #<code>" lines.
type Code int

// Device result codes. Values match the FRESULT enumeration of the firmware.
const (
	CodeDiskErr Code = iota + 1
	CodeIntErr
	CodeNotReady
	CodeNoFile
	CodeNoPath
	CodeInvalidName
	CodeDenied
	CodeExist
	CodeInvalidObject
	CodeWriteProtected
	CodeInvalidDrive
	CodeNotEnabled
	CodeNoFilesystem
	CodeMkfsAborted
	CodeNotEnoughCore
	CodeInvalidParameter
)

var codeNames = map[Code]string{
	CodeDiskErr:          "disk error",
	CodeIntErr:           "internal error",
	CodeNotReady:         "not ready",
	CodeNoFile:           "no file",
	CodeNoPath:           "no path",
	CodeInvalidName:      "invalid name",
	CodeDenied:           "access denied",
	CodeExist:            "already exists",
	CodeInvalidObject:    "invalid object",
	CodeWriteProtected:   "write protected",
	CodeInvalidDrive:     "invalid drive",
	CodeNotEnabled:       "not enabled",
	CodeNoFilesystem:     "no filesystem",
	CodeMkfsAborted:      "format aborted",
	CodeNotEnoughCore:    "out of memory",
	CodeInvalidParameter: "invalid parameter",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "code " + strconv.Itoa(int(c))
}

// DeviceError is an error line reported by the device for a command.
type DeviceError struct {
	Code    Code
	Message string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error #%d (%s): %s", int(e.Code), e.Code, e.Message)
}

// TransportErrorKind classifies transport failures.
type TransportErrorKind int

const (
	TransportTimeout TransportErrorKind = iota
	TransportClosed
	TransportIO
)

func (k TransportErrorKind) String() string {
	switch k {
	case TransportTimeout:
		return "timeout"
	case TransportClosed:
		return "closed"
	default:
		return "io"
	}
}

// TransportError is a failure of the byte channel below the protocol.
type TransportError struct {
	Kind TransportErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport " + e.Kind.String()
	}
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrReadTimeout is returned by transports when no byte arrived within the
// configured read timeout.
var ErrReadTimeout = errors.New("read timeout")

// AsDeviceError returns the DeviceError in err's chain, if any.
func AsDeviceError(err error) (*DeviceError, bool) {
	var de *DeviceError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == TransportTimeout
}
