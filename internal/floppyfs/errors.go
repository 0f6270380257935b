package floppyfs

import (
	"errors"
	"fmt"
	"slices"

	"github.com/MGerckens/floppyfs/internal/device"
	"github.com/MGerckens/floppyfs/internal/directory"
)

// Filesystem-facing error kinds. Match with errors.Is.
var (
	ErrNotFound          = directory.ErrNotFound
	ErrAlreadyExists     = directory.ErrAlreadyExists
	ErrDirectoryNotEmpty = directory.ErrDirectoryNotEmpty
	ErrNotADirectory     = directory.ErrNotADirectory
	ErrInvalidArgument   = directory.ErrInvalidArgument
	ErrEndOfFile         = directory.ErrEndOfFile
	ErrAccessDenied      = errors.New("access denied")
	ErrReadOnly          = errors.New("media write protected")
	ErrUnimplemented     = errors.New("not implemented")
	ErrIO                = errors.New("input/output error")
	ErrClosed            = errors.New("filesystem closed")
)

// OpError records the verb and path that failed.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

var deviceErrorKinds = map[device.Code]error{
	device.CodeNoFile:           ErrNotFound,
	device.CodeNoPath:           ErrNotFound,
	device.CodeInvalidDrive:     ErrNotFound,
	device.CodeExist:            ErrAlreadyExists,
	device.CodeDenied:           ErrAccessDenied,
	device.CodeWriteProtected:   ErrReadOnly,
	device.CodeInvalidName:      ErrInvalidArgument,
	device.CodeInvalidObject:    ErrInvalidArgument,
	device.CodeInvalidParameter: ErrInvalidArgument,
}

// MapDeviceError translates a CommandChannel failure into a filesystem
// error kind. Only the device codes listed in interpreted are translated;
// every other device code and every transport failure becomes ErrIO. The
// original error stays in the chain.
func MapDeviceError(err error, interpreted ...device.Code) error {
	if err == nil {
		return nil
	}
	if de, ok := device.AsDeviceError(err); ok && slices.Contains(interpreted, de.Code) {
		if kind, ok := deviceErrorKinds[de.Code]; ok {
			return fmt.Errorf("%w: %w", kind, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}

// Kind returns the filesystem error kind of err, or ErrIO for anything not
// produced by this package.
func Kind(err error) error {
	for _, kind := range []error{
		ErrNotFound, ErrAlreadyExists, ErrDirectoryNotEmpty, ErrNotADirectory,
		ErrInvalidArgument, ErrEndOfFile, ErrAccessDenied, ErrReadOnly,
		ErrUnimplemented, ErrClosed,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrIO
}
