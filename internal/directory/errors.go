package directory

import "errors"

// Errors returned by directory operations. They double as the
// filesystem-facing error kinds used throughout floppyfs.
var (
	ErrNotFound          = errors.New("object name not found")
	ErrAlreadyExists     = errors.New("object name collision")
	ErrDirectoryNotEmpty = errors.New("directory not empty")
	ErrNotADirectory     = errors.New("not a directory")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrEndOfFile         = errors.New("end of file")
)
