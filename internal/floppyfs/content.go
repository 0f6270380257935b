package floppyfs

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/MGerckens/floppyfs/internal/device"
	"github.com/MGerckens/floppyfs/internal/directory"
	"github.com/MGerckens/floppyfs/internal/metrics"
)

// loadContent fetches a listed file's content with "type" the first time it
// is opened. The device ends the response at the first empty line, so a file
// containing one comes back short; such a file fails with ErrIO and stays
// unloaded.
func (fs *FileSystem) loadContent(e *directory.Entry) error {
	if e.IsDir() || e.Loaded {
		return nil
	}
	lines, err := fs.send(device.TypeCommand(e.Path))
	if err != nil {
		return MapDeviceError(err, device.CodeNoFile, device.CodeNoPath)
	}
	data := joinContent(lines, e.FileSize)
	if int64(len(data)) != e.FileSize {
		return fmt.Errorf("%w: device returned %d bytes, listing says %d",
			ErrIO, len(data), e.FileSize)
	}
	e.SetContent(data)
	metrics.RecordContentRead(int64(len(data)))
	return nil
}

// joinContent rebuilds file bytes from the lines "type" printed. The channel
// strips line endings, so the separator that reproduces the listed size is
// preferred; "\n" is the fallback.
func joinContent(lines []string, size int64) []byte {
	for _, sep := range []string{"\n", "\r\n"} {
		joined := strings.Join(lines, sep)
		if int64(len(joined)) == size {
			return []byte(joined)
		}
		if int64(len(joined)+len(sep)) == size {
			return []byte(joined + sep)
		}
	}
	return []byte(strings.Join(lines, "\n"))
}

// contentLines splits file content into the lines "write" accepts. The
// firmware ends a write at the first empty line and echoes plain ASCII only,
// so content containing either cannot be sent.
func contentLines(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	for _, b := range data {
		if b == 0 || b > 0x7f {
			return nil, fmt.Errorf("%w: content is not plain ASCII text", ErrInvalidArgument)
		}
	}
	text := string(bytes.TrimSuffix(data, []byte("\n")))
	text = strings.TrimSuffix(text, "\r")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		l = strings.TrimSuffix(l, "\r")
		if l == "" {
			return nil, fmt.Errorf("%w: content has an empty line", ErrInvalidArgument)
		}
		lines[i] = l
	}
	return lines, nil
}

// writeBackContent replaces the device copy of e with its local content.
// The firmware refuses to write over an existing file, so the old copy is
// deleted first.
func (fs *FileSystem) writeBackContent(e *directory.Entry) error {
	lines, err := contentLines(e.Data)
	if err != nil {
		return err
	}
	if _, err := fs.send(device.DelCommand(e.Path)); err != nil {
		mapped := MapDeviceError(err, device.CodeNoFile, device.CodeDenied, device.CodeWriteProtected)
		if Kind(mapped) != ErrNotFound {
			return mapped
		}
	}
	if _, err := fs.send(device.WriteCommand(e.Path, lines)); err != nil {
		return MapDeviceError(err,
			device.CodeNoPath, device.CodeInvalidName, device.CodeDenied, device.CodeWriteProtected)
	}
	e.Dirty = false
	metrics.RecordContentWritten(int64(len(e.Data)))
	return nil
}
