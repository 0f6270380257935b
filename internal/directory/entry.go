package directory

import (
	"math"
	"time"
)

// Kind distinguishes files from folders.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// Attributes is a Windows FILE_ATTRIBUTE_* bitset.
type Attributes uint32

const (
	AttrReadOnly  Attributes = 0x00000001
	AttrHidden    Attributes = 0x00000002
	AttrSystem    Attributes = 0x00000004
	AttrDirectory Attributes = 0x00000010
	AttrArchive   Attributes = 0x00000020
	AttrNormal    Attributes = 0x00000080

	// InvalidAttributes tells SetBasicInfo to leave attributes alone.
	InvalidAttributes Attributes = 0xFFFFFFFF
)

// SectorSize is the allocation unit used to round allocation sizes.
const SectorSize = 512

// Entry is a file or folder record in the directory index.
type Entry struct {
	Path       string
	Kind       Kind
	Attributes Attributes

	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time

	AllocationSize int64

	// File-only state.
	FileSize int64
	Data     []byte
	// Loaded is set once Data mirrors the device copy.
	Loaded bool
	// Dirty is set when Data changed locally since the last write-back.
	Dirty bool
}

// FileInfo is a snapshot of an entry's metadata handed to the host.
type FileInfo struct {
	Attributes     Attributes
	AllocationSize int64
	FileSize       int64
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
}

// DirEntry is one row of a directory listing.
type DirEntry struct {
	Name string
	Info FileInfo
}

// NewFolder creates a folder entry stamped with now.
func NewFolder(p string, attrs Attributes, now time.Time) *Entry {
	return &Entry{
		Path:           Normalize(p),
		Kind:           KindFolder,
		Attributes:     attrs | AttrDirectory,
		CreationTime:   now,
		LastAccessTime: now,
		LastWriteTime:  now,
		ChangeTime:     now,
		Loaded:         true,
	}
}

// NewFile creates an empty file entry stamped with now.
func NewFile(p string, attrs Attributes, allocationSize int64, now time.Time) *Entry {
	if attrs == 0 {
		attrs = AttrNormal
	}
	e := &Entry{
		Path:           Normalize(p),
		Kind:           KindFile,
		Attributes:     attrs | AttrArchive,
		CreationTime:   now,
		LastAccessTime: now,
		LastWriteTime:  now,
		ChangeTime:     now,
		Loaded:         true,
	}
	e.SetAllocationSize(allocationSize)
	return e
}

// NewListedFile creates a file entry from a device listing row. Its content
// is fetched later, so only empty files start out loaded.
func NewListedFile(p string, size int64, now time.Time) *Entry {
	e := NewFile(p, 0, 0, now)
	e.FileSize = size
	e.AdaptAllocationSize(size)
	e.Loaded = size == 0
	return e
}

// IsDir reports whether the entry is a folder.
func (e *Entry) IsDir() bool {
	return e.Kind == KindFolder
}

// Name returns the entry's last path element.
func (e *Entry) Name() string {
	return Base(e.Path)
}

// Info returns a metadata snapshot.
func (e *Entry) Info() FileInfo {
	return FileInfo{
		Attributes:     e.Attributes,
		AllocationSize: e.AllocationSize,
		FileSize:       e.FileSize,
		CreationTime:   e.CreationTime,
		LastAccessTime: e.LastAccessTime,
		LastWriteTime:  e.LastWriteTime,
		ChangeTime:     e.ChangeTime,
	}
}

func roundUpToSector(n int64) int64 {
	return (n + SectorSize - 1) / SectorSize * SectorSize
}

// SetAllocationSize sets the allocation size, truncating content that no
// longer fits.
func (e *Entry) SetAllocationSize(n int64) {
	if n < 0 {
		n = 0
	}
	e.AllocationSize = n
	if e.FileSize > n {
		e.Data = e.Data[:n]
		e.FileSize = n
		e.Dirty = true
	}
}

// AdaptAllocationSize rounds the allocation size up to whole sectors of size.
func (e *Entry) AdaptAllocationSize(size int64) {
	e.SetAllocationSize(roundUpToSector(size))
}

// SetFileSize truncates or zero-extends the content.
func (e *Entry) SetFileSize(n int64) {
	if n < 0 {
		n = 0
	}
	switch {
	case n < e.FileSize:
		e.Data = e.Data[:n]
	case n > e.FileSize:
		e.Data = append(e.Data, make([]byte, n-e.FileSize)...)
	}
	if n > e.AllocationSize {
		e.AdaptAllocationSize(n)
	}
	if n != e.FileSize {
		e.Dirty = true
	}
	e.FileSize = n
}

// ReadAt returns up to length bytes starting at offset.
func (e *Entry) ReadAt(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, ErrInvalidArgument
	}
	if offset >= e.FileSize {
		return nil, ErrEndOfFile
	}
	end := e.FileSize
	if length < e.FileSize-offset {
		end = offset + length
	}
	out := make([]byte, end-offset)
	copy(out, e.Data[offset:end])
	return out, nil
}

// Write stores buf at offset (or at the end when writeToEnd is set),
// growing the file as needed. It returns the number of bytes written.
func (e *Entry) Write(buf []byte, offset int64, writeToEnd bool) (int, error) {
	if writeToEnd {
		offset = e.FileSize
	}
	if offset < 0 || int64(len(buf)) > math.MaxInt64-offset {
		return 0, ErrInvalidArgument
	}
	end := offset + int64(len(buf))
	if end > e.FileSize {
		e.SetFileSize(end)
	}
	copy(e.Data[offset:end], buf)
	e.Dirty = true
	return len(buf), nil
}

// ConstrainedWrite stores buf at offset without growing the file.
func (e *Entry) ConstrainedWrite(buf []byte, offset int64) int {
	if offset < 0 || offset >= e.FileSize {
		return 0
	}
	end := e.FileSize
	if int64(len(buf)) < e.FileSize-offset {
		end = offset + int64(len(buf))
	}
	n := copy(e.Data[offset:end], buf)
	e.Dirty = true
	return n
}

// SetContent replaces the content with data fetched from the device.
func (e *Entry) SetContent(data []byte) {
	e.Data = data
	e.FileSize = int64(len(data))
	if e.AllocationSize < e.FileSize {
		e.AdaptAllocationSize(e.FileSize)
	}
	e.Loaded = true
	e.Dirty = false
}
