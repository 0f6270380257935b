// Package floppyfs translates host filesystem verbs into device commands
// and metadata-directory updates.
//
// Every verb runs as one job on a single worker that owns both the device
// channel and the directory, so no two device exchanges ever overlap and
// the directory never changes underneath a verb.
package floppyfs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MGerckens/floppyfs/internal/device"
	"github.com/MGerckens/floppyfs/internal/directory"
	"github.com/MGerckens/floppyfs/internal/logging"
	"github.com/MGerckens/floppyfs/internal/metrics"
)

// Commander sends one command to the device and returns its payload.
// *device.Channel implements it.
type Commander interface {
	Send(command string) ([]string, error)
}

// Options configures a FileSystem.
type Options struct {
	// ReadOnly starts the filesystem in read-only mode.
	ReadOnly bool
	// WriteBack re-sends modified file content to the device on cleanup.
	WriteBack bool
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// FileContext is the host's handle on an open entry.
type FileContext struct {
	entry *directory.Entry
}

// Path returns the path of the entry the context was opened on.
func (fc *FileContext) Path() string {
	return fc.entry.Path
}

// IsDir reports whether the context refers to a folder.
func (fc *FileContext) IsDir() bool {
	return fc.entry.IsDir()
}

// VolumeInfo describes volume capacity.
type VolumeInfo struct {
	TotalSize int64
	FreeSize  int64
	Label     string
}

// CleanupFlags selects the actions Cleanup performs.
type CleanupFlags uint32

const (
	CleanupDelete            CleanupFlags = 0x01
	CleanupSetAllocationSize CleanupFlags = 0x02
	CleanupSetArchiveBit     CleanupFlags = 0x10
	CleanupSetLastAccessTime CleanupFlags = 0x20
	CleanupSetLastWriteTime  CleanupFlags = 0x40
	CleanupSetChangeTime     CleanupFlags = 0x80
)

// FileSystem implements the filesystem verbs on top of the device.
type FileSystem struct {
	dev       Commander
	dir       *directory.Directory
	exec      *executor
	writeBack bool
	now       func() time.Time
	readOnly  atomic.Bool
}

// New creates a FileSystem driving dev. The directory starts with only the
// root; call Sync to load the device tree.
func New(dev Commander, opts Options) *FileSystem {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	fs := &FileSystem{
		dev:       dev,
		dir:       directory.New(now()),
		exec:      newExecutor(),
		writeBack: opts.WriteBack,
		now:       now,
	}
	fs.SetReadOnly(opts.ReadOnly)
	return fs
}

// Close stops the worker. Verbs submitted afterwards fail with ErrClosed.
func (fs *FileSystem) Close() {
	fs.exec.close()
}

// SetReadOnly toggles read-only mode. While set, every write-class verb
// fails with ErrReadOnly.
func (fs *FileSystem) SetReadOnly(ro bool) {
	fs.readOnly.Store(ro)
	metrics.SetReadOnly(ro)
	logging.Info("read-only mode", logging.Bool("enabled", ro))
}

// ReadOnly reports whether read-only mode is active.
func (fs *FileSystem) ReadOnly() bool {
	return fs.readOnly.Load()
}

func (fs *FileSystem) checkWritable() error {
	if fs.readOnly.Load() {
		return ErrReadOnly
	}
	return nil
}

// run executes one verb on the worker, then logs and counts the outcome.
func (fs *FileSystem) run(ctx context.Context, op, path string, fn func() error) error {
	start := time.Now()
	err := fs.exec.do(ctx, fn)
	if err != nil {
		if _, ok := err.(*OpError); !ok {
			err = &OpError{Op: op, Path: path, Err: err}
		}
	}
	logging.Op(op, path, start, err)
	metrics.RecordVerb(op, err == nil)
	return err
}

// send issues one device command. It must only be called from a job.
func (fs *FileSystem) send(command string) ([]string, error) {
	return fs.dev.Send(command)
}

// Stat returns an entry's metadata without touching the device.
func (fs *FileSystem) Stat(ctx context.Context, path string) (directory.FileInfo, bool, error) {
	var (
		info  directory.FileInfo
		isDir bool
	)
	err := fs.run(ctx, "stat", path, func() error {
		e, err := fs.dir.Get(path)
		if err != nil {
			return err
		}
		info, isDir = e.Info(), e.IsDir()
		return nil
	})
	return info, isDir, err
}

// Create creates a file or folder on the device and indexes it.
func (fs *FileSystem) Create(ctx context.Context, path string, isDir bool, attrs directory.Attributes, allocationSize int64) (*FileContext, directory.FileInfo, error) {
	path = directory.Normalize(path)
	var fc *FileContext
	err := fs.run(ctx, "create", path, func() error {
		if err := fs.checkWritable(); err != nil {
			return err
		}
		parent, err := fs.dir.Get(directory.Parent(path))
		if err != nil {
			return err
		}
		if !parent.IsDir() {
			return ErrNotADirectory
		}
		if _, err := fs.dir.Get(path); err == nil {
			return ErrAlreadyExists
		}

		cmd := device.WriteCommand(path, nil)
		if isDir {
			cmd = device.MkdirCommand(path)
		}
		if _, err := fs.send(cmd); err != nil {
			return MapDeviceError(err,
				device.CodeExist, device.CodeNoPath, device.CodeInvalidName,
				device.CodeDenied, device.CodeWriteProtected)
		}

		now := fs.now()
		var e *directory.Entry
		if isDir {
			e = directory.NewFolder(path, attrs, now)
		} else {
			e = directory.NewFile(path, attrs, allocationSize, now)
		}
		if err := fs.dir.Insert(path, e); err != nil {
			return err
		}
		metrics.SetDirectoryEntries(fs.dir.Len())
		fc = &FileContext{entry: e}
		return nil
	})
	if err != nil {
		return nil, directory.FileInfo{}, err
	}
	return fc, fc.entry.Info(), nil
}

// Open resolves path and makes sure a file's content is available locally.
func (fs *FileSystem) Open(ctx context.Context, path string) (*FileContext, directory.FileInfo, error) {
	var (
		fc   *FileContext
		info directory.FileInfo
	)
	err := fs.run(ctx, "open", path, func() error {
		e, err := fs.dir.Get(path)
		if err != nil {
			return err
		}
		if err := fs.loadContent(e); err != nil {
			return err
		}
		fc, info = &FileContext{entry: e}, e.Info()
		return nil
	})
	return fc, info, err
}

// Lookup resolves path like Open but leaves file content on the device. It
// serves host calls that only need metadata, such as delete or utimens.
func (fs *FileSystem) Lookup(ctx context.Context, path string) (*FileContext, directory.FileInfo, error) {
	var (
		fc   *FileContext
		info directory.FileInfo
	)
	err := fs.run(ctx, "lookup", path, func() error {
		e, err := fs.dir.Get(path)
		if err != nil {
			return err
		}
		fc, info = &FileContext{entry: e}, e.Info()
		return nil
	})
	return fc, info, err
}

// CloseFile releases a context. The device is not involved.
func (fs *FileSystem) CloseFile(fc *FileContext) {
	logging.Op("close", fc.Path(), time.Now(), nil)
}

// Read returns up to length bytes of content at offset.
func (fs *FileSystem) Read(ctx context.Context, fc *FileContext, offset, length int64) ([]byte, error) {
	var data []byte
	err := fs.run(ctx, "read", fc.Path(), func() error {
		if fc.entry.IsDir() {
			return ErrInvalidArgument
		}
		if err := fs.loadContent(fc.entry); err != nil {
			return err
		}
		var err error
		data, err = fc.entry.ReadAt(offset, length)
		return err
	})
	return data, err
}

// Write stores buf at offset. A constrained write never grows the file.
func (fs *FileSystem) Write(ctx context.Context, fc *FileContext, buf []byte, offset int64, writeToEnd, constrained bool) (int, directory.FileInfo, error) {
	var (
		n    int
		info directory.FileInfo
	)
	err := fs.run(ctx, "write", fc.Path(), func() error {
		if err := fs.checkWritable(); err != nil {
			return err
		}
		e := fc.entry
		if e.IsDir() || offset < 0 {
			return ErrInvalidArgument
		}
		if err := fs.loadContent(e); err != nil {
			return err
		}
		if constrained {
			n = e.ConstrainedWrite(buf, offset)
		} else {
			var err error
			if n, err = e.Write(buf, offset, writeToEnd); err != nil {
				return err
			}
		}
		now := fs.now()
		e.LastWriteTime, e.ChangeTime = now, now
		info = e.Info()
		return nil
	})
	return n, info, err
}

// GetFileInfo returns the context's metadata.
func (fs *FileSystem) GetFileInfo(ctx context.Context, fc *FileContext) (directory.FileInfo, error) {
	var info directory.FileInfo
	err := fs.run(ctx, "get_file_info", fc.Path(), func() error {
		info = fc.entry.Info()
		return nil
	})
	return info, err
}

// SetBasicInfo updates attributes and timestamps. InvalidAttributes and
// zero times leave the corresponding value unchanged.
func (fs *FileSystem) SetBasicInfo(ctx context.Context, fc *FileContext, attrs directory.Attributes, creation, access, write, change time.Time) (directory.FileInfo, error) {
	var info directory.FileInfo
	err := fs.run(ctx, "set_basic_info", fc.Path(), func() error {
		e := fc.entry
		if attrs != directory.InvalidAttributes {
			if e.IsDir() {
				attrs |= directory.AttrDirectory
			} else {
				attrs &^= directory.AttrDirectory
			}
			e.Attributes = attrs
		}
		setIfNonZero(&e.CreationTime, creation)
		setIfNonZero(&e.LastAccessTime, access)
		setIfNonZero(&e.LastWriteTime, write)
		setIfNonZero(&e.ChangeTime, change)
		info = e.Info()
		return nil
	})
	return info, err
}

func setIfNonZero(dst *time.Time, v time.Time) {
	if !v.IsZero() {
		*dst = v
	}
}

// SetFileSize changes the logical size, or the allocation size when
// setAllocation is true.
func (fs *FileSystem) SetFileSize(ctx context.Context, fc *FileContext, size int64, setAllocation bool) (directory.FileInfo, error) {
	var info directory.FileInfo
	err := fs.run(ctx, "set_file_size", fc.Path(), func() error {
		if err := fs.checkWritable(); err != nil {
			return err
		}
		e := fc.entry
		if e.IsDir() || size < 0 {
			return ErrInvalidArgument
		}
		if err := fs.loadContent(e); err != nil {
			return err
		}
		if setAllocation {
			e.SetAllocationSize(size)
		} else {
			e.SetFileSize(size)
		}
		info = e.Info()
		return nil
	})
	return info, err
}

// CanDelete reports whether path could be deleted.
func (fs *FileSystem) CanDelete(ctx context.Context, path string) error {
	return fs.run(ctx, "can_delete", path, func() error {
		e, err := fs.dir.Get(path)
		if err != nil {
			return err
		}
		if e.IsDir() && fs.dir.HasChildren(e.Path) {
			return ErrDirectoryNotEmpty
		}
		return nil
	})
}

// ReadDirectory lists a folder, resuming after marker when it is non-empty.
func (fs *FileSystem) ReadDirectory(ctx context.Context, fc *FileContext, marker string) ([]directory.DirEntry, error) {
	var rows []directory.DirEntry
	err := fs.run(ctx, "read_directory", fc.Path(), func() error {
		if !fc.entry.IsDir() {
			return ErrNotADirectory
		}
		var err error
		rows, err = fs.dir.List(fc.entry.Path, marker)
		return err
	})
	return rows, err
}

// GetDirInfoByName looks up one child of an open folder.
func (fs *FileSystem) GetDirInfoByName(ctx context.Context, fc *FileContext, name string) (directory.DirEntry, error) {
	var row directory.DirEntry
	err := fs.run(ctx, "get_dir_info_by_name", fc.Path(), func() error {
		e, err := fs.dir.Get(directory.ChildPath(fc.entry.Path, name))
		if err != nil {
			return err
		}
		row = directory.DirEntry{Name: e.Name(), Info: e.Info()}
		return nil
	})
	return row, err
}

// Cleanup applies the actions selected by flags when the host closes its
// last handle on an entry.
func (fs *FileSystem) Cleanup(ctx context.Context, fc *FileContext, flags CleanupFlags) error {
	return fs.run(ctx, "cleanup", fc.Path(), func() error {
		if err := fs.checkWritable(); err != nil {
			return err
		}
		e := fc.entry
		deleted := false

		if flags&CleanupDelete != 0 {
			if fs.dir.HasChildren(e.Path) {
				return nil
			}
			if err := fs.deleteEntry(e); err != nil {
				return err
			}
			deleted = true
		}

		if flags&CleanupSetAllocationSize != 0 && !e.IsDir() {
			e.AdaptAllocationSize(e.FileSize)
		}
		if flags&CleanupSetArchiveBit != 0 && !e.IsDir() {
			e.Attributes |= directory.AttrArchive
		}
		now := fs.now()
		if flags&CleanupSetLastAccessTime != 0 {
			e.LastAccessTime = now
		}
		if flags&CleanupSetLastWriteTime != 0 {
			e.LastWriteTime = now
		}
		if flags&CleanupSetChangeTime != 0 {
			e.ChangeTime = now
		}

		if !deleted && fs.writeBack && e.Dirty {
			return fs.writeBackContent(e)
		}
		return nil
	})
}

// deleteEntry removes e from the device first and from the index only once
// the device agrees, so a failed command leaves both sides unchanged.
func (fs *FileSystem) deleteEntry(e *directory.Entry) error {
	if _, err := fs.dir.Get(e.Path); err != nil {
		return err
	}
	cmd := device.DelCommand(e.Path)
	if e.IsDir() {
		cmd = device.RmdirCommand(e.Path)
	}
	if _, err := fs.send(cmd); err != nil {
		mapped := MapDeviceError(err,
			device.CodeNoFile, device.CodeNoPath, device.CodeDenied, device.CodeWriteProtected)
		if !errors.Is(mapped, ErrNotFound) {
			return mapped
		}
		logging.Warn("entry already gone from device", logging.String("path", e.Path))
	}
	if err := fs.dir.Remove(e.Path); err != nil {
		return err
	}
	metrics.SetDirectoryEntries(fs.dir.Len())
	return nil
}

// Overwrite truncates a file and resets its attributes.
func (fs *FileSystem) Overwrite(ctx context.Context, fc *FileContext, attrs directory.Attributes, replace bool, allocationSize int64) (directory.FileInfo, error) {
	var info directory.FileInfo
	err := fs.run(ctx, "overwrite", fc.Path(), func() error {
		if err := fs.checkWritable(); err != nil {
			return err
		}
		e := fc.entry
		if e.IsDir() {
			return ErrInvalidArgument
		}

		attrs |= directory.AttrArchive
		if replace {
			e.Attributes = attrs
		} else {
			e.Attributes |= attrs
		}

		e.SetFileSize(0)
		e.SetAllocationSize(allocationSize)
		e.Loaded, e.Dirty = true, true

		now := fs.now()
		e.LastAccessTime, e.LastWriteTime, e.ChangeTime = now, now, now
		info = e.Info()
		return nil
	})
	return info, err
}

// Flush is a no-op: the device has no flush primitive.
func (fs *FileSystem) Flush(ctx context.Context, fc *FileContext) (directory.FileInfo, error) {
	var info directory.FileInfo
	err := fs.run(ctx, "flush", fc.Path(), func() error {
		info = fc.entry.Info()
		return nil
	})
	return info, err
}

// GetVolumeInfo asks the device for its used and free byte counts.
func (fs *FileSystem) GetVolumeInfo(ctx context.Context) (VolumeInfo, error) {
	var vi VolumeInfo
	err := fs.run(ctx, "get_volume_info", "", func() error {
		lines, err := fs.send(device.FullDirCommand())
		if err != nil {
			return MapDeviceError(err)
		}
		used, free, err := device.ParseUsage(lines)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		vi = VolumeInfo{TotalSize: used + free, FreeSize: free}
		return nil
	})
	return vi, err
}

// SetVolumeLabel is not supported.
func (fs *FileSystem) SetVolumeLabel(ctx context.Context, label string) error {
	return fs.unimplemented(ctx, "set_volume_label", "")
}

// GetSecurityByName is not supported.
func (fs *FileSystem) GetSecurityByName(ctx context.Context, path string) error {
	return fs.unimplemented(ctx, "get_security_by_name", path)
}

// GetSecurity is not supported.
func (fs *FileSystem) GetSecurity(ctx context.Context, fc *FileContext) error {
	return fs.unimplemented(ctx, "get_security", fc.Path())
}

// SetSecurity is not supported.
func (fs *FileSystem) SetSecurity(ctx context.Context, fc *FileContext) error {
	return fs.unimplemented(ctx, "set_security", fc.Path())
}

// Rename is not supported.
func (fs *FileSystem) Rename(ctx context.Context, fc *FileContext, newPath string, replaceIfExists bool) error {
	return fs.unimplemented(ctx, "rename", fc.Path())
}

func (fs *FileSystem) unimplemented(ctx context.Context, op, path string) error {
	return fs.run(ctx, op, path, func() error {
		return ErrUnimplemented
	})
}
