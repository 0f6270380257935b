package winfs

import (
	"errors"
	"os"
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/MGerckens/floppyfs/internal/directory"
	"github.com/MGerckens/floppyfs/internal/floppyfs"
	"github.com/MGerckens/floppyfs/internal/logging"
)

const noHandle = ^uint64(0)

func infoToStat(info directory.FileInfo, isDir, readOnly bool, stat *fuse.Stat_t) {
	*stat = fuse.Stat_t{}
	stat.Size = info.FileSize
	stat.Blksize = directory.SectorSize
	stat.Blocks = (info.AllocationSize + directory.SectorSize - 1) / directory.SectorSize
	stat.Birthtim = fuse.NewTimespec(info.CreationTime)
	stat.Atim = fuse.NewTimespec(info.LastAccessTime)
	stat.Mtim = fuse.NewTimespec(info.LastWriteTime)
	stat.Ctim = fuse.NewTimespec(info.ChangeTime)

	perm := uint32(0644)
	if isDir {
		stat.Mode = fuse.S_IFDIR
		stat.Nlink = 2
		perm = 0755
	} else {
		stat.Mode = fuse.S_IFREG
		stat.Nlink = 1
	}
	if readOnly || info.Attributes&directory.AttrReadOnly != 0 {
		perm &^= 0222
	}
	stat.Mode |= perm
	stat.Uid = uint32(os.Getuid())
	stat.Gid = uint32(os.Getgid())
}

func (h *Host) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	if oh := h.getFh(fh); oh != nil {
		info, err := h.fs.GetFileInfo(h.ctx, oh.fc)
		if err != nil {
			return errno(err)
		}
		infoToStat(info, oh.fc.IsDir(), h.fs.ReadOnly(), stat)
		return 0
	}
	info, isDir, err := h.fs.Stat(h.ctx, path)
	if err != nil {
		return errno(err)
	}
	infoToStat(info, isDir, h.fs.ReadOnly(), stat)
	return 0
}

func (h *Host) Access(path string, mask uint32) int {
	_, _, err := h.fs.Stat(h.ctx, path)
	return errno(err)
}

func (h *Host) Statfs(path string, stat *fuse.Statfs_t) int {
	vi, err := h.fs.GetVolumeInfo(h.ctx)
	if err != nil {
		return errno(err)
	}
	stat.Bsize = directory.SectorSize
	stat.Frsize = directory.SectorSize
	stat.Blocks = uint64(vi.TotalSize) / directory.SectorSize
	stat.Bfree = uint64(vi.FreeSize) / directory.SectorSize
	stat.Bavail = stat.Bfree
	stat.Namemax = 12 // 8.3
	return 0
}

func (h *Host) Opendir(path string) (int, uint64) {
	fc, _, err := h.fs.Lookup(h.ctx, path)
	if err != nil {
		return errno(err), noHandle
	}
	if !fc.IsDir() {
		return -fuse.ENOTDIR, noHandle
	}
	return 0, h.allocFh(&openHandle{fc: fc})
}

func (h *Host) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	fc, err := h.fileContext(path, fh)
	if err != nil {
		return errno(err)
	}
	rows, err := h.fs.ReadDirectory(h.ctx, fc, "")
	if err != nil {
		return errno(err)
	}
	ro := h.fs.ReadOnly()
	for _, row := range rows {
		var st fuse.Stat_t
		infoToStat(row.Info, row.Info.Attributes&directory.AttrDirectory != 0, ro, &st)
		if !fill(row.Name, &st, 0) {
			break
		}
	}
	return 0
}

func (h *Host) Releasedir(path string, fh uint64) int {
	if oh := h.freeFh(fh); oh != nil {
		h.fs.CloseFile(oh.fc)
	}
	return 0
}

func (h *Host) Open(path string, flags int) (int, uint64) {
	fc, _, err := h.fs.Open(h.ctx, path)
	if err != nil {
		return errno(err), noHandle
	}
	if fc.IsDir() {
		return -fuse.EISDIR, noHandle
	}
	oh := &openHandle{fc: fc}
	if flags&fuse.O_TRUNC != 0 {
		if _, err := h.fs.Overwrite(h.ctx, fc, 0, false, 0); err != nil {
			return errno(err), noHandle
		}
		oh.written.Store(true)
	}
	return 0, h.allocFh(oh)
}

func (h *Host) Create(path string, flags int, mode uint32) (int, uint64) {
	fc, _, err := h.fs.Create(h.ctx, path, false, attributesFromMode(mode), 0)
	if err != nil {
		return errno(err), noHandle
	}
	return 0, h.allocFh(&openHandle{fc: fc})
}

func (h *Host) Mkdir(path string, mode uint32) int {
	_, _, err := h.fs.Create(h.ctx, path, true, attributesFromMode(mode), 0)
	return errno(err)
}

func attributesFromMode(mode uint32) directory.Attributes {
	if mode&0222 == 0 {
		return directory.AttrReadOnly
	}
	return 0
}

func (h *Host) Read(path string, buff []byte, ofst int64, fh uint64) int {
	oh := h.getFh(fh)
	if oh == nil {
		return -fuse.EBADF
	}
	data, err := h.fs.Read(h.ctx, oh.fc, ofst, int64(len(buff)))
	if errors.Is(err, floppyfs.ErrEndOfFile) {
		return 0
	}
	if err != nil {
		return errno(err)
	}
	return copy(buff, data)
}

func (h *Host) Write(path string, buff []byte, ofst int64, fh uint64) int {
	oh := h.getFh(fh)
	if oh == nil {
		return -fuse.EBADF
	}
	n, _, err := h.fs.Write(h.ctx, oh.fc, buff, ofst, false, false)
	if err != nil {
		return errno(err)
	}
	oh.written.Store(true)
	return n
}

func (h *Host) Truncate(path string, size int64, fh uint64) int {
	fc, err := h.fileContext(path, fh)
	if err != nil {
		return errno(err)
	}
	if oh := h.getFh(fh); oh != nil {
		oh.written.Store(true)
	}
	_, err = h.fs.SetFileSize(h.ctx, fc, size, false)
	return errno(err)
}

func (h *Host) Flush(path string, fh uint64) int {
	oh := h.getFh(fh)
	if oh == nil {
		return 0
	}
	_, err := h.fs.Flush(h.ctx, oh.fc)
	return errno(err)
}

func (h *Host) Fsync(path string, datasync bool, fh uint64) int {
	return h.Flush(path, fh)
}

// Release runs cleanup for the last handle. Handles that wrote get the
// archive bit, fresh timestamps and, with write-back enabled, are sent to
// the device.
func (h *Host) Release(path string, fh uint64) int {
	oh := h.freeFh(fh)
	if oh == nil {
		return 0
	}
	defer h.fs.CloseFile(oh.fc)
	if h.fs.ReadOnly() {
		return 0
	}
	flags := floppyfs.CleanupSetLastAccessTime
	if oh.written.Load() {
		flags |= floppyfs.CleanupSetArchiveBit | floppyfs.CleanupSetLastWriteTime |
			floppyfs.CleanupSetChangeTime | floppyfs.CleanupSetAllocationSize
	}
	if err := h.fs.Cleanup(h.ctx, oh.fc, flags); err != nil {
		logging.Warn("cleanup failed", logging.String("path", path), logging.Err(err))
		return errno(err)
	}
	return 0
}

func (h *Host) Unlink(path string) int {
	return h.remove(path, false)
}

func (h *Host) Rmdir(path string) int {
	return h.remove(path, true)
}

func (h *Host) remove(path string, wantDir bool) int {
	if err := h.fs.CanDelete(h.ctx, path); err != nil {
		return errno(err)
	}
	fc, _, err := h.fs.Lookup(h.ctx, path)
	if err != nil {
		return errno(err)
	}
	switch {
	case wantDir && !fc.IsDir():
		return -fuse.ENOTDIR
	case !wantDir && fc.IsDir():
		return -fuse.EISDIR
	}
	return errno(h.fs.Cleanup(h.ctx, fc, floppyfs.CleanupDelete))
}

func (h *Host) Rename(oldpath string, newpath string) int {
	fc, _, err := h.fs.Lookup(h.ctx, oldpath)
	if err != nil {
		return errno(err)
	}
	return errno(h.fs.Rename(h.ctx, fc, newpath, true))
}

func (h *Host) Utimens(path string, tmsp []fuse.Timespec) int {
	fc, _, err := h.fs.Lookup(h.ctx, path)
	if err != nil {
		return errno(err)
	}
	var atime, mtime time.Time
	if len(tmsp) >= 2 {
		atime = time.Unix(tmsp[0].Sec, tmsp[0].Nsec)
		mtime = time.Unix(tmsp[1].Sec, tmsp[1].Nsec)
	}
	_, err = h.fs.SetBasicInfo(h.ctx, fc, directory.InvalidAttributes, time.Time{}, atime, mtime, time.Time{})
	return errno(err)
}

// Chmod maps the owner write bit onto the FAT read-only attribute.
func (h *Host) Chmod(path string, mode uint32) int {
	fc, info, err := h.fs.Lookup(h.ctx, path)
	if err != nil {
		return errno(err)
	}
	attrs := info.Attributes &^ directory.AttrReadOnly
	attrs |= attributesFromMode(mode)
	_, err = h.fs.SetBasicInfo(h.ctx, fc, attrs, time.Time{}, time.Time{}, time.Time{}, time.Time{})
	return errno(err)
}

func (h *Host) Chown(path string, uid uint32, gid uint32) int {
	return 0
}
