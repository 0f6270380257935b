package winfs

import (
	"github.com/winfsp/cgofuse/fuse"

	"github.com/MGerckens/floppyfs/internal/floppyfs"
)

var errnos = map[error]int{
	floppyfs.ErrNotFound:          fuse.ENOENT,
	floppyfs.ErrAlreadyExists:     fuse.EEXIST,
	floppyfs.ErrAccessDenied:      fuse.EACCES,
	floppyfs.ErrReadOnly:          fuse.EROFS,
	floppyfs.ErrDirectoryNotEmpty: fuse.ENOTEMPTY,
	floppyfs.ErrNotADirectory:     fuse.ENOTDIR,
	floppyfs.ErrInvalidArgument:   fuse.EINVAL,
	floppyfs.ErrUnimplemented:     fuse.ENOSYS,
}

// errno returns the negated errno for err, or 0 for nil.
func errno(err error) int {
	if err == nil {
		return 0
	}
	if e, ok := errnos[floppyfs.Kind(err)]; ok {
		return -e
	}
	return -fuse.EIO
}
