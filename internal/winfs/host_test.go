package winfs

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/winfsp/cgofuse/fuse"

	"github.com/MGerckens/floppyfs/internal/device"
	"github.com/MGerckens/floppyfs/internal/floppyfs"
)

// replayDevice answers commands from a fixed table; unknown commands
// succeed with an empty payload.
type replayDevice struct {
	mu        sync.Mutex
	responses map[string][]string
	errs      map[string]error
	sent      []string
}

func (d *replayDevice) Send(command string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, command)
	if err, ok := d.errs[command]; ok {
		return nil, err
	}
	return d.responses[command], nil
}

func newTestHost(t *testing.T) (*Host, *replayDevice) {
	t.Helper()
	dev := &replayDevice{
		responses: map[string][]string{
			"dir":              {"README   TXT  5", "GAMES         <DIR>", "1457664 bytes free."},
			`dir \GAMES`:       {"No files.", "1457664 bytes free."},
			`type \README.TXT`: {"hello"},
			"fulldir":          {"README   TXT  5", "2048 bytes used, 1024 bytes free"},
		},
		errs: map[string]error{
			`mkdir \GHOST`: &device.DeviceError{Code: device.CodeExist, Message: "exists"},
		},
	}
	fs := floppyfs.New(dev, floppyfs.Options{})
	t.Cleanup(fs.Close)
	require.NoError(t, fs.Sync(context.Background()))
	return New(fs, Config{MountPoint: "F:"}), dev
}

func TestErrno(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{floppyfs.ErrNotFound, -fuse.ENOENT},
		{floppyfs.ErrAlreadyExists, -fuse.EEXIST},
		{floppyfs.ErrAccessDenied, -fuse.EACCES},
		{floppyfs.ErrReadOnly, -fuse.EROFS},
		{floppyfs.ErrDirectoryNotEmpty, -fuse.ENOTEMPTY},
		{floppyfs.ErrNotADirectory, -fuse.ENOTDIR},
		{floppyfs.ErrInvalidArgument, -fuse.EINVAL},
		{floppyfs.ErrUnimplemented, -fuse.ENOSYS},
		{floppyfs.ErrIO, -fuse.EIO},
		{fmt.Errorf("wrapped: %w", floppyfs.ErrNotFound), -fuse.ENOENT},
		{&floppyfs.OpError{Op: "create", Path: "/A", Err: floppyfs.ErrReadOnly}, -fuse.EROFS},
		{context.Canceled, -fuse.EIO},
	}
	for _, tt := range tests {
		if got := errno(tt.err); got != tt.want {
			t.Errorf("errno(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMountOptions(t *testing.T) {
	opts := MountOptions(Config{VolumePrefix: `\floppy\a`}, true)
	assert.Equal(t, []string{"-o", "ro"}, opts[:2])

	opts = MountOptions(Config{}, false)
	assert.NotContains(t, opts, "ro")
	if runtime.GOOS == "windows" {
		assert.Contains(t, MountOptions(Config{VolumePrefix: `\floppy\a`}, false), `--VolumePrefix=\floppy\a`)
	}
}

func TestGetattr(t *testing.T) {
	h, _ := newTestHost(t)

	var st fuse.Stat_t
	require.Equal(t, 0, h.Getattr("/readme.txt", &st, noHandle))
	assert.EqualValues(t, 5, st.Size)
	assert.Equal(t, uint32(fuse.S_IFREG|0644), st.Mode)

	require.Equal(t, 0, h.Getattr("/GAMES", &st, noHandle))
	assert.Equal(t, uint32(fuse.S_IFDIR|0755), st.Mode)

	assert.Equal(t, -fuse.ENOENT, h.Getattr("/NOPE", &st, noHandle))
}

func TestOpenReadRelease(t *testing.T) {
	h, _ := newTestHost(t)

	rc, fh := h.Open("/README.TXT", fuse.O_RDONLY)
	require.Equal(t, 0, rc)

	buf := make([]byte, 16)
	n := h.Read("/README.TXT", buf, 0, fh)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.Equal(t, 0, h.Read("/README.TXT", buf, 5, fh))

	assert.Equal(t, 0, h.Release("/README.TXT", fh))
	assert.Equal(t, -fuse.EBADF, h.Read("/README.TXT", buf, 0, fh))

	rc, _ = h.Open("/GAMES", fuse.O_RDONLY)
	assert.Equal(t, -fuse.EISDIR, rc)
}

func TestReaddir(t *testing.T) {
	h, _ := newTestHost(t)

	rc, fh := h.Opendir("/")
	require.Equal(t, 0, rc)
	var names []string
	fill := func(name string, stat *fuse.Stat_t, ofst int64) bool {
		names = append(names, name)
		return true
	}
	require.Equal(t, 0, h.Readdir("/", fill, 0, fh))
	assert.Equal(t, []string{"GAMES", "README.TXT"}, names)
	assert.Equal(t, 0, h.Releasedir("/", fh))

	rc, _ = h.Opendir("/README.TXT")
	assert.Equal(t, -fuse.ENOTDIR, rc)
}

func TestMkdirAndCreate(t *testing.T) {
	h, dev := newTestHost(t)

	assert.Equal(t, 0, h.Mkdir("/SAVES", 0755))
	assert.Equal(t, -fuse.EEXIST, h.Mkdir("/GAMES", 0755))
	assert.Equal(t, -fuse.EEXIST, h.Mkdir("/GHOST", 0755))

	rc, fh := h.Create("/GAMES/NEW.TXT", fuse.O_CREAT|fuse.O_RDWR, 0644)
	require.Equal(t, 0, rc)
	assert.Equal(t, 3, h.Write("/GAMES/NEW.TXT", []byte("abc"), 0, fh))
	assert.Equal(t, 0, h.Release("/GAMES/NEW.TXT", fh))

	assert.Contains(t, dev.sent, `mkdir \SAVES`)
	assert.Contains(t, dev.sent, "write \\GAMES\\NEW.TXT\n\n")
}

func TestUnlinkAndRmdir(t *testing.T) {
	h, dev := newTestHost(t)

	assert.Equal(t, -fuse.EISDIR, h.Unlink("/GAMES"))
	assert.Equal(t, -fuse.ENOTDIR, h.Rmdir("/README.TXT"))
	assert.Equal(t, 0, h.Unlink("/README.TXT"))
	assert.Equal(t, 0, h.Rmdir("/GAMES"))
	assert.Equal(t, -fuse.ENOENT, h.Unlink("/README.TXT"))

	assert.Contains(t, dev.sent, `del \README.TXT`)
	assert.Contains(t, dev.sent, `rmdir \GAMES`)
}

func TestReadOnlyMount(t *testing.T) {
	h, _ := newTestHost(t)
	h.SetReadOnly(true)

	var st fuse.Stat_t
	require.Equal(t, 0, h.Getattr("/README.TXT", &st, noHandle))
	assert.Equal(t, uint32(fuse.S_IFREG|0444), st.Mode)

	assert.Equal(t, -fuse.EROFS, h.Mkdir("/X", 0755))
	assert.Equal(t, -fuse.EROFS, h.Truncate("/README.TXT", 0, noHandle))
	assert.Len(t, h.remount, 1)

	// Toggling to the current mode does not queue another remount.
	h.SetReadOnly(true)
	assert.Len(t, h.remount, 1)
}

func TestStatfs(t *testing.T) {
	h, _ := newTestHost(t)

	var st fuse.Statfs_t
	require.Equal(t, 0, h.Statfs("/", &st))
	assert.EqualValues(t, 6, st.Blocks)
	assert.EqualValues(t, 2, st.Bfree)
}

func TestRenameUnsupported(t *testing.T) {
	h, _ := newTestHost(t)
	assert.Equal(t, -fuse.ENOSYS, h.Rename("/README.TXT", "/READ.TXT"))
}
