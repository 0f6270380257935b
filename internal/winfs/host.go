// Package winfs mounts a floppyfs.FileSystem through cgofuse (WinFsp on
// Windows, libfuse elsewhere).
package winfs

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/MGerckens/floppyfs/internal/floppyfs"
	"github.com/MGerckens/floppyfs/internal/logging"
)

// ErrMountFailed is returned when the host refuses the mount.
var ErrMountFailed = errors.New("mount failed")

// Config holds mount settings.
type Config struct {
	MountPoint   string
	VolumePrefix string
}

// Host adapts a floppyfs.FileSystem to fuse.FileSystemInterface.
type Host struct {
	fuse.FileSystemBase

	fs      *floppyfs.FileSystem
	cfg     Config
	ctx     context.Context
	remount chan struct{}

	mu      sync.Mutex
	handles map[uint64]*openHandle
	nextFh  atomic.Uint64
}

type openHandle struct {
	fc      *floppyfs.FileContext
	written atomic.Bool
}

// New creates a Host for fs. Nothing is mounted until Serve.
func New(fs *floppyfs.FileSystem, cfg Config) *Host {
	return &Host{
		fs:      fs,
		cfg:     cfg,
		ctx:     context.Background(),
		remount: make(chan struct{}, 1),
		handles: make(map[uint64]*openHandle),
	}
}

// MountOptions builds the host options for one mount.
func MountOptions(cfg Config, readOnly bool) []string {
	var opts []string
	if readOnly {
		opts = append(opts, "-o", "ro")
	}
	if runtime.GOOS == "windows" {
		opts = append(opts, "-o", "uid=-1,gid=-1", "-o", "FileSystemName=FloppyFS")
		if cfg.VolumePrefix != "" {
			opts = append(opts, "--VolumePrefix="+cfg.VolumePrefix)
		}
	}
	return opts
}

// Serve mounts the filesystem and blocks until ctx is done or the host
// unmounts it. A read-only toggle unmounts and mounts again in the new mode.
func (h *Host) Serve(ctx context.Context) error {
	for {
		host := fuse.NewFileSystemHost(h)
		host.SetCapCaseInsensitive(true)
		host.SetCapReaddirPlus(true)

		opts := MountOptions(h.cfg, h.fs.ReadOnly())
		logging.Info("mounting",
			logging.String("mountpoint", h.cfg.MountPoint),
			logging.Bool("read_only", h.fs.ReadOnly()))

		errCh := make(chan error, 1)
		go func() {
			if host.Mount(h.cfg.MountPoint, opts) {
				errCh <- nil
			} else {
				errCh <- ErrMountFailed
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			host.Unmount()
			<-errCh
			return nil
		case <-h.remount:
			host.Unmount()
			if err := <-errCh; err != nil {
				return err
			}
		}
	}
}

// SetReadOnly switches read-only mode and remounts when it changed.
func (h *Host) SetReadOnly(ro bool) {
	if h.fs.ReadOnly() == ro {
		return
	}
	h.fs.SetReadOnly(ro)
	select {
	case h.remount <- struct{}{}:
	default:
	}
}

func (h *Host) allocFh(oh *openHandle) uint64 {
	fh := h.nextFh.Add(1)
	h.mu.Lock()
	h.handles[fh] = oh
	h.mu.Unlock()
	return fh
}

func (h *Host) getFh(fh uint64) *openHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handles[fh]
}

func (h *Host) freeFh(fh uint64) *openHandle {
	h.mu.Lock()
	oh := h.handles[fh]
	delete(h.handles, fh)
	h.mu.Unlock()
	return oh
}

// fileContext returns the open handle's context, or resolves path when the host
// passed no handle.
func (h *Host) fileContext(path string, fh uint64) (*floppyfs.FileContext, error) {
	if oh := h.getFh(fh); oh != nil {
		return oh.fc, nil
	}
	fc, _, err := h.fs.Lookup(h.ctx, path)
	return fc, err
}

func (h *Host) Init() {
	logging.Info("filesystem initialized", logging.Int("pid", os.Getpid()))
}

func (h *Host) Destroy() {
	h.mu.Lock()
	n := len(h.handles)
	h.mu.Unlock()
	logging.Info("filesystem destroyed", logging.Int("open_handles", n))
}
