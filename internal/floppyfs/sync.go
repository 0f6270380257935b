package floppyfs

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/MGerckens/floppyfs/internal/device"
	"github.com/MGerckens/floppyfs/internal/directory"
	"github.com/MGerckens/floppyfs/internal/logging"
	"github.com/MGerckens/floppyfs/internal/metrics"
)

// Probe waits for the device to answer a root listing. The board resets
// when the port opens and ignores input until its shell is up, so transport
// failures are retried with exponential backoff until maxElapsed; a zero
// maxElapsed makes a single attempt. A device error is an answer and ends the
// probe immediately.
func (fs *FileSystem) Probe(ctx context.Context, maxElapsed time.Duration) error {
	return fs.run(ctx, "probe", directory.Root, func() error {
		var b backoff.BackOff = &backoff.StopBackOff{}
		if maxElapsed > 0 {
			eb := backoff.NewExponentialBackOff()
			eb.InitialInterval = 500 * time.Millisecond
			eb.MaxElapsedTime = maxElapsed
			b = eb
		}

		operation := func() error {
			_, err := fs.send(device.DirCommand(directory.Root))
			if err == nil {
				return nil
			}
			if _, ok := device.AsDeviceError(err); ok {
				return backoff.Permanent(MapDeviceError(err))
			}
			return err
		}

		err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx),
			func(err error, d time.Duration) {
				logging.Info("device not ready, retrying",
					logging.Err(err),
					logging.Duration("wait", d))
			})
		if err != nil && !errors.Is(err, ErrIO) {
			return MapDeviceError(err)
		}
		return err
	})
}

// Sync rebuilds the directory from the device, walking folders breadth-first
// with "dir". On failure the directory keeps only what was listed so far.
func (fs *FileSystem) Sync(ctx context.Context) error {
	return fs.run(ctx, "sync", directory.Root, func() error {
		start := time.Now()
		fs.dir.Reset()
		defer func() { metrics.SetDirectoryEntries(fs.dir.Len()) }()

		now := fs.now()
		queue := []string{directory.Root}
		for len(queue) > 0 {
			folder := queue[0]
			queue = queue[1:]

			lines, err := fs.send(device.DirCommand(folder))
			if err != nil {
				return MapDeviceError(err, device.CodeNoPath, device.CodeNoFile)
			}
			for _, row := range device.ParseListing(lines) {
				if row.Name == "." || row.Name == ".." {
					continue
				}
				p := directory.ChildPath(folder, row.Name)
				var e *directory.Entry
				if row.IsDir {
					e = directory.NewFolder(p, 0, now)
					queue = append(queue, p)
				} else {
					e = directory.NewListedFile(p, row.Size, now)
				}
				if err := fs.dir.Insert(p, e); err != nil {
					return err
				}
			}
		}

		logging.Info("directory synced",
			logging.Int("entries", fs.dir.Len()),
			logging.Duration("took", time.Since(start)))
		return nil
	})
}
