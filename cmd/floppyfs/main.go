// floppyfs mounts a floppy disk attached to an ArduinoFDC board as a local
// drive.
//
// The board runs the ArduDOS shell on its serial port; every filesystem
// call is translated into shell commands. Metadata is read once at startup
// and kept in memory.
//
// Usage:
//
//	floppyfs -port COM9 -mountpoint F:
//	floppyfs -config floppyfs.yaml -ro
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MGerckens/floppyfs/internal/config"
	"github.com/MGerckens/floppyfs/internal/device"
	"github.com/MGerckens/floppyfs/internal/floppyfs"
	"github.com/MGerckens/floppyfs/internal/logging"
	"github.com/MGerckens/floppyfs/internal/metrics"
	"github.com/MGerckens/floppyfs/internal/winfs"
)

func main() {
	configPath := flag.String("config", "", "Config file (.yaml, .yml or .json)")
	port := flag.String("port", "", "Serial port of the board")
	baud := flag.Int("baud", 0, "Serial baud rate")
	mountpoint := flag.String("mountpoint", "", "Drive letter or directory to mount on")
	prefix := flag.String("prefix", "", "UNC volume prefix, e.g. \\floppy\\a")
	readOnly := flag.Bool("ro", false, "Start in read-only mode")
	writeBack := flag.Bool("write-back", false, "Send modified files back to the disk on close")
	metricsAddr := flag.String("metrics", "", "Prometheus listen address (empty to disable)")
	verbose := flag.Bool("v", false, "Verbose (debug) logging")
	flag.Parse()

	if *configPath == "" {
		*configPath = os.Getenv(config.EnvPrefix + "CONFIG")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags override file and environment, but only when given.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "baud":
			cfg.Baud = *baud
		case "mountpoint":
			cfg.MountPoint = *mountpoint
		case "prefix":
			cfg.VolumePrefix = *prefix
		case "ro":
			cfg.ReadOnly = *readOnly
		case "write-back":
			cfg.WriteBack = *writeBack
		case "metrics":
			cfg.MetricsAddr = *metricsAddr
		case "v":
			if *verbose {
				cfg.LogLevel = "debug"
			}
		}
	})
	if flag.NArg() > 0 && cfg.MountPoint == "" {
		cfg.MountPoint = flag.Arg(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	if err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		OutputPath: cfg.LogOutput,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logging init error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := run(cfg); err != nil {
		logging.Error("floppyfs stopped", zap.Error(err))
		logging.Sync()
		os.Exit(1)
	}
	logging.Info("stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serialCfg := device.DefaultSerialConfig(cfg.Port)
	serialCfg.BaudRate = cfg.Baud
	serialCfg.ReadTimeout = cfg.ReadTimeout

	transport, err := device.OpenSerial(serialCfg)
	if err != nil {
		return err
	}
	defer transport.Close()
	logging.Info("serial port open",
		zap.String("port", transport.Name()),
		zap.Int("baud", serialCfg.BaudRate))

	fs := floppyfs.New(device.NewChannel(transport), floppyfs.Options{
		ReadOnly:  cfg.ReadOnly,
		WriteBack: cfg.WriteBack,
	})
	defer fs.Close()

	if err := fs.Probe(ctx, cfg.ProbeTimeout); err != nil {
		return fmt.Errorf("device did not answer: %w", err)
	}
	if err := fs.Sync(ctx); err != nil {
		return fmt.Errorf("read directory tree: %w", err)
	}

	host := winfs.New(fs, winfs.Config{
		MountPoint:   cfg.MountPoint,
		VolumePrefix: cfg.VolumePrefix,
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := host.Serve(ctx)
		// An unmount from outside ends the process too.
		stop()
		return err
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// The console blocks on stdin, so it stays outside the group.
	go func() {
		if runConsole(ctx, os.Stdin, os.Stdout, host) {
			stop()
		}
	}()

	return g.Wait()
}
