// Package metrics provides Prometheus metrics for the floppyfs daemon.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Device exchange metrics
	deviceCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floppyfs_device_commands_total",
			Help: "Total number of command/response exchanges with the device",
		},
		[]string{"command", "result"},
	)

	deviceCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floppyfs_device_command_duration_seconds",
			Help:    "Duration of a device command/response exchange in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"command"},
	)

	deviceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floppyfs_device_errors_total",
			Help: "Device-reported errors by result code",
		},
		[]string{"code"},
	)

	deviceBytesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floppyfs_device_content_bytes_read_total",
			Help: "File content bytes fetched from the device",
		},
	)

	deviceBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floppyfs_device_content_bytes_written_total",
			Help: "File content bytes written back to the device",
		},
	)

	// Filesystem verb metrics
	verbsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floppyfs_verbs_total",
			Help: "Filesystem verbs served, by operation and result",
		},
		[]string{"op", "result"},
	)

	verbQueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "floppyfs_verb_queue_wait_seconds",
			Help:    "Time a verb waited for the device worker",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Metadata metrics
	directoryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floppyfs_directory_entries",
			Help: "Number of files/folders in the metadata directory",
		},
	)

	readOnlyMode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floppyfs_read_only",
			Help: "1 when the filesystem is in read-only mode",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDeviceCommand records one command/response exchange.
func RecordDeviceCommand(command, result string, duration time.Duration) {
	deviceCommandsTotal.WithLabelValues(command, result).Inc()
	deviceCommandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordDeviceError records a device-reported error code.
func RecordDeviceError(code string) {
	deviceErrorsTotal.WithLabelValues(code).Inc()
}

// RecordContentRead records content bytes fetched from the device.
func RecordContentRead(bytes int64) {
	deviceBytesRead.Add(float64(bytes))
}

// RecordContentWritten records content bytes written to the device.
func RecordContentWritten(bytes int64) {
	deviceBytesWritten.Add(float64(bytes))
}

// RecordVerb records a served filesystem verb.
func RecordVerb(op string, success bool) {
	result := "ok"
	if !success {
		result = "error"
	}
	verbsTotal.WithLabelValues(op, result).Inc()
}

// RecordQueueWait records how long a verb waited before the worker picked it up.
func RecordQueueWait(d time.Duration) {
	verbQueueWait.Observe(d.Seconds())
}

// SetDirectoryEntries sets the current metadata directory size.
func SetDirectoryEntries(n int) {
	directoryEntries.Set(float64(n))
}

// SetReadOnly exports the read-only toggle.
func SetReadOnly(ro bool) {
	if ro {
		readOnlyMode.Set(1)
		return
	}
	readOnlyMode.Set(0)
}
