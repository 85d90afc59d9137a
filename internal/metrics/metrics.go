// Package metrics exposes the pipeline and protocol counters named in
// SPEC_FULL.md's ambient stack expansion as Prometheus collectors. The
// teacher itself only ever exposes pprof; this package is grounded on
// xendarboh-katzenpost's direct github.com/prometheus/client_golang
// dependency, the only metrics library anywhere in the retrieved pack.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector this core publishes, built once at
// startup and passed by shared reference into whichever stages/workers
// need to observe it — the same "single owner, shared non-owning
// reference" shape SPEC_FULL.md §9 prescribes for configuration.
type Registry struct {
	CameraFPS          prometheus.Gauge
	StageFramesTotal   *prometheus.CounterVec
	HeartbeatRTT       prometheus.Histogram
	CrcFailuresTotal   *prometheus.CounterVec
	DetectionCount     prometheus.Gauge
	DeviceStatusErrors prometheus.Counter
}

// NewRegistry registers every collector against a fresh prometheus
// registry and returns both.
func NewRegistry() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Registry{
		CameraFPS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "acquisition",
			Subsystem: "camera",
			Name:      "fps",
			Help:      "Camera stage's moving-average frames per second.",
		}),
		StageFramesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acquisition",
			Subsystem: "pipeline",
			Name:      "stage_frames_total",
			Help:      "Frames successfully produced by each pipeline stage.",
		}, []string{"stage"}),
		HeartbeatRTT: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "acquisition",
			Subsystem: "protocol",
			Name:      "heartbeat_rtt_seconds",
			Help:      "Round-trip latency of successful HeartbeatReq/CommonResp exchanges.",
			Buckets:   prometheus.DefBuckets,
		}),
		CrcFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acquisition",
			Subsystem: "protocol",
			Name:      "crc_failures_total",
			Help:      "Frames rejected by the codec, by failure subkind.",
		}, []string{"subkind"}),
		DetectionCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "acquisition",
			Subsystem: "pipeline",
			Name:      "last_detection_count",
			Help:      "Number of detections in the most recent DetectionList.",
		}),
		DeviceStatusErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "acquisition",
			Subsystem: "protocol",
			Name:      "device_status_errors_total",
			Help:      "CommandEmitter calls that elevated to a DeviceStatus error.",
		}),
	}
	return r, reg
}

// Serve starts the /metrics HTTP endpoint on addr. It is expected to run
// in its own goroutine; ListenAndServe's error is returned to the
// caller for logging rather than swallowed.
func Serve(addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
