// Package metrics counts link traffic in a Prometheus registry and serves it
// over HTTP.
package metrics

import (
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seagrayinc/serialproto/pkg/frame"
	"github.com/seagrayinc/serialproto/pkg/resync"
)

const namespace = "serialproto"

// Recorder implements link.Observer.
type Recorder struct {
	registry     *prometheus.Registry
	payloads     prometheus.Counter
	payloadBytes prometheus.Counter
	errors       *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		payloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "payloads_total",
			Help:      "Validated payloads extracted from the stream.",
		}),
		payloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "payload_bytes_total",
			Help:      "Payload bytes extracted from the stream.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "errors_total",
			Help:      "Stream errors by reason.",
		}, []string{"reason"}),
	}
	r.registry.MustRegister(r.payloads, r.payloadBytes, r.errors)
	return r
}

func (r *Recorder) Observe(payload []byte, err error) {
	if err != nil {
		r.errors.WithLabelValues(Reason(err)).Inc()
		return
	}
	r.payloads.Inc()
	r.payloadBytes.Add(float64(len(payload)))
}

// StatsSource reports resynchronizer counters. *link.Link satisfies it.
type StatsSource interface {
	Stats() resync.Stats
}

// Track exports the resynchronizer counters of src. Call it once per
// recorder.
func (r *Recorder) Track(src StatsSource) {
	for _, c := range []struct {
		name, help string
		value      func(resync.Stats) uint64
	}{
		{"dropped_bytes_total", "Bytes discarded while seeking frame heads or on overflow.", func(s resync.Stats) uint64 { return s.DroppedBytes }},
		{"overflows_total", "Receive buffer overflows.", func(s resync.Stats) uint64 { return s.Overflows }},
		{"decode_errors_total", "Candidates that failed validation.", func(s resync.Stats) uint64 { return s.DecodeErrors }},
	} {
		c := c
		r.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resync",
			Name:      c.name,
			Help:      c.help,
		}, func() float64 { return float64(c.value(src.Stats())) }))
	}
}

// Reason maps a stream error to its metric label.
func Reason(err error) string {
	switch {
	case errors.Is(err, frame.ErrTooShort):
		return "too_short"
	case errors.Is(err, frame.ErrBadHead):
		return "bad_head"
	case errors.Is(err, frame.ErrBadTail):
		return "bad_tail"
	case errors.Is(err, frame.ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, frame.ErrChecksumMismatch):
		return "checksum_mismatch"
	case errors.Is(err, resync.ErrBufferOverflow):
		return "buffer_overflow"
	case errors.Is(err, resync.ErrConsumer):
		return "consumer"
	default:
		return "io"
	}
}

// Handler serves /metrics and /healthz.
func (r *Recorder) Handler() http.Handler {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	router.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return router
}
