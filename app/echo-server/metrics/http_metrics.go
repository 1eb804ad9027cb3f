package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latency of HTTP endpoints",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	StreamSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reco_stream_sessions",
		Help: "Open recommendation stream sessions",
	})
)

func Init() {
	prometheus.MustRegister(RequestDuration, StreamSessions)
}
