package web

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mvpetrera/portfolio/internal/subscribers"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	live     prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portfolio",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "portfolio",
			Name:      "live_reply_streams",
			Help:      "Open websocket reply streams.",
		}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.live, subscribers.FallbackTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
