package rpcclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics used in monitoring service.
var (
	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of RPC requests made by the client",
			Name:      "requests_total",
			Subsystem: "rpcclient",
			Namespace: "abicall",
		},
		[]string{"method", "status"},
	)
	rpcTimes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Help:      "RPC request round trip time",
			Name:      "request_duration_seconds",
			Subsystem: "rpcclient",
			Namespace: "abicall",
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		rpcRequests,
		rpcTimes,
	)
}

func addReqTimeMetric(method string, t time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	rpcRequests.WithLabelValues(method, status).Inc()
	rpcTimes.WithLabelValues(method).Observe(t.Seconds())
}
