package memtext

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	operationNameLabel = "operation_name"
	isSuccessfulLabel  = "is_successful"
)

var (
	operationDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "gomemtext_operation_duration_seconds",
		Help: "counts the execution time of successful and failed client operations",
		Buckets: []float64{
			0.0005, 0.001, 0.005, 0.007, 0.015, 0.05, 0.1, 0.2, 0.5, 1,
		},
	}, []string{
		operationNameLabel,
		isSuccessfulLabel,
	})

	deadServers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gomemtext_dead_servers",
		Help: "current number of servers marked dead",
	})
)

// observeOperationDurationSeconds records the duration of one client
// operation (get, set, ...), tagged with whether it succeeded.
func observeOperationDurationSeconds(operationName string, duration float64, isSuccessful bool) {
	flag := "0"
	if isSuccessful {
		flag = "1"
	}
	operationDurationSeconds.WithLabelValues(operationName, flag).Observe(duration)
}

// setDeadServers reports the current count of dead endpoints.
func setDeadServers(n int) {
	deadServers.Set(float64(n))
}
