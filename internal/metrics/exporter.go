// Package metrics exposes Prometheus collectors for the replication
// driver. Metrics are advisory; they are not part of the correctness
// contract.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/julianstephens/cdcsync/internal/logger"
)

func init() {
	prometheus.MustRegister(UnitsApplied, RecordsApplied, SessionRestarts,
		ApplyLatency, OpenSessions)
}

// StartExporter serves /metrics on the given port in the background.
func StartExporter(port int, lg logger.Logger) {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", port)
		lg.Info("prometheus exporter listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			lg.Error("metrics exporter stopped", err, "addr", addr)
		}
	}()
}
