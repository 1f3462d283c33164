package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter serves the worker's operational endpoints. Jobs may be nil, in
// which case no job routes are registered.
func NewRouter(health *HealthHandler, jobs *JobHandler, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.Liveness)
	mux.HandleFunc("GET /ready", health.Readiness)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if jobs != nil {
		mux.HandleFunc("POST /jobs/arrears-aging/run", jobs.RunAging)
	}
	return mux
}
