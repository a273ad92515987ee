package http

import (
	"net/http"

	apierrors "qtodash/internal/errors"
)

// MetricsHandler serves the Prometheus scrape endpoint
type MetricsHandler struct {
	prometheus   http.Handler
	errorHandler *apierrors.ErrorHandler
}

// NewMetricsHandler wraps the exporter's handler. prometheus is nil when the
// metric exporter is disabled.
func NewMetricsHandler(prometheus http.Handler, errorHandler *apierrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{prometheus: prometheus, errorHandler: errorHandler}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrMetricsDisabled.WithDetails(
			map[string]string{"setting": "QTODASH_TELEMETRY_METRIC_EXPORTER"}))
		return
	}
	h.prometheus.ServeHTTP(w, r)
}
