package middlewares

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clusterconf",
		Subsystem: "node_http",
		Name:      "requests_total",
		Help:      "Requests atendidas por la API del nodo",
	}, []string{"method", "path", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clusterconf",
		Subsystem: "node_http",
		Name:      "request_duration_seconds",
		Help:      "Latencia de la API del nodo; prepare incluye validar la topología",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"method", "path"})

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "clusterconf",
		Subsystem: "node_http",
		Name:      "inflight_requests",
		Help:      "Requests en curso",
	})
)

// RegisterMetrics registra las métricas HTTP, ignorando duplicados.
func RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{httpRequestsTotal, httpRequestDuration, httpInflight} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// WithMetrics instrumenta requests (contador, latencia, inflight). La ruta
// se etiqueta con el patrón de chi para no explotar la cardinalidad.
func WithMetrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method := strings.ToUpper(r.Method)
			httpInflight.Inc()
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				httpInflight.Dec()
				path := r.URL.Path
				if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
					path = rc.RoutePattern()
				}
				httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
				httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
