package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del protocolo de cambios. Viven en un paquete aparte para evitar
// ciclos entre protocol y http.

var (
	ChangePhaseTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "config_change_phase_total",
		Help: "Fases del protocolo de cambios procesadas por el nodo, por resultado",
	}, []string{"phase", "result"})

	ChangePrepareLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "config_change_prepare_latency_ms",
		Help:    "Latencia de prepare (aplicar + validar) en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	TopologyMutationCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "config_topology_mutation_count",
		Help: "Cantidad de cambios confirmados en el store del nodo",
	})
)

// Resultados posibles de una fase.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)

// Register registra las métricas en el registry dado (o el default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{ChangePhaseTotal, ChangePrepareLatency, TopologyMutationCount} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// Phase cuenta una fase con su resultado.
func Phase(phase string, accepted bool) {
	result := ResultRejected
	if accepted {
		result = ResultAccepted
	}
	ChangePhaseTotal.WithLabelValues(phase, result).Inc()
}
