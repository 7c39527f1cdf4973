package inventory

import "github.com/prometheus/client_golang/prometheus"

type StoreMetrics struct {
	Persists     *prometheus.CounterVec
	LoadFailures prometheus.Counter
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		Persists: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_store_persist_total",
				Help: "Full-collection writes by result",
			},
			[]string{"result"},
		),
		LoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_store_load_failures_total",
			Help: "Collection reads that failed and fell back to an empty collection",
		}),
	}

	reg.MustRegister(m.Persists, m.LoadFailures)
	return m
}

func (m *StoreMetrics) persisted(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Persists.WithLabelValues(result).Inc()
}

func (m *StoreMetrics) loadFailed() {
	if m == nil {
		return
	}
	m.LoadFailures.Inc()
}
