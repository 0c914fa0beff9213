package vault

import "github.com/prometheus/client_golang/prometheus"

// Metrics carries the ledger's instrumentation. Registration happens against
// the injected Registerer; the package never touches the global registry.
type Metrics struct {
	operations   *prometheus.CounterVec
	liquidations prometheus.Counter
	openVaults   prometheus.Gauge
	feeIndex     prometheus.Gauge
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vault",
			Name:      "operations_total",
			Help:      "Ledger operations by kind and result.",
		}, []string{"op", "result"}),
		liquidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vault",
			Name:      "liquidations_total",
			Help:      "Completed liquidation settlements.",
		}),
		openVaults: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vault",
			Name:      "open_vaults",
			Help:      "Vaults currently open.",
		}),
		feeIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vault",
			Name:      "fee_index_wad",
			Help:      "Global fee index, wad scale (lossy float projection).",
		}),
	}
	registry.MustRegister(m.operations, m.liquidations, m.openVaults, m.feeIndex)
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
}
