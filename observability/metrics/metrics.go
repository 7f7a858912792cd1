package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics records conversion and merge activity for Prometheus.
type VaultMetrics struct {
	deposits   prometheus.Counter
	redeems    prometheus.Counter
	merges     *prometheus.CounterVec
	rejections *prometheus.CounterVec
	issued     prometheus.Gauge
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the lazily-initialised vault metrics registry.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			deposits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "checksvault",
				Subsystem: "vault",
				Name:      "deposits_total",
				Help:      "Total items taken into custody via deposit.",
			}),
			redeems: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "checksvault",
				Subsystem: "vault",
				Name:      "redeems_total",
				Help:      "Total items released from custody via redemption.",
			}),
			merges: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "checksvault",
				Subsystem: "vault",
				Name:      "merges_total",
				Help:      "Total successful merges segmented by kind (pair, aggregate).",
			}, []string{"kind"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "checksvault",
				Subsystem: "vault",
				Name:      "rejections_total",
				Help:      "Total rejected operations segmented by reason.",
			}, []string{"reason"}),
			issued: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "checksvault",
				Subsystem: "vault",
				Name:      "total_issued",
				Help:      "Current fungible supply in base units.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.deposits,
			vaultRegistry.redeems,
			vaultRegistry.merges,
			vaultRegistry.rejections,
			vaultRegistry.issued,
		)
	})
	return vaultRegistry
}

// RecordDeposits counts items accepted in a deposit batch.
func (m *VaultMetrics) RecordDeposits(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.deposits.Add(float64(count))
}

// RecordRedeem counts a completed redemption.
func (m *VaultMetrics) RecordRedeem() {
	if m == nil {
		return
	}
	m.redeems.Inc()
}

// RecordMerge counts a completed merge of the given kind.
func (m *VaultMetrics) RecordMerge(kind string) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(kind).Inc()
}

// RecordRejection counts a rejected operation by reason.
func (m *VaultMetrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// SetIssued publishes the current supply. Precision loss past float64 range
// is acceptable for a gauge.
func (m *VaultMetrics) SetIssued(total *big.Int) {
	if m == nil || total == nil {
		return
	}
	value, _ := new(big.Float).SetInt(total).Float64()
	m.issued.Set(value)
}
