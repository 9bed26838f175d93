package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// FarmingMetrics exposes the operational signals for the trade-farming
// ledger: recorded activity, finalization progress, and pool movements.
type FarmingMetrics struct {
	tradesRecorded  prometheus.Counter
	tradesSkipped   *prometheus.CounterVec
	daysFinalized   prometheus.Counter
	finalizationLag prometheus.Gauge
	poolBalance     prometheus.Gauge
	emittedReward   *prometheus.GaugeVec
	claimsPaid      prometheus.Counter
}

var (
	farmingOnce     sync.Once
	farmingRegistry *FarmingMetrics
)

// Farming returns the lazily-initialised farming metrics registry.
func Farming() *FarmingMetrics {
	farmingOnce.Do(func() {
		farmingRegistry = &FarmingMetrics{
			tradesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "farming_trades_recorded_total",
				Help: "Count of trades whose volume was recorded against the open day.",
			}),
			tradesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "farming_trades_skipped_total",
				Help: "Count of trades dropped without recording, by reason.",
			}, []string{"reason"}),
			daysFinalized: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "farming_days_finalized_total",
				Help: "Count of day finalizations performed by the catch-up loop.",
			}),
			finalizationLag: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "farming_finalization_lag_days",
				Help: "Days elapsed beyond the last finalized day at the most recent operation.",
			}),
			poolBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "farming_pool_balance",
				Help: "Undistributed reward pool balance.",
			}),
			emittedReward: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "farming_daily_reward",
				Help: "Frozen reward emission per finalized day.",
			}, []string{"day"}),
			claimsPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "farming_claims_paid_total",
				Help: "Count of claims that resulted in a payout.",
			}),
		}
		prometheus.MustRegister(
			farmingRegistry.tradesRecorded,
			farmingRegistry.tradesSkipped,
			farmingRegistry.daysFinalized,
			farmingRegistry.finalizationLag,
			farmingRegistry.poolBalance,
			farmingRegistry.emittedReward,
			farmingRegistry.claimsPaid,
		)
	})
	return farmingRegistry
}

func (m *FarmingMetrics) ObserveTradeRecorded() {
	if m == nil {
		return
	}
	m.tradesRecorded.Inc()
}

func (m *FarmingMetrics) ObserveTradeSkipped(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.tradesSkipped.WithLabelValues(reason).Inc()
}

func (m *FarmingMetrics) ObserveDayFinalized(day int64, reward float64) {
	if m == nil {
		return
	}
	m.daysFinalized.Inc()
	m.emittedReward.WithLabelValues(strconv.FormatInt(day, 10)).Set(reward)
}

func (m *FarmingMetrics) SetFinalizationLag(days float64) {
	if m == nil {
		return
	}
	m.finalizationLag.Set(days)
}

func (m *FarmingMetrics) SetPoolBalance(balance float64) {
	if m == nil {
		return
	}
	m.poolBalance.Set(balance)
}

func (m *FarmingMetrics) ObserveClaimPaid() {
	if m == nil {
		return
	}
	m.claimsPaid.Inc()
}
