package trading

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================

// ============ Счётчики сделок ============

// PairTradesTotal - попытки открытия/закрытия пар по исходам
var PairTradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "pair_trades_total",
		Help:      "Total number of pair trade attempts",
	},
	[]string{"operation", "result"}, // operation: open, close; result: success, rejected, failure, rollback
)

// AdmissionRejections - отказы допусковых проверок
var AdmissionRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "admission_rejections_total",
		Help:      "Trades rejected before any side effect",
	},
	[]string{"gate"}, // position_size, min_lot
)

// RealizedPnlTotal - накопленный реализованный PnL в USDT
var RealizedPnlTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "realized_pnl_total_usdt",
		Help:      "Cumulative realized PnL in USDT",
	},
)

// ============ Метрики состояния ============

// OpenPairs - текущее количество открытых пар
var OpenPairs = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "open_pairs",
		Help:      "Current number of tracked open pairs",
	},
)

// ActiveProvider - активный провайдер (1 для текущего типа)
var ActiveProvider = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "active_provider",
		Help:      "Active trading provider (1 for the current type)",
	},
	[]string{"type"},
)

// ============ Латентность ============

// LegExecutionLatency - длительность операции провайдера по ноге
var LegExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "leg_execution_latency_ms",
		Help:      "Duration of a single leg open/close in milliseconds",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	},
	[]string{"operation", "provider"},
)

// ============ Вспомогательные функции ============

// RecordPairTrade записывает исход операции над парой
func RecordPairTrade(operation, result string) {
	PairTradesTotal.WithLabelValues(operation, result).Inc()
}

// RecordAdmissionRejection записывает отказ допусковой проверки
func RecordAdmissionRejection(gate string) {
	AdmissionRejections.WithLabelValues(gate).Inc()
}

// RecordRealizedPnl добавляет реализованный PnL (только прирост счетчика,
// отрицательный PnL не записывается)
func RecordRealizedPnl(pnl float64) {
	if pnl > 0 {
		RealizedPnlTotal.Add(pnl)
	}
}

// ObserveLegExecution записывает длительность операции по ноге
func ObserveLegExecution(operation, provider string, d time.Duration) {
	LegExecutionLatency.WithLabelValues(operation, provider).Observe(float64(d.Milliseconds()))
}

// UpdateOpenPairs обновляет количество открытых пар
func UpdateOpenPairs(count int) {
	OpenPairs.Set(float64(count))
}

// UpdateActiveProvider помечает активный тип провайдера
func UpdateActiveProvider(active ProviderType) {
	for _, t := range []ProviderType{ProviderVirtual, ProviderOkx} {
		value := 0.0
		if t == active {
			value = 1.0
		}
		ActiveProvider.WithLabelValues(string(t)).Set(value)
	}
}
