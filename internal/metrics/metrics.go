// Package metrics exposes Prometheus instrumentation for the trading loop:
//
//   - bot_decision_cycles_total        – decision cycles run
//   - bot_cycle_firings_skipped_total  – firings skipped because the prior
//     invocation of the same cycle was still running (label: cycle)
//   - bot_decisions_total{action}      – decisions by outcome (buy|sell|none)
//   - bot_orders_total{status}         – orders by terminal status
//   - bot_orders_suppressed_total      – decisions suppressed by the
//     in-flight-order guard
//   - bot_trades_total                 – recorded fills
//   - bot_equity_usd                   – last observed account equity
//   - bot_buying_power_usd             – last observed buying power
//   - bot_ws_clients                   – connected dashboard subscribers
//
// All collectors are registered in init() and served via promhttp at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	DecisionCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_decision_cycles_total",
			Help: "Trading-decision cycles run",
		},
	)

	FiringsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_cycle_firings_skipped_total",
			Help: "Scheduled firings skipped because the previous invocation was still running",
		},
		[]string{"cycle"},
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_decisions_total",
			Help: "Signal evaluations by outcome",
		},
		[]string{"action"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders by terminal status",
		},
		[]string{"status"},
	)

	OrdersSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_orders_suppressed_total",
			Help: "Decisions suppressed by the per-instrument in-flight guard",
		},
	)

	Trades = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_trades_total",
			Help: "Fills recorded in the trade ledger",
		},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_equity_usd",
			Help: "Account equity in USD",
		},
	)

	BuyingPower = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_buying_power_usd",
			Help: "Account buying power in USD",
		},
	)

	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_ws_clients",
			Help: "Connected dashboard WebSocket clients",
		},
	)
)

func init() {
	prometheus.MustRegister(
		DecisionCycles,
		FiringsSkipped,
		Decisions,
		Orders,
		OrdersSuppressed,
		Trades,
		Equity,
		BuyingPower,
		Subscribers,
	)
}
