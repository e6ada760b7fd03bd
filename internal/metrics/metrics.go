package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiodesk",
			Name:      "booking_created_total",
			Help:      "Count of bookings created, by whether a deposit was taken.",
		},
		[]string{"deposit"},
	)

	bookingConflict = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiodesk",
			Name:      "booking_conflict_total",
			Help:      "Count of booking conflicts detected, by check phase.",
		},
		[]string{"phase"},
	)

	ledgerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiodesk",
			Name:      "ledger_operation_total",
			Help:      "Count of ledger operations by operation and result.",
		},
		[]string{"op", "result"},
	)

	reconcileDrift = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "studiodesk",
			Name:      "ledger_drifted_accounts",
			Help:      "Accounts whose balance disagreed with their ledger on the last reconcile run.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingConflict, ledgerOps, reconcileDrift)
	})
}

func IncBookingCreated(withDeposit bool) {
	label := "no"
	if withDeposit {
		label = "yes"
	}
	bookingCreated.WithLabelValues(label).Inc()
}

// IncConflict takes "advisory" or "authoritative".
func IncConflict(phase string) {
	bookingConflict.WithLabelValues(phase).Inc()
}

func ObserveLedgerOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ledgerOps.WithLabelValues(op, result).Inc()
}

func SetDriftedAccounts(n int) {
	reconcileDrift.Set(float64(n))
}
