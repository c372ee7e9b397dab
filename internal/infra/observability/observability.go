// Package observability defines the service's Prometheus metrics and the
// HTTP middleware that records request traffic.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/greencredits/greencredits/internal/domain"
)

const namespace = "greencredits"

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Metrics
// ═══════════════════════════════════════════════════════════════════════════

// CreditsAwarded sums credits issued, by action kind.
var CreditsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "credits_awarded_total",
	Help:      "Total credits awarded, by action.",
}, []string{"action"})

// LedgerTransactions counts committed transactions, by action kind.
var LedgerTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "transactions_total",
	Help:      "Total ledger transactions committed, by action.",
}, []string{"action"})

// CreditsRedeemed sums credits spent on rewards.
var CreditsRedeemed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "credits_redeemed_total",
	Help:      "Total credits redeemed for rewards.",
})

// RedemptionsRejected counts redemptions refused for insufficient balance.
var RedemptionsRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "redemptions_rejected_total",
	Help:      "Total redemptions rejected for insufficient credits.",
})

// ─── Badge Metrics ──────────────────────────────────────────────────────────

// BadgesUnlocked counts badge grants, by badge id.
var BadgesUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "badges",
	Name:      "unlocked_total",
	Help:      "Total badges unlocked, by badge.",
}, []string{"badge"})

// ─── Report Metrics ─────────────────────────────────────────────────────────

// ReportsSubmitted counts accepted report submissions.
var ReportsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reports",
	Name:      "submitted_total",
	Help:      "Total waste reports submitted.",
})

// ReportQuality tracks the distribution of quality scores.
var ReportQuality = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "reports",
	Name:      "quality_score",
	Help:      "Quality score of submitted reports.",
	Buckets:   []float64{20, 40, 60, 80, 100},
})

// StatusTransitions counts report status changes.
var StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reports",
	Name:      "status_transitions_total",
	Help:      "Total report status transitions, by target status.",
}, []string{"to"})

// ─── Helpers ────────────────────────────────────────────────────────────────

// RecordTransaction updates ledger counters for a committed transaction.
func RecordTransaction(tx domain.Transaction) {
	action := tx.Action.String()
	LedgerTransactions.WithLabelValues(action).Inc()
	if tx.Amount > 0 {
		CreditsAwarded.WithLabelValues(action).Add(float64(tx.Amount))
	} else {
		CreditsRedeemed.Add(float64(-tx.Amount))
	}
}

// RecordBadge counts one unlocked badge.
func RecordBadge(b domain.Badge) {
	BadgesUnlocked.WithLabelValues(b.Key.String()).Inc()
}

// ═══════════════════════════════════════════════════════════════════════════
// HTTP Metrics
// ═══════════════════════════════════════════════════════════════════════════

// HTTPRequests counts requests by method, route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests, by method, route and status.",
}, []string{"method", "route", "code"})

// HTTPDuration tracks request latency by route pattern.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency, by route.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})

// HTTPMetrics is chi middleware recording HTTPRequests and HTTPDuration.
// Routes are labelled by their chi pattern so ids do not explode cardinality.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
