package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/greencredits/greencredits/internal/domain"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

func TestRecordTransaction_Award(t *testing.T) {
	awarded := CreditsAwarded.WithLabelValues("QUALITY_REPORT")
	count := LedgerTransactions.WithLabelValues("QUALITY_REPORT")
	beforeAwarded, beforeCount := counterValue(t, awarded), counterValue(t, count)

	RecordTransaction(domain.Transaction{Action: domain.ActionQualityReport, Amount: 25})

	if got := counterValue(t, awarded) - beforeAwarded; got != 25 {
		t.Errorf("credits awarded delta = %v, want 25", got)
	}
	if got := counterValue(t, count) - beforeCount; got != 1 {
		t.Errorf("transactions delta = %v, want 1", got)
	}
}

func TestRecordTransaction_Redemption(t *testing.T) {
	before := counterValue(t, CreditsRedeemed)
	RecordTransaction(domain.Transaction{Action: domain.ActionRedemption, Amount: -40})
	if got := counterValue(t, CreditsRedeemed) - before; got != 40 {
		t.Errorf("redeemed delta = %v, want 40", got)
	}
}

func TestRecordBadge(t *testing.T) {
	c := BadgesUnlocked.WithLabelValues("GPS_MASTER")
	before := counterValue(t, c)
	def, _ := domain.BadgeGPSMaster.Definition()
	RecordBadge(domain.NewBadge(def, time.Now()))
	if got := counterValue(t, c) - before; got != 1 {
		t.Errorf("badge delta = %v, want 1", got)
	}
}

// ─── HTTP ───────────────────────────────────────────────────────────────────

func TestHTTPMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetrics)
	r.Get("/api/report/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	c := HTTPRequests.WithLabelValues("GET", "/api/report/{id}", "418")
	before := counterValue(t, c)

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report/"+id, nil))
	}

	if got := counterValue(t, c) - before; got != 3 {
		t.Errorf("requests delta = %v, want 3", got)
	}
}

func TestHTTPMetrics_ImplicitOK(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetrics)
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})

	c := HTTPRequests.WithLabelValues("GET", "/ping", "200")
	before := counterValue(t, c)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	if got := counterValue(t, c) - before; got != 1 {
		t.Errorf("requests delta = %v, want 1", got)
	}
}
