package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ObserveReconcile("created", time.Millisecond)
	r.ObserveReconcile("created", time.Millisecond)
	r.ObserveReconcile("resolved", time.Millisecond)
	r.ReconcileFailed()
	r.ObserveHTTP("/api/alerts", "GET", 200, time.Millisecond)

	if got := testutil.ToFloat64(r.reconciliations.WithLabelValues("created")); got != 2 {
		t.Fatalf("created count: want 2, got %v", got)
	}
	if got := testutil.ToFloat64(r.failures); got != 1 {
		t.Fatalf("failures: want 1, got %v", got)
	}

	if got := testutil.ToFloat64(r.httpRequests.WithLabelValues("/api/alerts", "GET", "200")); got != 1 {
		t.Fatalf("http requests: want 1, got %v", got)
	}

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "pricewatch_reconciliations_total") {
		t.Fatalf("metrics output missing counter: %s", rec.Body.String())
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveReconcile("created", time.Second)
	r.ReconcileFailed()
	r.RecomputeStarted("manual")
	r.ObserveHTTP("/", "GET", 200, time.Second)
	if r.Registry() != nil {
		t.Fatal("nil recorder should have no registry")
	}
}
