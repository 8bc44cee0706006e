package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-price-alerts/internal/auth"
	"market-price-alerts/internal/catalog"
	"market-price-alerts/internal/config"
	"market-price-alerts/internal/service"
	"market-price-alerts/internal/storage"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	t      *testing.T
	store  *storage.MemoryStore
	router *gin.Engine
	jwt    auth.JWT
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore()
	store.PutMarket(storage.Market{ID: 7, Name: "Croix-des-Bossales"})
	store.PutProduct(storage.Product{ID: 1, Name: "Riz"})

	cfg := &config.Config{Alerting: config.AlertingConfig{
		SurveillancePct: 15, AlertPct: 30, UrgentPct: 50,
		MinSamples: 3, Window: 30 * 24 * time.Hour, RecomputeLookback: 7 * 24 * time.Hour,
	}}
	svc := service.New(cfg, nil, store, store, nil, zerolog.Nop())
	j := auth.JWT{Secret: []byte("secret"), TokenTTL: time.Minute}

	router := NewRouter(Deps{
		Service:   svc,
		Directory: catalog.NewDirectory(store, catalog.NewMemoryCache(), time.Minute, zerolog.Nop()),
		JWT:       j,
		Logger:    zerolog.Nop(),
	})
	return &fixture{t: t, store: store, router: router, jwt: j}
}

func (f *fixture) token(subject string, roles ...string) string {
	f.t.Helper()
	claims := auth.Claims{Roles: roles}
	claims.Subject = subject
	tok, _, err := f.jwt.Sign(claims)
	if err != nil {
		f.t.Fatal(err)
	}
	return tok
}

func (f *fixture) do(method, path, token string, body string) (int, envelope) {
	f.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec.Code, env
}

func (f *fixture) seedHistory() {
	f.t.Helper()
	now := time.Now().UTC()
	for i := 1; i <= 3; i++ {
		_, err := f.store.InsertObservation(context.Background(), storage.Observation{
			AgentID:    "agent-1",
			MarketID:   7,
			ProductID:  1,
			ObservedAt: now.Add(-time.Duration(i) * 24 * time.Hour),
			Price:      decimal.NewFromInt(100),
			Quantity:   decimal.NewFromInt(1),
			Status:     storage.ObservationValidated,
		})
		if err != nil {
			f.t.Fatal(err)
		}
	}
}

func (f *fixture) pending(price int64) int64 {
	f.t.Helper()
	obs, err := f.store.InsertObservation(context.Background(), storage.Observation{
		AgentID:    "agent-2",
		MarketID:   7,
		ProductID:  1,
		ObservedAt: time.Now().UTC().Add(-time.Hour),
		Price:      decimal.NewFromInt(price),
		Quantity:   decimal.NewFromInt(1),
	})
	if err != nil {
		f.t.Fatal(err)
	}
	return obs.ID
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture(t)
	if code, _ := f.do(http.MethodGet, "/healthz", "", ""); code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", code)
	}
	if code, _ := f.do(http.MethodGet, "/readyz", "", ""); code != http.StatusServiceUnavailable {
		t.Fatalf("readyz without db: expected 503, got %d", code)
	}
	if code, _ := f.do(http.MethodGet, "/api/alerts", "", ""); code != http.StatusUnauthorized {
		t.Fatalf("alerts without token: expected 401, got %d", code)
	}
}

func TestAlertWorkflow(t *testing.T) {
	f := newFixture(t)
	f.seedHistory()
	agent := f.token("agent-9", auth.RoleAgent)
	dm := f.token("dm-1", auth.RoleDecisionMaker)

	id := f.pending(145)
	if code, _ := f.do(http.MethodPost, "/api/observations/"+itoa(id)+"/validate", agent, ""); code != http.StatusForbidden {
		t.Fatalf("agent validate: expected 403, got %d", code)
	}
	code, env := f.do(http.MethodPost, "/api/observations/"+itoa(id)+"/validate", dm, "")
	if code != http.StatusOK {
		t.Fatalf("validate: expected 200, got %d (%s)", code, env.Message)
	}
	var validated struct {
		Reconciliation reconciliationView `json:"reconciliation"`
	}
	if err := json.Unmarshal(env.Data, &validated); err != nil {
		t.Fatal(err)
	}
	if validated.Reconciliation.Action != service.ActionCreated || validated.Reconciliation.Tier != "alert" {
		t.Fatalf("unexpected reconciliation %+v", validated.Reconciliation)
	}
	if code, _ := f.do(http.MethodPost, "/api/observations/"+itoa(id)+"/validate", dm, ""); code != http.StatusConflict {
		t.Fatalf("second validate: expected 409, got %d", code)
	}

	code, env = f.do(http.MethodGet, "/api/alerts", agent, "")
	if code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", code)
	}
	var list []alertView
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one active alert, got %d", len(list))
	}
	alert := list[0]
	if alert.MarketName != "Croix-des-Bossales" || alert.ProductName != "Riz" || alert.Viewed {
		t.Fatalf("unexpected enrichment %+v", alert)
	}
	if alert.ViewedBy == nil || len(alert.ViewedBy) != 0 {
		t.Fatalf("fresh alert should carry an empty viewed_by list, got %v", alert.ViewedBy)
	}
	if !alert.DeviationPct.Equal(decimal.NewFromInt(45)) {
		t.Fatalf("expected 45%% deviation, got %s", alert.DeviationPct)
	}

	alertPath := "/api/alerts/" + itoa(alert.ID)
	for i := 0; i < 2; i++ {
		if code, _ := f.do(http.MethodPost, alertPath+"/viewed", agent, ""); code != http.StatusOK {
			t.Fatalf("viewed: expected 200, got %d", code)
		}
	}
	_, env = f.do(http.MethodGet, alertPath, agent, "")
	var one alertView
	if err := json.Unmarshal(env.Data, &one); err != nil {
		t.Fatal(err)
	}
	if !one.Viewed {
		t.Fatal("alert should be viewed by agent-9")
	}
	if len(one.ViewedBy) != 1 || one.ViewedBy[0] != "agent-9" {
		t.Fatalf("viewed_by should list agent-9 once, got %v", one.ViewedBy)
	}
	stored, _ := f.store.GetAlert(context.Background(), alert.ID)
	if len(stored.ViewedBy) != 1 {
		t.Fatalf("viewed set should hold one principal, got %v", stored.ViewedBy)
	}

	if code, _ := f.do(http.MethodPost, alertPath+"/resolve", agent, ""); code != http.StatusForbidden {
		t.Fatalf("agent resolve: expected 403, got %d", code)
	}
	code, env = f.do(http.MethodPost, alertPath+"/resolve", dm, "")
	if code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d (%s)", code, env.Message)
	}
	if code, _ := f.do(http.MethodPost, alertPath+"/resolve", dm, ""); code != http.StatusConflict {
		t.Fatalf("second resolve: expected 409, got %d", code)
	}

	_, env = f.do(http.MethodGet, "/api/alerts", agent, "")
	list = nil
	_ = json.Unmarshal(env.Data, &list)
	if len(list) != 0 {
		t.Fatalf("default listing should be active only, got %d", len(list))
	}
	_, env = f.do(http.MethodGet, "/api/alerts?status=closed", agent, "")
	_ = json.Unmarshal(env.Data, &list)
	if len(list) != 1 || list[0].Status != storage.AlertClosed {
		t.Fatalf("expected one closed alert, got %+v", list)
	}
}

func TestStatisticsAndRecompute(t *testing.T) {
	f := newFixture(t)
	f.seedHistory()
	dm := f.token("dm-1", auth.RoleDecisionMaker)

	// validated straight into the store; only recompute sees it
	_, err := f.store.InsertObservation(context.Background(), storage.Observation{
		MarketID: 7, ProductID: 1, ObservedAt: time.Now().UTC().Add(-time.Hour),
		Price: decimal.NewFromInt(160), Status: storage.ObservationValidated,
	})
	if err != nil {
		t.Fatal(err)
	}

	if code, _ := f.do(http.MethodPost, "/api/alerts/recompute", f.token("a", auth.RoleAgent), ""); code != http.StatusForbidden {
		t.Fatalf("agent recompute: expected 403, got %d", code)
	}
	code, env := f.do(http.MethodPost, "/api/alerts/recompute", dm, "")
	if code != http.StatusOK {
		t.Fatalf("recompute: expected 200, got %d (%s)", code, env.Message)
	}
	var report service.RecomputeReport
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatal(err)
	}
	if report.Created != 1 || report.Trigger != "manual" {
		t.Fatalf("unexpected report %+v", report)
	}

	code, env = f.do(http.MethodGet, "/api/alerts/statistics", dm, "")
	if code != http.StatusOK {
		t.Fatalf("statistics: expected 200, got %d", code)
	}
	var stats struct {
		ActiveTotal int64            `json:"active_total"`
		ByTier      map[string]int64 `json:"by_tier"`
		ByKind      map[string]int64 `json:"by_kind"`
	}
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.ActiveTotal != 1 || stats.ByTier["urgent"] != 1 || stats.ByKind["price_spike"] != 1 {
		t.Fatalf("unexpected statistics %+v", stats)
	}
	if _, ok := stats.ByTier["surveillance"]; !ok {
		t.Fatal("empty tiers should still be reported")
	}

	if code, _ := f.do(http.MethodGet, "/api/alerts/statistics?from=2025-02-01&to=2025-01-01", dm, ""); code != http.StatusBadRequest {
		t.Fatalf("inverted range: expected 400, got %d", code)
	}
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t)
	dm := f.token("dm-1", auth.RoleDecisionMaker)

	cases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/api/alerts?tier=severe", "", http.StatusBadRequest},
		{http.MethodGet, "/api/alerts?status=pending", "", http.StatusBadRequest},
		{http.MethodGet, "/api/alerts?limit=abc", "", http.StatusBadRequest},
		{http.MethodGet, "/api/alerts?limit=201", "", http.StatusBadRequest},
		{http.MethodGet, "/api/alerts?limit=-1", "", http.StatusBadRequest},
		{http.MethodGet, "/api/alerts?limit=200", "", http.StatusOK},
		{http.MethodGet, "/api/alerts/abc", "", http.StatusBadRequest},
		{http.MethodGet, "/api/alerts/999", "", http.StatusNotFound},
		{http.MethodPost, "/api/alerts/999/resolve", "", http.StatusNotFound},
		{http.MethodPost, "/api/observations/999/validate", "", http.StatusNotFound},
		{http.MethodPost, "/api/observations/" + itoa(f.pending(100)) + "/reject", "", http.StatusBadRequest},
		{http.MethodPost, "/api/observations/" + itoa(f.pending(100)) + "/reject", `{"reason":"duplicate"}`, http.StatusOK},
	}
	for _, tc := range cases {
		if code, env := f.do(tc.method, tc.path, dm, tc.body); code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d (%s)", tc.method, tc.path, tc.status, code, env.Message)
		}
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
