package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"quotaguard/internal/domain/entity"
	"quotaguard/internal/handler/http/auth"
	quotaUC "quotaguard/internal/usecase/quota"
)

/* ──────────────────────────────── helpers ──────────────────────────────── */

type stubQuotaRepo struct {
	mu      sync.Mutex
	periods map[string]*entity.QuotaPeriod
	nextID  int64
	err     error
}

func newStubQuotaRepo() *stubQuotaRepo {
	return &stubQuotaRepo{periods: map[string]*entity.QuotaPeriod{}, nextID: 1}
}

func quotaKey(orgID, periodKey string) string { return orgID + "/" + periodKey }

func (s *stubQuotaRepo) GetOrCreatePeriod(_ context.Context, orgID, periodKey string, limit int64) (*entity.QuotaPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.periods[quotaKey(orgID, periodKey)]; ok {
		return p, nil
	}
	p := &entity.QuotaPeriod{ID: s.nextID, OrganizationID: orgID, PeriodKey: periodKey, Limit: limit}
	s.nextID++
	s.periods[quotaKey(orgID, periodKey)] = p
	return p, nil
}

func (s *stubQuotaRepo) IncrementIfBelowLimit(_ context.Context, orgID, periodKey string) (*entity.QuotaPeriod, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, false, s.err
	}
	p, ok := s.periods[quotaKey(orgID, periodKey)]
	if !ok {
		return nil, false, nil
	}
	if p.Used >= p.Limit {
		return p, false, nil
	}
	p.Used++
	return p, true, nil
}

func (s *stubQuotaRepo) GetPeriod(_ context.Context, orgID, periodKey string) (*entity.QuotaPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.periods[quotaKey(orgID, periodKey)], nil
}

func newQuotaHandler(repo *stubQuotaRepo, violations ViolationRecorder) http.Handler {
	svc := &quotaUC.Service{
		Repo:  repo,
		Plans: map[string]int{"free": 2, "pro": 1000},
	}
	qe := NewQuotaEnforcer(DefaultQuotaEnforcerConfig(), svc, violations)
	return qe.Middleware()(okHandler())
}

func orgRequest(path, orgID, plan string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("User-Agent", "test-agent")
	claims := &auth.Claims{UserID: "user-9", Role: "user", OrganizationID: orgID, Plan: plan}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

/* ──────────────────────────────── 1. Metered request consumes and sets headers ──────────────────────────────── */

func TestQuotaEnforcer_ConsumesAndSetsHeaders(t *testing.T) {
	repo := newStubQuotaRepo()
	handler := newQuotaHandler(repo, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, orgRequest("/api/items", "org-1", "free"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Quota-Limit"); got != "2" {
		t.Fatalf("X-Quota-Limit=%q, want 2", got)
	}
	if got := rec.Header().Get("X-Quota-Remaining"); got != "1" {
		t.Fatalf("X-Quota-Remaining=%q, want 1", got)
	}
	if rec.Header().Get("X-Quota-Reset") == "" {
		t.Fatal("X-Quota-Reset missing")
	}
}

/* ──────────────────────────────── 2. Exhausted quota returns 429 quota_exceeded ──────────────────────────────── */

func TestQuotaEnforcer_ExhaustedQuota(t *testing.T) {
	repo := newStubQuotaRepo()
	violations := &recordingViolations{}
	handler := newQuotaHandler(repo, violations)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, orgRequest("/api/items", "org-1", "free"))
	}

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rec.Code)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "quota_exceeded" {
		t.Fatalf("error=%q, want quota_exceeded", body["error"])
	}
	if body["quota_limit"] != float64(2) || body["quota_used"] != float64(2) {
		t.Fatalf("body=%v, want quota_limit=2 quota_used=2", body)
	}
	if body["plan"] != "free" {
		t.Fatalf("plan=%q, want free", body["plan"])
	}
	if body["reset_at"] == "" {
		t.Fatal("reset_at missing")
	}

	if violations.count() != 1 {
		t.Fatalf("violations=%d, want 1", violations.count())
	}
	v := violations.last()
	if v.Identifier != "org-1" || v.Kind != entity.KindOrganization || v.Type != entity.ViolationQuota {
		t.Fatalf("violation=%+v, want ORGANIZATION quota for org-1", v)
	}
	if v.AttemptedCount != 3 || v.Limit != 2 {
		t.Fatalf("violation=%+v, want attempted=3 limit=2", v)
	}
}

/* ──────────────────────────────── 3. Unmetered paths bypass the store ──────────────────────────────── */

func TestQuotaEnforcer_UnmeteredPath(t *testing.T) {
	repo := newStubQuotaRepo()
	handler := newQuotaHandler(repo, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, orgRequest("/health", "org-1", "free"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	if len(repo.periods) != 0 {
		t.Fatal("unmetered path must not touch the quota store")
	}
	if rec.Header().Get("X-Quota-Limit") != "" {
		t.Fatal("unmetered path must not set quota headers")
	}
}

func TestQuotaEnforcer_StatusEndpointExempt(t *testing.T) {
	repo := newStubQuotaRepo()
	handler := newQuotaHandler(repo, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, orgRequest("/api/quota", "org-1", "free"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	if len(repo.periods) != 0 {
		t.Fatal("quota status endpoint must not consume quota")
	}
}

/* ──────────────────────────────── 4. Org-less callers are unlimited ──────────────────────────────── */

func TestQuotaEnforcer_NoOrganization(t *testing.T) {
	repo := newStubQuotaRepo()
	handler := newQuotaHandler(repo, nil)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, orgRequest("/api/items", "", "free"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status=%d, want 200 for org-less caller", i+1, rec.Code)
		}
	}
	if len(repo.periods) != 0 {
		t.Fatal("org-less caller must not touch the quota store")
	}
}

/* ──────────────────────────────── 5. Store failure fails open, never 500 ──────────────────────────────── */

func TestQuotaEnforcer_StoreFailureFailsOpen(t *testing.T) {
	repo := newStubQuotaRepo()
	repo.err = errors.New("connection refused")
	handler := newQuotaHandler(repo, nil)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, orgRequest("/api/items", "org-1", "free"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status=%d, want 200 on quota store outage", i+1, rec.Code)
		}
		if rec.Header().Get("X-Quota-Limit") != "" {
			t.Fatal("fail-open response must not carry quota headers")
		}
	}
}

/* ──────────────────────────────── 6. Denied requests do not consume ──────────────────────────────── */

func TestQuotaEnforcer_DeniedDoesNotConsume(t *testing.T) {
	repo := newStubQuotaRepo()
	handler := newQuotaHandler(repo, nil)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, orgRequest("/api/items", "org-1", "free"))
		_ = rec
	}

	p := repo.periods[quotaKey("org-1", entity.PeriodKeyFor(time.Now()))]
	if p == nil {
		t.Fatal("period missing")
	}
	if p.Used != 2 {
		t.Fatalf("used=%d, want pinned at the limit 2", p.Used)
	}
}
