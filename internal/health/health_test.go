package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthzAlwaysOK(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
}

func TestReadyzAggregatesCheckers(t *testing.T) {
	h := New(
		Checker{Name: "llm", Check: func(_ context.Context) error { return nil }},
		Checker{Name: "stt", Check: func(_ context.Context) error {
			return errors.New("connection refused")
		}},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q", body.Status)
	}
	if body.Checks["llm"] != "ok" {
		t.Errorf("llm check = %q", body.Checks["llm"])
	}
	if body.Checks["stt"] != "fail: connection refused" {
		t.Errorf("stt check = %q", body.Checks["stt"])
	}
}

func TestReadyzNoCheckersIsReady(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAdapterChecker(t *testing.T) {
	healthy := AdapterChecker("llm", func(_ context.Context) bool { return true })
	if err := healthy.Check(context.Background()); err != nil {
		t.Errorf("healthy adapter: %v", err)
	}

	down := AdapterChecker("llm", func(_ context.Context) bool { return false })
	if err := down.Check(context.Background()); err == nil {
		t.Error("unhealthy adapter reported no error")
	}
}

func TestRegisterMountsRoutes(t *testing.T) {
	mux := http.NewServeMux()
	New(Checker{Name: "llm", Check: func(_ context.Context) error { return nil }}).Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestReadyzRespectsCancelledContext(t *testing.T) {
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
