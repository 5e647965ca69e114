package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/loralink/internal/session"
)

func TestStatusRoutes(t *testing.T) {
	s := NewStatusServer("node-status", ":0")
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/link", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("link before publish = %d, want 503", rec.Code)
	}

	s.Publish(session.Snapshot{State: "listening", NextCounter: 7, RSSI: -80})

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/link", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("link status = %d", rec.Code)
	}
	var body struct {
		Node     string           `json:"node"`
		Snapshot session.Snapshot `json:"snapshot"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode link body: %v", err)
	}
	if body.Node != "node-status" || body.Snapshot.State != "listening" || body.Snapshot.NextCounter != 7 {
		t.Fatalf("unexpected link body: %+v", body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
}
