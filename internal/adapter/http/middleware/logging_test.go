package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func TestLoggingMiddleware_LogsActorAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := chimw.RequestID(NewLoggingMiddleware(logger).Wrap(
		AuthMiddleware(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})),
	))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/offers", nil)
	req.Header.Set(UserIDHeader, "u-42")
	req.Header.Set(ClubIDHeader, "ajax")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "error" {
		t.Errorf("expected 5xx logged at error, got %v", entry["level"])
	}
	if entry["actor"] != "u-42" {
		t.Errorf("expected actor field, got %v", entry["actor"])
	}
	if entry["request_id"] == "" || entry["request_id"] == nil {
		t.Errorf("expected request id, got %v", entry["request_id"])
	}
	if entry["status"] != float64(http.StatusBadGateway) {
		t.Errorf("expected status 502, got %v", entry["status"])
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := NewLoggingMiddleware(logger).Wrap(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("expected panic to be logged, got %q", buf.String())
	}
}
