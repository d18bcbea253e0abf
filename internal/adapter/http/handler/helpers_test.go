package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/iho/clubmarket/internal/adapter/http/dto"
	"github.com/iho/clubmarket/internal/domain"
)

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/offers?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/offers?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", domain.ErrInvalidAmount, http.StatusBadRequest},
		{"duplicate", domain.ErrDuplicate, http.StatusBadRequest},
		{"permission", domain.ErrNotSeller, http.StatusForbidden},
		{"not found", domain.ErrOfferNotFound, http.StatusNotFound},
		{"state", domain.ErrOfferNotPending, http.StatusConflict},
		{"concurrent update", domain.ErrConcurrentUpdate, http.StatusConflict},
		{"market closed", domain.ErrMarketClosed, http.StatusLocked},
		{"insufficient funds", domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{"wrapped", fmt.Errorf("settle: %w", domain.ErrPlayerMoved), http.StatusConflict},
		{"expired token", domain.ErrExpiredToken, http.StatusUnauthorized},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapDomainError(tt.err); got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestWriteDomainErrorHidesInternalDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/offers/1", nil)

	rec := httptest.NewRecorder()
	writeDomainError(rec, req, "failed to get offer", errors.New("pq: connection refused"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "internal error" {
		t.Fatalf("expected masked message, got %q", resp.Message)
	}

	rec = httptest.NewRecorder()
	writeDomainError(rec, req, "failed to counter offer", domain.ErrCounterMessageTooLong)
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != domain.ErrCounterMessageTooLong.Error() {
		t.Fatalf("expected actionable message, got %q", resp.Message)
	}
}

func TestActorFromDefaultsToViewer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actor := actorFrom(req); actor.Role != domain.RoleViewer || actor.ClubID != "" {
		t.Fatalf("expected anonymous viewer, got %+v", actor)
	}

	ctx := domain.WithActor(req.Context(), &domain.Actor{UserID: "u1", ClubID: "ajax", Role: domain.RoleManager})
	if actor := actorFrom(req.WithContext(ctx)); actor.ClubID != "ajax" {
		t.Fatalf("expected context actor, got %+v", actor)
	}
}
