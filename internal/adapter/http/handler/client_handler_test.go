package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/paymentsengine/internal/adapter/http/dto"
	"github.com/iho/paymentsengine/internal/adapter/repository/memory"
	"github.com/iho/paymentsengine/internal/domain"
)

func newClientRouter(t *testing.T) http.Handler {
	t.Helper()

	ctx := context.Background()
	store := memory.NewStore()

	account := domain.NewAccount(2)
	account.Available = decimal.RequireFromString("1.5")
	account.Held = decimal.RequireFromString("2")
	if err := store.PutSnapshot(ctx, account); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
	if err := store.PutSnapshot(ctx, domain.NewAccount(1)); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
	tx := &domain.Transaction{
		ID:           9,
		ClientID:     2,
		Kind:         domain.TransactionKindDeposit,
		Amount:       decimal.RequireFromString("2"),
		DisputeState: domain.DisputeStateDisputed,
	}
	if err := store.PutTransaction(ctx, tx); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	h := NewClientHandler(store)
	r := chi.NewRouter()
	r.Get("/clients", h.List)
	r.Get("/clients/{id}", h.Get)
	r.Get("/transactions/{id}", h.GetTransaction)
	return r
}

func TestClientHandlerGet(t *testing.T) {
	router := newClientRouter(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"existing client", "/clients/2", http.StatusOK},
		{"unknown client", "/clients/3", http.StatusNotFound},
		{"out of range", "/clients/70000", http.StatusBadRequest},
		{"not a number", "/clients/abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/clients/2", nil))

	var resp dto.ClientResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Client != 2 || resp.Available != "1.5000" || resp.Total != "3.5000" || resp.Locked {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientHandlerList(t *testing.T) {
	router := newClientRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/clients", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp dto.ClientListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Clients) != 2 || resp.Clients[0].Client != 1 || resp.Clients[1].Client != 2 {
		t.Fatalf("expected clients ordered by id, got %+v", resp.Clients)
	}
}

func TestClientHandlerGetTransaction(t *testing.T) {
	router := newClientRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/transactions/9", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp dto.TransactionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Tx != 9 || resp.DisputeState != "disputed" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/transactions/10", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }

func TestHealthHandlerReadiness(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"store reachable", nil, http.StatusOK},
		{"store down", errors.New("connection refused"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(failingPinger{err: tt.err})

			rr := httptest.NewRecorder()
			h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
		})
	}
}
