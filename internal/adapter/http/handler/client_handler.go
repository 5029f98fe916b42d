package handler

import (
	"net/http"

	"github.com/iho/paymentsengine/internal/adapter/http/dto"
	"github.com/iho/paymentsengine/internal/usecase"
)

// ClientHandler serves read-only views of the ledger store. It reads the
// store directly, so balances reflect every event whose write has completed.
type ClientHandler struct {
	store usecase.ReportStore
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(store usecase.ReportStore) *ClientHandler {
	return &ClientHandler{store: store}
}

// Get handles GET /api/v1/clients/{id}.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id", 16)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id", err.Error())
		return
	}

	account, err := h.store.GetSnapshot(r.Context(), uint16(id))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get client", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ClientFromDomain(account))
}

// List handles GET /api/v1/clients.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.ListSnapshots(r.Context())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list clients", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ClientListResponse{Clients: dto.ClientsFromDomain(accounts)})
}

// GetTransaction handles GET /api/v1/transactions/{id}.
func (h *ClientHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id", 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id", err.Error())
		return
	}

	tx, err := h.store.GetTransaction(r.Context(), uint32(id))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(tx))
}
