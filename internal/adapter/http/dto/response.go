package dto

import (
	"github.com/iho/paymentsengine/internal/adapter/report"
	"github.com/iho/paymentsengine/internal/domain"
)

// ClientResponse represents a client snapshot in API responses. Amounts are
// rendered as fixed-point strings, matching the CSV report.
type ClientResponse struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

// ClientFromDomain converts a domain account to response.
func ClientFromDomain(a *domain.Account) *ClientResponse {
	return &ClientResponse{
		Client:    a.ClientID,
		Available: a.Available.StringFixed(report.Precision),
		Held:      a.Held.StringFixed(report.Precision),
		Total:     a.Total().StringFixed(report.Precision),
		Locked:    a.Locked,
	}
}

// ClientsFromDomain converts a slice of accounts.
func ClientsFromDomain(accounts []*domain.Account) []*ClientResponse {
	result := make([]*ClientResponse, len(accounts))
	for i, a := range accounts {
		result[i] = ClientFromDomain(a)
	}
	return result
}

// ClientListResponse is the response for listing clients.
type ClientListResponse struct {
	Clients []*ClientResponse `json:"clients"`
}

// TransactionResponse represents a stored deposit or withdrawal.
type TransactionResponse struct {
	Tx           uint32 `json:"tx"`
	Client       uint16 `json:"client"`
	Kind         string `json:"kind"`
	Amount       string `json:"amount"`
	DisputeState string `json:"dispute_state"`
}

// TransactionFromDomain converts a domain transaction to response.
func TransactionFromDomain(tx *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		Tx:           tx.ID,
		Client:       tx.ClientID,
		Kind:         string(tx.Kind),
		Amount:       tx.Amount.StringFixed(report.Precision),
		DisputeState: string(tx.DisputeState),
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
