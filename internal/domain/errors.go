package domain

import "errors"

var (
	// Store errors
	ErrNotFound      = errors.New("record not found")
	ErrCorruptLedger = errors.New("ledger is corrupt: conflicting transaction record")

	// Event errors
	ErrMalformedEvent = errors.New("malformed event")
	ErrClientMismatch = errors.New("event does not belong to this client")
	ErrAccountLocked  = errors.New("account is locked")

	// Transfer errors
	ErrNegativeAmount       = errors.New("amount must not be negative")
	ErrInsufficientFunds    = errors.New("insufficient available funds")
	ErrDuplicateTransaction = errors.New("transaction id already used")

	// Dispute errors
	ErrUnknownTransaction      = errors.New("referenced transaction does not exist")
	ErrWithdrawalNotDisputable = errors.New("withdrawals cannot be disputed")
	ErrAlreadyDisputed         = errors.New("transaction was already disputed")
	ErrNotDisputed             = errors.New("transaction is not under dispute")
)

// rejections maps every business-rule error to the short reason used in
// logs and metrics labels.
var rejections = []struct {
	err    error
	reason string
}{
	{ErrMalformedEvent, "malformed"},
	{ErrClientMismatch, "client_mismatch"},
	{ErrAccountLocked, "account_locked"},
	{ErrNegativeAmount, "negative_amount"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrDuplicateTransaction, "duplicate_transaction"},
	{ErrUnknownTransaction, "unknown_transaction"},
	{ErrWithdrawalNotDisputable, "withdrawal_not_disputable"},
	{ErrAlreadyDisputed, "already_disputed"},
	{ErrNotDisputed, "not_disputed"},
}

// IsRejection reports whether err is an expected outcome of the state machine
// rather than a failure. Rejected events leave every balance untouched.
func IsRejection(err error) bool {
	return RejectionReason(err) != ""
}

// RejectionReason returns a stable label for a rejection, or "" when err is
// not a rejection.
func RejectionReason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ""
}
