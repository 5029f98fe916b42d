package usecase

const (
	// DefaultMailboxSize is the number of events buffered per client worker.
	DefaultMailboxSize = 1024

	// DefaultMaxActiveClients bounds the number of client workers kept alive.
	// Evicted clients are recovered from the store on their next event.
	DefaultMaxActiveClients = 2048
)

// FreezePolicy decides what a chargeback does to the rest of the account.
type FreezePolicy string

const (
	// FreezeAccount rejects every event for a client after a chargeback.
	FreezeAccount FreezePolicy = "account"
	// FreezeNone only finalizes the charged-back record; the account keeps
	// accepting events while the locked flag is still reported.
	FreezeNone FreezePolicy = "none"
)

// IsValid checks if the policy is known.
func (p FreezePolicy) IsValid() bool {
	return p == FreezeAccount || p == FreezeNone
}
