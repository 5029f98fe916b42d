// Package ingress turns external event feeds into domain events for the
// dispatcher. Sources write to a channel they do not own; the caller closes it
// once the source returns.
package ingress

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iho/paymentsengine/internal/domain"
)

// ParseEvent builds an event from its textual fields. An empty amount means
// the event carries none. Surrounding whitespace is ignored everywhere.
func ParseEvent(typ, client, tx, amount string) (domain.Event, error) {
	eventType, err := domain.ParseEventType(typ)
	if err != nil {
		return domain.Event{}, err
	}

	clientID, err := strconv.ParseUint(strings.TrimSpace(client), 10, 16)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: client %q: %v", domain.ErrMalformedEvent, client, err)
	}

	txID, err := strconv.ParseUint(strings.TrimSpace(tx), 10, 32)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: tx %q: %v", domain.ErrMalformedEvent, tx, err)
	}

	ev := domain.Event{
		Type:     eventType,
		ClientID: uint16(clientID),
		TxID:     uint32(txID),
	}

	if amount = strings.TrimSpace(amount); amount != "" {
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return domain.Event{}, fmt.Errorf("%w: amount %q: %v", domain.ErrMalformedEvent, amount, err)
		}
		ev.Amount = decimal.NewNullDecimal(value)
	}

	if err := ev.Validate(); err != nil {
		return domain.Event{}, err
	}

	return ev, nil
}
