// Package report renders final client balances.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/iho/paymentsengine/internal/domain"
	"github.com/iho/paymentsengine/internal/usecase"
)

// Precision is the number of decimal places printed for amounts.
const Precision = 4

// Header is the report's header row.
var Header = []string{"client", "available", "held", "total", "locked"}

// WriteCSV writes one row per account in the given order.
func WriteCSV(w io.Writer, accounts []*domain.Account) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return err
	}

	for _, a := range accounts {
		row := []string{
			strconv.FormatUint(uint64(a.ClientID), 10),
			a.Available.StringFixed(Precision),
			a.Held.StringFixed(Precision),
			a.Total().StringFixed(Precision),
			strconv.FormatBool(a.Locked),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteStore writes every snapshot in store, ordered by client ID.
func WriteStore(ctx context.Context, w io.Writer, store usecase.SnapshotLister) error {
	accounts, err := store.ListSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	return WriteCSV(w, accounts)
}
