package ingress

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/iho/paymentsengine/internal/domain"
)

// CSVWriter writes events in the format CSVSource reads.
type CSVWriter struct {
	w      *csv.Writer
	header bool
}

// NewCSVWriter creates a writer on w. The header row is written lazily.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Write appends one event row.
func (w *CSVWriter) Write(ev domain.Event) error {
	if !w.header {
		if err := w.w.Write([]string{ColumnType, ColumnClient, ColumnTx, ColumnAmount}); err != nil {
			return err
		}
		w.header = true
	}

	amount := ""
	if ev.Amount.Valid {
		amount = ev.Amount.Decimal.String()
	}

	return w.w.Write([]string{
		string(ev.Type),
		strconv.FormatUint(uint64(ev.ClientID), 10),
		strconv.FormatUint(uint64(ev.TxID), 10),
		amount,
	})
}

// Flush writes buffered rows to the underlying writer.
func (w *CSVWriter) Flush() error {
	w.w.Flush()
	return w.w.Error()
}
