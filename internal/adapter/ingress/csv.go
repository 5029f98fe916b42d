package ingress

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iho/paymentsengine/internal/domain"
)

// Column names of the CSV event format.
const (
	ColumnType   = "type"
	ColumnClient = "client"
	ColumnTx     = "tx"
	ColumnAmount = "amount"
)

// CSVSource reads events from a CSV stream with a header row naming the
// type, client, tx and amount columns. Rows may omit trailing columns, so
// dispute rows can be written with or without an empty amount.
type CSVSource struct {
	r io.Reader
}

// NewCSVSource creates a source reading from r.
func NewCSVSource(r io.Reader) *CSVSource {
	return &CSVSource{r: r}
}

type csvColumns struct {
	typ, client, tx, amount int
}

// Stream sends every row to out in file order. A malformed row stops the read
// with an error naming its line; rows already sent stay sent. A cancelled ctx
// stops the read and is not an error.
func (s *CSVSource) Stream(ctx context.Context, out chan<- domain.Event) error {
	reader := csv.NewReader(s.r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read csv header: %w", err)
	}

	cols, err := parseHeader(header)
	if err != nil {
		return err
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}

		line, _ := reader.FieldPos(0)

		ev, err := ParseEvent(
			field(record, cols.typ),
			field(record, cols.client),
			field(record, cols.tx),
			field(record, cols.amount),
		)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func parseHeader(header []string) (csvColumns, error) {
	cols := csvColumns{typ: -1, client: -1, tx: -1, amount: -1}

	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ColumnType:
			cols.typ = i
		case ColumnClient:
			cols.client = i
		case ColumnTx:
			cols.tx = i
		case ColumnAmount:
			cols.amount = i
		}
	}

	if cols.typ < 0 || cols.client < 0 || cols.tx < 0 {
		return cols, fmt.Errorf("csv header %q must name %s, %s and %s columns", strings.Join(header, ","), ColumnType, ColumnClient, ColumnTx)
	}

	return cols, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}
