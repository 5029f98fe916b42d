package report

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/paymentsengine/internal/adapter/repository/memory"
	"github.com/iho/paymentsengine/internal/domain"
)

func TestWriteCSV(t *testing.T) {
	locked := domain.NewAccount(1)
	locked.Available = decimal.RequireFromString("-1")
	locked.Locked = true

	open := domain.NewAccount(2)
	open.Available = decimal.RequireFromString("1.23456")
	open.Held = decimal.RequireFromString("2")

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []*domain.Account{locked, open}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	want := "client,available,held,total,locked\n" +
		"1,-1.0000,0.0000,-1.0000,true\n" +
		"2,1.2346,2.0000,3.2346,false\n"
	if buf.String() != want {
		t.Fatalf("unexpected report:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteStoreOrdersByClient(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	for _, id := range []uint16{3, 1} {
		if err := store.PutSnapshot(ctx, domain.NewAccount(id)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := WriteStore(ctx, &buf, store); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	want := "client,available,held,total,locked\n" +
		"1,0.0000,0.0000,0.0000,false\n" +
		"3,0.0000,0.0000,0.0000,false\n"
	if buf.String() != want {
		t.Fatalf("unexpected report:\n%s", buf.String())
	}
}
