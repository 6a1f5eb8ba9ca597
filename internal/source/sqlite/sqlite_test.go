package sqlite

import (
	"context"
	"reflect"
	"testing"

	"recon/internal/source"
	"recon/pkg/table"
)

func TestRegistered(t *testing.T) {
	for _, k := range source.Kinds() {
		if k == "sqlite" {
			return
		}
	}
	t.Fatalf("Kinds()=%v, want sqlite registered", source.Kinds())
}

func TestLoad_InMemory(t *testing.T) {
	ctx := context.Background()
	src, err := source.Open(ctx, source.Config{Kind: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open() err=%v", err)
	}
	defer src.Close()

	db := src.(*source.DB).Handle()
	stmts := []string{
		`CREATE TABLE trades (trade_id TEXT, amount REAL, qty INTEGER, booked TEXT)`,
		`INSERT INTO trades VALUES ('T1', 10.5, 3, '2017-09-29')`,
		`INSERT INTO trades VALUES ('T2', NULL, 4, '2017-09-30')`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}

	tb, err := src.Load(ctx, `SELECT trade_id, amount, qty, booked FROM trades WHERE qty > ? ORDER BY trade_id`, 0)
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if got := tb.Names(); !reflect.DeepEqual(got, []string{"trade_id", "amount", "qty", "booked"}) {
		t.Fatalf("Names()=%v", got)
	}
	if tb.NumRows() != 2 {
		t.Fatalf("NumRows()=%d, want 2", tb.NumRows())
	}

	id, _ := tb.Column("trade_id")
	if id.Kind != table.KindObject || id.Values[0] != "T1" {
		t.Fatalf("trade_id=%v kind=%v", id.Values, id.Kind)
	}
	qty, _ := tb.Column("qty")
	if qty.Kind != table.KindNumeric || qty.Values[1] != int64(4) {
		t.Fatalf("qty=%v kind=%v", qty.Values, qty.Kind)
	}
	amt, _ := tb.Column("amount")
	if amt.Values[0] != 10.5 || amt.Values[1] != nil {
		t.Fatalf("amount=%v", amt.Values)
	}
	booked, _ := tb.Column("booked")
	if booked.Kind != table.KindTemporal {
		t.Fatalf("booked kind=%v, want temporal from text inference", booked.Kind)
	}
}

func TestLoad_BadQuery(t *testing.T) {
	ctx := context.Background()
	src, err := Open(ctx, source.Config{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open() err=%v", err)
	}
	defer src.Close()

	if _, err := src.Load(ctx, `SELECT * FROM missing`); err == nil {
		t.Fatalf("Load() err=nil, want error for missing table")
	}
}
