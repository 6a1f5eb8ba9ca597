package source

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"recon/internal/apperrors"
	"recon/pkg/table"
)

type fakeSource struct{ cfg Config }

func (f *fakeSource) Load(context.Context, string, ...any) (table.Table, error) {
	return table.Table{}, nil
}
func (f *fakeSource) Close() error { return nil }

func TestRegisterAndOpen(t *testing.T) {
	Register("fake-open", func(_ context.Context, cfg Config) (Source, error) {
		return &fakeSource{cfg: cfg}, nil
	})
	Register("fake-broken", func(context.Context, Config) (Source, error) {
		return nil, errors.New("boom")
	})

	s, err := Open(context.Background(), Config{Kind: "fake-open", DSN: "x"})
	if err != nil {
		t.Fatalf("Open() err=%v", err)
	}
	if s.(*fakeSource).cfg.DSN != "x" {
		t.Fatalf("factory got cfg=%+v", s.(*fakeSource).cfg)
	}

	if _, err := Open(context.Background(), Config{Kind: "fake-broken"}); err == nil {
		t.Fatalf("Open(broken) err=nil, want error")
	}
	if _, err := Open(context.Background(), Config{Kind: "nope"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("Open(unknown) err=%v, want ErrInvalidInput", err)
	}
	if _, err := Open(context.Background(), Config{}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("Open(empty) err=%v, want ErrInvalidInput", err)
	}
}

func TestRegister_Panics(t *testing.T) {
	Register("fake-dup", func(context.Context, Config) (Source, error) { return nil, nil })

	tests := []struct {
		name string
		kind string
		f    Factory
	}{
		{name: "empty_kind", kind: "", f: func(context.Context, Config) (Source, error) { return nil, nil }},
		{name: "nil_factory", kind: "fake-nil"},
		{name: "duplicate", kind: "fake-dup", f: func(context.Context, Config) (Source, error) { return nil, nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("Register(%q) did not panic", tt.kind)
				}
			}()
			Register(tt.kind, tt.f)
		})
	}
}

func TestBuild(t *testing.T) {
	tb, err := Build([]string{"id", "amt", "ccy"}, [][]any{
		{[]byte("1"), float32(1.5), []byte("EUR")},
		{[]byte("2"), nil, nil},
	})
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	id, _ := tb.Column("id")
	if id.Kind != table.KindNumeric || !reflect.DeepEqual(id.Values, []any{int64(1), int64(2)}) {
		t.Fatalf("id=%v kind=%v, want bytes inferred to ints", id.Values, id.Kind)
	}
	amt, _ := tb.Column("amt")
	if amt.Values[0] != 1.5 {
		t.Fatalf("amt=%v", amt.Values)
	}
	ccy, _ := tb.Column("ccy")
	if ccy.Kind != table.KindObject || ccy.Values[0] != "EUR" {
		t.Fatalf("ccy=%v", ccy.Values)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want any
	}{
		{in: []byte("x"), want: "x"},
		{in: int(3), want: int64(3)},
		{in: int32(3), want: int64(3)},
		{in: int16(3), want: int64(3)},
		{in: int8(3), want: int64(3)},
		{in: float32(0.5), want: 0.5},
		{in: "s", want: "s"},
		{in: nil, want: nil},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%#v)=%#v, want %#v", tt.in, got, tt.want)
		}
	}
}
