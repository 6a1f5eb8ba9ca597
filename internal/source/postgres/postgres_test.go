package postgres

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"recon/internal/apperrors"
	"recon/internal/source"
)

func TestConvert(t *testing.T) {
	t.Parallel()

	day := time.Date(2017, 9, 29, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "numeric", in: pgtype.Numeric{Int: big.NewInt(1050), Exp: -2, Valid: true}, want: 10.5},
		{name: "numeric_null", in: pgtype.Numeric{}, want: nil},
		{name: "uuid", in: [16]byte{0x12, 0x3e, 0x45, 0x67, 0xe8, 0x9b, 0x12, 0xd3, 0xa4, 0x56, 0x42, 0x66, 0x14, 0x17, 0x40, 0x00}, want: "123e4567-e89b-12d3-a456-426614174000"},
		{name: "date", in: pgtype.Date{Time: day, Valid: true}, want: day},
		{name: "date_null", in: pgtype.Date{}, want: nil},
		{name: "passthrough", in: int64(7), want: int64(7)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := convert(tt.in); got != tt.want {
				t.Fatalf("convert(%#v)=%#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOpen_BadDSN(t *testing.T) {
	_, err := source.Open(context.Background(), source.Config{Kind: "postgres", DSN: "postgres://%zz"})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("Open() err=%v, want ErrInvalidInput", err)
	}
}
