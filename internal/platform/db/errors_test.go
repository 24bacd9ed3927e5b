package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/phr/phr/internal/platform/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, apperr.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("get: %w", pgx.ErrNoRows), apperr.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, apperr.ErrConflict},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, apperr.ErrStoreUnavailable},
		{"connection failure", &pgconn.PgError{Code: "08006"}, apperr.ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, apperr.ErrStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("Classify(%v) = %v, want wrapping %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("expected nil for nil error")
	}
	orig := &pgconn.PgError{Code: "22P02"}
	if got := Classify(orig); got != error(orig) {
		t.Errorf("expected unrelated error unchanged, got %v", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Error("expected wrapped 23505 to be a unique violation")
	}
	if IsUniqueViolation(errors.New("23505")) {
		t.Error("plain error should not be a unique violation")
	}
}

func TestNopTransactor(t *testing.T) {
	called := false
	err := NopTransactor{}.InTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("expected fn to run without error, called=%v err=%v", called, err)
	}

	want := errors.New("rollback me")
	if got := (NopTransactor{}).InTx(context.Background(), func(context.Context) error { return want }); got != want {
		t.Errorf("expected fn error to propagate, got %v", got)
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if TxFromContext(context.Background()) != nil {
		t.Error("expected nil transaction on bare context")
	}
}
