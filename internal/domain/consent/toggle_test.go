package consent

import (
	"context"
	"errors"
	"testing"
)

func TestToggle_Commit(t *testing.T) {
	tg := NewToggle(false)
	v, err := tg.Apply(context.Background(), true, func(context.Context, bool) (bool, error) {
		if !tg.Value() || tg.State() != TogglePending {
			t.Error("value should flip before persistence returns")
		}
		return true, nil
	})
	if err != nil || !v || tg.State() != ToggleCommitted {
		t.Errorf("expected committed true, got %v %v %v", v, err, tg.State())
	}
}

func TestToggle_Rollback(t *testing.T) {
	tg := NewToggle(true)
	boom := errors.New("store down")
	v, err := tg.Apply(context.Background(), false, func(context.Context, bool) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected persistence error, got %v", err)
	}
	if !v || tg.State() != ToggleRolledBack {
		t.Errorf("expected rollback to true, got %v %v", v, tg.State())
	}
}

func TestToggle_PersistedValueWins(t *testing.T) {
	tg := NewToggle(false)
	v, _ := tg.Apply(context.Background(), true, func(context.Context, bool) (bool, error) { return false, nil })
	if v {
		t.Error("persisted value should override the optimistic one")
	}
}

func TestToggle_RejectsConcurrentBegin(t *testing.T) {
	tg := NewToggle(false)
	if err := tg.Begin(true); err != nil {
		t.Fatal(err)
	}
	if err := tg.Begin(false); !errors.Is(err, ErrTogglePending) {
		t.Errorf("expected ErrTogglePending, got %v", err)
	}
	tg.Rollback()
	if tg.Value() {
		t.Error("rollback should restore false")
	}
	tg.Commit(true)
	if tg.Value() || tg.State() != ToggleRolledBack {
		t.Error("commit outside pending must be ignored")
	}
	if ToggleRolledBack.String() != "rolled_back" {
		t.Errorf("unexpected string %q", ToggleRolledBack.String())
	}
}
