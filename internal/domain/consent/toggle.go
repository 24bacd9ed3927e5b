package consent

import (
	"context"
	"errors"
	"sync"
)

// ToggleState is the phase of an optimistic share toggle.
type ToggleState int

const (
	ToggleIdle ToggleState = iota
	TogglePending
	ToggleCommitted
	ToggleRolledBack
)

func (s ToggleState) String() string {
	switch s {
	case ToggleIdle:
		return "idle"
	case TogglePending:
		return "pending"
	case ToggleCommitted:
		return "committed"
	case ToggleRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

var ErrTogglePending = errors.New("consent toggle already in flight")

// Toggle holds the locally displayed sharing flag of one document. Begin
// applies the new value immediately; Commit keeps it and Rollback restores
// the value seen before Begin.
type Toggle struct {
	mu       sync.Mutex
	state    ToggleState
	value    bool
	previous bool
}

func NewToggle(initial bool) *Toggle {
	return &Toggle{value: initial}
}

func (t *Toggle) Value() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

func (t *Toggle) State() ToggleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Toggle) Begin(next bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TogglePending {
		return ErrTogglePending
	}
	t.previous = t.value
	t.value = next
	t.state = TogglePending
	return nil
}

// Commit records the persisted value, which wins over the optimistic one.
func (t *Toggle) Commit(persisted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TogglePending {
		return
	}
	t.value = persisted
	t.state = ToggleCommitted
}

func (t *Toggle) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TogglePending {
		return
	}
	t.value = t.previous
	t.state = ToggleRolledBack
}

// Apply runs Begin, persist, then Commit or Rollback. It returns the value
// displayed afterwards and the persistence error, if any.
func (t *Toggle) Apply(ctx context.Context, next bool, persist func(ctx context.Context, shared bool) (bool, error)) (bool, error) {
	if err := t.Begin(next); err != nil {
		return t.Value(), err
	}
	persisted, err := persist(ctx, next)
	if err != nil {
		t.Rollback()
		return t.Value(), err
	}
	t.Commit(persisted)
	return t.Value(), nil
}
