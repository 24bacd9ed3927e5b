package client

import (
	"context"
	"sync"

	"github.com/phr/phr/internal/domain/consent"
)

// Sharing tracks the displayed sharing flag of each document. A toggle shows
// the new value at once and falls back to the previous one if the server
// rejects it, so no reader sees a value that was never committed.
type Sharing struct {
	c       *Client
	mu      sync.Mutex
	toggles map[string]*consent.Toggle
}

func (c *Client) NewSharing(docs []Document) *Sharing {
	s := &Sharing{c: c, toggles: make(map[string]*consent.Toggle, len(docs))}
	for _, d := range docs {
		s.toggles[d.ID] = consent.NewToggle(d.IsShared)
	}
	return s
}

func (s *Sharing) toggle(id string) *consent.Toggle {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.toggles[id]
	if !ok {
		t = consent.NewToggle(false)
		s.toggles[id] = t
	}
	return t
}

func (s *Sharing) Value(id string) bool { return s.toggle(id).Value() }

func (s *Sharing) State(id string) consent.ToggleState { return s.toggle(id).State() }

// Set requests shared for id and returns the value displayed afterwards.
// consent.ErrTogglePending is returned while an earlier toggle is in flight.
func (s *Sharing) Set(ctx context.Context, id string, shared bool) (bool, error) {
	return s.toggle(id).Apply(ctx, shared, func(ctx context.Context, v bool) (bool, error) {
		st, err := s.c.SetShared(ctx, id, v)
		if err != nil {
			return false, err
		}
		return st.ConsentGiven, nil
	})
}

// Flip inverts the displayed value of id.
func (s *Sharing) Flip(ctx context.Context, id string) (bool, error) {
	return s.Set(ctx, id, !s.Value(id))
}
