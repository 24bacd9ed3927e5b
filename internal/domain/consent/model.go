// Package consent tracks whether a patient has shared an uploaded document
// and with whom. Providers observe only the ConsentGiven flag; SharedWith is
// advisory.
package consent

import (
	"slices"
	"strings"
	"time"
)

type State struct {
	RecordID     string     `json:"record_id"`
	ConsentGiven bool       `json:"consent_given"`
	SharedWith   []string   `json:"shared_with"`
	LastShared   *time.Time `json:"last_shared,omitempty"`
}

// NewState builds the initial row written alongside a new document. A
// non-empty initialGrantee starts the document shared with that grantee.
func NewState(recordID, initialGrantee string, now time.Time) *State {
	s := &State{RecordID: recordID, SharedWith: []string{}}
	if g := NormalizeGrantee(initialGrantee); g != "" {
		s.ConsentGiven = true
		s.SharedWith = []string{g}
		t := now.UTC()
		s.LastShared = &t
	}
	return s
}

// NormalizeGrantee lower-cases and trims a grantee email.
func NormalizeGrantee(g string) string {
	return strings.ToLower(strings.TrimSpace(g))
}

// applyShared is the in-process twin of the SQL UPDATE in repo_pg.go.
func (s *State) applyShared(shared bool, now time.Time) {
	if shared && !s.ConsentGiven && len(s.SharedWith) > 0 {
		t := now.UTC()
		s.LastShared = &t
	}
	s.ConsentGiven = shared
}

func (s *State) addGrantee(g string) {
	if !slices.Contains(s.SharedWith, g) {
		s.SharedWith = append(s.SharedWith, g)
	}
}

func (s *State) removeGrantee(g string) {
	s.SharedWith = slices.DeleteFunc(s.SharedWith, func(v string) bool { return v == g })
}

func (s *State) clone() *State {
	out := *s
	out.SharedWith = append([]string{}, s.SharedWith...)
	if s.LastShared != nil {
		t := *s.LastShared
		out.LastShared = &t
	}
	return &out
}
