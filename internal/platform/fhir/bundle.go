package fhir

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Timestamp    time.Time     `json:"timestamp"`
	Total        int           `json:"total"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleEntry struct {
	FullURL  string   `json:"fullUrl"`
	Resource Resource `json:"resource"`
}

// NewCollectionBundle wraps resources, in order, into a collection bundle.
// Total is derived from the entry slice so the two cannot disagree.
func NewCollectionBundle(resources []Resource, now time.Time) *Bundle {
	entries := make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		if r == nil {
			continue
		}
		entries = append(entries, BundleEntry{
			FullURL:  FullURL(r),
			Resource: r,
		})
	}
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "collection",
		Timestamp:    now.UTC(),
		Total:        len(entries),
		Entry:        entries,
	}
}

// FullURL builds the urn-style fullUrl used for bundle entries.
func FullURL(r Resource) string {
	return fmt.Sprintf("urn:uuid:%s", r.ResourceID())
}

// CountByType returns how many entries of each resource type the bundle holds.
func (b *Bundle) CountByType() map[string]int {
	counts := make(map[string]int)
	for _, e := range b.Entry {
		counts[e.Resource.ResourceType()]++
	}
	return counts
}

// MarshalPretty encodes the bundle as indented JSON.
func (b *Bundle) MarshalPretty() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}
