package records

import (
	"encoding/json"
	"time"
)

type Category string

const (
	CategoryPatient      Category = "patient"
	CategoryMedication   Category = "medication"
	CategoryAllergy      Category = "allergy"
	CategoryImmunization Category = "immunization"
	CategoryObservation  Category = "observation"
	CategoryDocument     Category = "document"
)

// Categories lists every category in bundle order.
var Categories = []Category{
	CategoryPatient,
	CategoryMedication,
	CategoryAllergy,
	CategoryObservation,
	CategoryImmunization,
	CategoryDocument,
}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// ClinicalRecord is one structured fact owned by a patient. Saves replace the
// whole record.
type ClinicalRecord struct {
	ID             string          `json:"id"`
	OwnerIdentity  string          `json:"owner_identity"`
	Category       Category        `json:"category"`
	Payload        json.RawMessage `json:"payload"`
	SourceRecordID *string         `json:"source_record_id,omitempty"`
	DateAdded      time.Time       `json:"date_added"`
	LastModified   time.Time       `json:"last_modified"`
}

func (r *ClinicalRecord) clone() *ClinicalRecord {
	out := *r
	out.Payload = append(json.RawMessage(nil), r.Payload...)
	if r.SourceRecordID != nil {
		src := *r.SourceRecordID
		out.SourceRecordID = &src
	}
	return &out
}

// Stats summarises a patient's records for dashboard display. It is not
// authoritative.
type Stats struct {
	Counts          map[Category]int `json:"counts"`
	TotalRecords    int              `json:"total_records"`
	Documents       int              `json:"documents"`
	SharedDocuments int              `json:"shared_documents"`
	ApproxBytes     int64            `json:"approx_bytes"`
}

func emptyStats() *Stats {
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = 0
	}
	return &Stats{Counts: counts}
}
