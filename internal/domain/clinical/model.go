// Package clinical reads and writes the structured tables populated by the
// record parser: medications, allergies, lab results and immunizations. Rows
// are keyed by patient email and optionally point back at the uploaded
// document they were extracted from.
package clinical

import "time"

type Medication struct {
	ID             string    `json:"id"`
	PatientEmail   string    `json:"patient_email"`
	Name           string    `json:"name"`
	Dosage         string    `json:"dosage,omitempty"`
	Frequency      string    `json:"frequency,omitempty"`
	StartDate      string    `json:"start_date,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	SourceRecordID *string   `json:"source_record_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Allergy struct {
	ID             string    `json:"id"`
	PatientEmail   string    `json:"patient_email"`
	Allergen       string    `json:"allergen"`
	Reaction       string    `json:"reaction,omitempty"`
	Severity       string    `json:"severity,omitempty"`
	SourceRecordID *string   `json:"source_record_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type LabResult struct {
	ID             string    `json:"id"`
	PatientEmail   string    `json:"patient_email"`
	TestName       string    `json:"test_name"`
	Value          string    `json:"value,omitempty"`
	Unit           string    `json:"unit,omitempty"`
	ReferenceRange string    `json:"reference_range,omitempty"`
	TestDate       string    `json:"test_date,omitempty"`
	SourceRecordID *string   `json:"source_record_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Immunization struct {
	ID               string    `json:"id"`
	PatientEmail     string    `json:"patient_email"`
	Vaccine          string    `json:"vaccine"`
	DateAdministered string    `json:"date_administered,omitempty"`
	LotNumber        string    `json:"lot_number,omitempty"`
	Provider         string    `json:"provider,omitempty"`
	SourceRecordID   *string   `json:"source_record_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Derived is the set of rows extracted from one parsed document.
type Derived struct {
	Medications   []Medication   `json:"medications"`
	Allergies     []Allergy      `json:"allergies"`
	LabResults    []LabResult    `json:"lab_results"`
	Immunizations []Immunization `json:"immunizations"`
}

func (d *Derived) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Medications) + len(d.Allergies) + len(d.LabResults) + len(d.Immunizations)
}

// Stamp gives every row a fresh server id and sets its owner and source.
// Ids arriving with the rows are discarded.
func (d *Derived) Stamp(email, sourceRecordID string, now time.Time, newID func() string) {
	src := &sourceRecordID
	if sourceRecordID == "" {
		src = nil
	}
	for i := range d.Medications {
		m := &d.Medications[i]
		m.ID = newID()
		m.PatientEmail, m.SourceRecordID, m.CreatedAt = email, src, now
	}
	for i := range d.Allergies {
		a := &d.Allergies[i]
		a.ID = newID()
		a.PatientEmail, a.SourceRecordID, a.CreatedAt = email, src, now
	}
	for i := range d.LabResults {
		l := &d.LabResults[i]
		l.ID = newID()
		l.PatientEmail, l.SourceRecordID, l.CreatedAt = email, src, now
	}
	for i := range d.Immunizations {
		im := &d.Immunizations[i]
		im.ID = newID()
		im.PatientEmail, im.SourceRecordID, im.CreatedAt = email, src, now
	}
}
