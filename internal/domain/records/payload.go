package records

import (
	"encoding/json"
	"fmt"
)

// Category payloads. Fields mirror what the portal's manual-entry forms and
// the document parser produce.

type PatientPayload struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type MedicationPayload struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type AllergyPayload struct {
	Allergen string `json:"allergen"`
	Reaction string `json:"reaction,omitempty"`
	Severity string `json:"severity,omitempty"`
}

type ObservationPayload struct {
	TestName       string `json:"test_name"`
	Value          string `json:"value,omitempty"`
	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"reference_range,omitempty"`
	Date           string `json:"date,omitempty"`
}

type ImmunizationPayload struct {
	Vaccine   string `json:"vaccine"`
	Date      string `json:"date,omitempty"`
	LotNumber string `json:"lot_number,omitempty"`
	Provider  string `json:"provider,omitempty"`
}

type DocumentPayload struct {
	Title        string `json:"title"`
	DocumentType string `json:"document_type,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
	Date         string `json:"date,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// Decode unmarshals a record payload into T.
func Decode[T any](r *ClinicalRecord) (T, error) {
	var out T
	if len(r.Payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(r.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s payload of record %s: %w", r.Category, r.ID, err)
	}
	return out, nil
}

// Encode marshals v as a record payload.
func Encode(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}
