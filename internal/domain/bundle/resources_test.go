package bundle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phr/phr/internal/domain/records"
	"github.com/phr/phr/internal/platform/fhir"
)

func rec(cat records.Category, payload string) *records.ClinicalRecord {
	return &records.ClinicalRecord{ID: "r1", OwnerIdentity: owner, Category: cat, Payload: json.RawMessage(payload)}
}

func TestResourceFromRecord(t *testing.T) {
	tests := []struct {
		cat      records.Category
		payload  string
		wantType string
	}{
		{records.CategoryPatient, `{"name":"Alice Liddell"}`, "Patient"},
		{records.CategoryMedication, `{"name":"Metformin"}`, "MedicationStatement"},
		{records.CategoryAllergy, `{"allergen":"Latex"}`, "AllergyIntolerance"},
		{records.CategoryObservation, `{"test_name":"LDL"}`, "Observation"},
		{records.CategoryImmunization, `{"vaccine":"MMR"}`, "Immunization"},
		{records.CategoryDocument, `{"title":"Scan"}`, "DocumentReference"},
	}
	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			res, err := ResourceFromRecord(rec(tt.cat, tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, res.ResourceType())
			assert.Equal(t, "r1", res.ResourceID())

			raw, err := json.Marshal(res)
			require.NoError(t, err)
			assert.Contains(t, string(raw), `"resourceType":"`+tt.wantType+`"`)
		})
	}
}

func TestResourceFromRecord_Errors(t *testing.T) {
	_, err := ResourceFromRecord(rec("vitals", `{}`))
	assert.Error(t, err)

	_, err = ResourceFromRecord(rec(records.CategoryMedication, `{"name":`))
	assert.Error(t, err)
}

func TestResourceFromRecord_Details(t *testing.T) {
	res, err := ResourceFromRecord(rec(records.CategoryPatient, `{"name":"Alice P Liddell","gender":"Female","email":"a@x.io"}`))
	require.NoError(t, err)
	p := res.(*fhir.Patient)
	assert.Equal(t, "Liddell", p.Name[0].Family)
	assert.Equal(t, []string{"Alice", "P"}, p.Name[0].Given)
	assert.Equal(t, "female", p.Gender)

	res, _ = ResourceFromRecord(rec(records.CategoryObservation, `{"test_name":"HbA1c","value":"6.1","unit":"%"}`))
	obs := res.(*fhir.Observation)
	require.NotNil(t, obs.ValueQuantity)
	assert.InDelta(t, 6.1, *obs.ValueQuantity.Value, 1e-9)

	res, _ = ResourceFromRecord(rec(records.CategoryObservation, `{"test_name":"Culture","value":"negative"}`))
	assert.Equal(t, "negative", res.(*fhir.Observation).ValueString)

	res, _ = ResourceFromRecord(rec(records.CategoryAllergy, `{"allergen":"Bees","severity":"High"}`))
	al := res.(*fhir.AllergyIntolerance)
	assert.Equal(t, "high", al.Criticality)
	assert.Equal(t, "severe", al.Reaction[0].Severity)

	res, _ = ResourceFromRecord(rec(records.CategoryMedication, `{"name":"Aspirin","dosage":"81mg","frequency":"daily"}`))
	assert.Equal(t, "81mg daily", res.(*fhir.MedicationStatement).Dosage[0].Text)
	assert.Equal(t, "Patient/"+owner, res.(*fhir.MedicationStatement).Subject.Reference)
}
