package bundle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/phr/phr/internal/domain/clinical"
	"github.com/phr/phr/internal/domain/records"
	"github.com/phr/phr/internal/platform/fhir"
)

// ResourceFromRecord maps a locally stored record to its FHIR resource.
func ResourceFromRecord(r *records.ClinicalRecord) (fhir.Resource, error) {
	subject := fhir.PatientReference(r.OwnerIdentity)
	switch r.Category {
	case records.CategoryPatient:
		p, err := records.Decode[records.PatientPayload](r)
		if err != nil {
			return nil, err
		}
		return patientResource(r.ID, p), nil

	case records.CategoryMedication:
		m, err := records.Decode[records.MedicationPayload](r)
		if err != nil {
			return nil, err
		}
		return medicationResource(r.ID, subject, m), nil

	case records.CategoryAllergy:
		a, err := records.Decode[records.AllergyPayload](r)
		if err != nil {
			return nil, err
		}
		return allergyResource(r.ID, subject, a), nil

	case records.CategoryObservation:
		o, err := records.Decode[records.ObservationPayload](r)
		if err != nil {
			return nil, err
		}
		return observationResource(r.ID, subject, o), nil

	case records.CategoryImmunization:
		im, err := records.Decode[records.ImmunizationPayload](r)
		if err != nil {
			return nil, err
		}
		return immunizationResource(r.ID, subject, im), nil

	case records.CategoryDocument:
		d, err := records.Decode[records.DocumentPayload](r)
		if err != nil {
			return nil, err
		}
		return documentResource(r.ID, subject, d), nil
	}
	return nil, fmt.Errorf("record %s: unsupported category %q", r.ID, r.Category)
}

func patientResource(id string, p records.PatientPayload) *fhir.Patient {
	res := fhir.NewPatient(id)
	if p.Name != "" {
		name := fhir.HumanName{Use: "official", Text: p.Name}
		if parts := strings.Fields(p.Name); len(parts) > 1 {
			name.Family = parts[len(parts)-1]
			name.Given = parts[:len(parts)-1]
		}
		res.Name = []fhir.HumanName{name}
	}
	if p.Email != "" {
		res.Telecom = append(res.Telecom, fhir.ContactPoint{System: "email", Value: p.Email})
	}
	if p.Phone != "" {
		res.Telecom = append(res.Telecom, fhir.ContactPoint{System: "phone", Value: p.Phone})
	}
	res.Gender = strings.ToLower(p.Gender)
	res.BirthDate = p.BirthDate
	return res
}

func medicationResource(id string, subject fhir.Reference, m records.MedicationPayload) *fhir.MedicationStatement {
	res := fhir.NewMedicationStatement(id)
	res.MedicationCodeableConcept = fhir.Text(m.Name)
	res.Subject = subject
	res.EffectiveDateTime = m.StartDate
	if dose := strings.TrimSpace(strings.Join([]string{m.Dosage, m.Frequency}, " ")); dose != "" {
		res.Dosage = []fhir.Dosage{{Text: dose}}
	}
	if m.Notes != "" {
		res.Note = []fhir.Annotation{{Text: m.Notes}}
	}
	return res
}

func allergyResource(id string, subject fhir.Reference, a records.AllergyPayload) *fhir.AllergyIntolerance {
	res := fhir.NewAllergyIntolerance(id)
	res.ClinicalStatus = &fhir.CodeableConcept{Coding: []fhir.Coding{{
		System: "http://terminology.hl7.org/CodeSystem/allergyintolerance-clinical",
		Code:   "active",
	}}}
	res.Code = fhir.Text(a.Allergen)
	res.Patient = subject
	severity := normalizeSeverity(a.Severity)
	if severity == "severe" {
		res.Criticality = "high"
	}
	if a.Reaction != "" || severity != "" {
		r := fhir.AllergyReaction{Severity: severity}
		if a.Reaction != "" {
			r.Manifestation = []fhir.CodeableConcept{{Text: a.Reaction}}
		}
		res.Reaction = []fhir.AllergyReaction{r}
	}
	return res
}

func normalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mild", "low":
		return "mild"
	case "moderate", "medium":
		return "moderate"
	case "severe", "high":
		return "severe"
	}
	return ""
}

func observationResource(id string, subject fhir.Reference, o records.ObservationPayload) *fhir.Observation {
	res := fhir.NewObservation(id)
	res.Category = []fhir.CodeableConcept{{Coding: []fhir.Coding{{
		System: "http://terminology.hl7.org/CodeSystem/observation-category",
		Code:   "laboratory",
	}}}}
	res.Code = fhir.Text(o.TestName)
	res.Subject = subject
	res.EffectiveDateTime = o.Date
	if v, err := strconv.ParseFloat(strings.TrimSpace(o.Value), 64); err == nil {
		res.ValueQuantity = &fhir.Quantity{Value: &v, Unit: o.Unit}
	} else if o.Value != "" {
		res.ValueString = strings.TrimSpace(o.Value + " " + o.Unit)
	}
	if o.ReferenceRange != "" {
		res.ReferenceRange = []fhir.ReferenceRange{{Text: o.ReferenceRange}}
	}
	return res
}

func immunizationResource(id string, subject fhir.Reference, im records.ImmunizationPayload) *fhir.Immunization {
	res := fhir.NewImmunization(id)
	res.VaccineCode = fhir.Text(im.Vaccine)
	res.Patient = subject
	res.OccurrenceDateTime = im.Date
	res.LotNumber = im.LotNumber
	if im.Provider != "" {
		res.Performer = []fhir.Performer{{Actor: fhir.Reference{Display: im.Provider}}}
	}
	return res
}

func documentResource(id string, subject fhir.Reference, d records.DocumentPayload) *fhir.DocumentReference {
	res := fhir.NewDocumentReference(id)
	res.DocType = fhir.Text(d.DocumentType)
	res.Subject = subject
	res.Date = d.Date
	res.Description = d.Title
	if d.ProviderName != "" {
		res.Author = []fhir.Reference{{Display: d.ProviderName}}
	}
	res.Content = []fhir.DocumentAttachment{{Attachment: fhir.Attachment{
		ContentType: d.ContentType,
		URL:         d.FilePath,
		Title:       d.Title,
	}}}
	return res
}

// Remote rows get ids prefixed by their table so they can never collide with
// local record ids.

func remoteMedication(subject fhir.Reference, m clinical.Medication) fhir.Resource {
	return medicationResource("remote-medication-"+m.ID, subject, records.MedicationPayload{
		Name: m.Name, Dosage: m.Dosage, Frequency: m.Frequency, StartDate: m.StartDate, Notes: m.Notes,
	})
}

func remoteAllergy(subject fhir.Reference, a clinical.Allergy) fhir.Resource {
	return allergyResource("remote-allergy-"+a.ID, subject, records.AllergyPayload{
		Allergen: a.Allergen, Reaction: a.Reaction, Severity: a.Severity,
	})
}

func remoteLab(subject fhir.Reference, l clinical.LabResult) fhir.Resource {
	return observationResource("remote-lab-"+l.ID, subject, records.ObservationPayload{
		TestName: l.TestName, Value: l.Value, Unit: l.Unit, ReferenceRange: l.ReferenceRange, Date: l.TestDate,
	})
}

func remoteImmunization(subject fhir.Reference, im clinical.Immunization) fhir.Resource {
	return immunizationResource("remote-immunization-"+im.ID, subject, records.ImmunizationPayload{
		Vaccine: im.Vaccine, Date: im.DateAdministered, LotNumber: im.LotNumber, Provider: im.Provider,
	})
}
