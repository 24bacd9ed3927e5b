package fhir

import (
	"time"
)

// Resource is implemented by every resource kind the portal exports. The set
// is closed: only the types declared in this package satisfy it.
type Resource interface {
	ResourceType() string
	ResourceID() string
	isResource()
}

type Meta struct {
	VersionID   string     `json:"versionId,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	Source      string     `json:"source,omitempty"`
	Profile     []string   `json:"profile,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Identifier struct {
	Use    string `json:"use,omitempty"`
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`
}

type Quantity struct {
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit,omitempty"`
}

type Annotation struct {
	Text string `json:"text"`
}

type Attachment struct {
	ContentType string `json:"contentType,omitempty"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	Creation    string `json:"creation,omitempty"`
}

// Text builds a CodeableConcept carrying only display text.
func Text(s string) *CodeableConcept {
	if s == "" {
		return nil
	}
	return &CodeableConcept{Text: s}
}

// Patient is the demographic entry of a bundle.
type Patient struct {
	Type      string         `json:"resourceType"`
	ID        string         `json:"id"`
	Meta      *Meta          `json:"meta,omitempty"`
	Name      []HumanName    `json:"name,omitempty"`
	Telecom   []ContactPoint `json:"telecom,omitempty"`
	Gender    string         `json:"gender,omitempty"`
	BirthDate string         `json:"birthDate,omitempty"`
}

// MedicationStatement records a medication the patient is or was taking.
type MedicationStatement struct {
	Type                      string           `json:"resourceType"`
	ID                        string           `json:"id"`
	Meta                      *Meta            `json:"meta,omitempty"`
	Status                    string           `json:"status"`
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
	Subject                   Reference        `json:"subject"`
	EffectiveDateTime         string           `json:"effectiveDateTime,omitempty"`
	Dosage                    []Dosage         `json:"dosage,omitempty"`
	Note                      []Annotation     `json:"note,omitempty"`
}

type Dosage struct {
	Text string `json:"text,omitempty"`
}

// AllergyIntolerance records an allergy or intolerance.
type AllergyIntolerance struct {
	Type           string            `json:"resourceType"`
	ID             string            `json:"id"`
	Meta           *Meta             `json:"meta,omitempty"`
	ClinicalStatus *CodeableConcept  `json:"clinicalStatus,omitempty"`
	Code           *CodeableConcept  `json:"code,omitempty"`
	Patient        Reference         `json:"patient"`
	Criticality    string            `json:"criticality,omitempty"`
	Reaction       []AllergyReaction `json:"reaction,omitempty"`
	RecordedDate   string            `json:"recordedDate,omitempty"`
}

type AllergyReaction struct {
	Manifestation []CodeableConcept `json:"manifestation,omitempty"`
	Severity      string            `json:"severity,omitempty"`
}

// Observation records a lab result or other measurement.
type Observation struct {
	Type              string            `json:"resourceType"`
	ID                string            `json:"id"`
	Meta              *Meta             `json:"meta,omitempty"`
	Status            string            `json:"status"`
	Category          []CodeableConcept `json:"category,omitempty"`
	Code              *CodeableConcept  `json:"code,omitempty"`
	Subject           Reference         `json:"subject"`
	EffectiveDateTime string            `json:"effectiveDateTime,omitempty"`
	ValueQuantity     *Quantity         `json:"valueQuantity,omitempty"`
	ValueString       string            `json:"valueString,omitempty"`
	ReferenceRange    []ReferenceRange  `json:"referenceRange,omitempty"`
}

type ReferenceRange struct {
	Text string `json:"text,omitempty"`
}

// Immunization records an administered vaccine.
type Immunization struct {
	Type               string           `json:"resourceType"`
	ID                 string           `json:"id"`
	Meta               *Meta            `json:"meta,omitempty"`
	Status             string           `json:"status"`
	VaccineCode        *CodeableConcept `json:"vaccineCode,omitempty"`
	Patient            Reference        `json:"patient"`
	OccurrenceDateTime string           `json:"occurrenceDateTime,omitempty"`
	LotNumber          string           `json:"lotNumber,omitempty"`
	Performer          []Performer      `json:"performer,omitempty"`
}

type Performer struct {
	Actor Reference `json:"actor"`
}

// DocumentReference points at an uploaded binary.
type DocumentReference struct {
	Type        string               `json:"resourceType"`
	ID          string               `json:"id"`
	Meta        *Meta                `json:"meta,omitempty"`
	Status      string               `json:"status"`
	DocType     *CodeableConcept     `json:"type,omitempty"`
	Subject     Reference            `json:"subject"`
	Date        string               `json:"date,omitempty"`
	Author      []Reference          `json:"author,omitempty"`
	Description string               `json:"description,omitempty"`
	Content     []DocumentAttachment `json:"content"`
}

type DocumentAttachment struct {
	Attachment Attachment `json:"attachment"`
}

func (r *Patient) ResourceType() string             { return "Patient" }
func (r *MedicationStatement) ResourceType() string { return "MedicationStatement" }
func (r *AllergyIntolerance) ResourceType() string  { return "AllergyIntolerance" }
func (r *Observation) ResourceType() string         { return "Observation" }
func (r *Immunization) ResourceType() string        { return "Immunization" }
func (r *DocumentReference) ResourceType() string   { return "DocumentReference" }

func (r *Patient) ResourceID() string             { return r.ID }
func (r *MedicationStatement) ResourceID() string { return r.ID }
func (r *AllergyIntolerance) ResourceID() string  { return r.ID }
func (r *Observation) ResourceID() string         { return r.ID }
func (r *Immunization) ResourceID() string        { return r.ID }
func (r *DocumentReference) ResourceID() string   { return r.ID }

func (*Patient) isResource()             {}
func (*MedicationStatement) isResource() {}
func (*AllergyIntolerance) isResource()  {}
func (*Observation) isResource()         {}
func (*Immunization) isResource()        {}
func (*DocumentReference) isResource()   {}

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return resourceType + "/" + id
}

// PatientReference references the patient identified by an owner identity.
func PatientReference(owner string) Reference {
	return Reference{Reference: FormatReference("Patient", owner), Display: owner}
}

func NewPatient(id string) *Patient { return &Patient{Type: "Patient", ID: id} }

func NewMedicationStatement(id string) *MedicationStatement {
	return &MedicationStatement{Type: "MedicationStatement", ID: id, Status: "active"}
}

func NewAllergyIntolerance(id string) *AllergyIntolerance {
	return &AllergyIntolerance{Type: "AllergyIntolerance", ID: id}
}

func NewObservation(id string) *Observation {
	return &Observation{Type: "Observation", ID: id, Status: "final"}
}

func NewImmunization(id string) *Immunization {
	return &Immunization{Type: "Immunization", ID: id, Status: "completed"}
}

func NewDocumentReference(id string) *DocumentReference {
	return &DocumentReference{Type: "DocumentReference", ID: id, Status: "current"}
}
