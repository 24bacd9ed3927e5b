package bundle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"

	"github.com/phr/phr/internal/platform/fhir"
)

var ErrTooLargeForQR = errors.New("bundle too large to encode as a QR code")

const qrSize = 512

// JSON renders the bundle pretty-printed.
func JSON(b *fhir.Bundle) ([]byte, error) {
	return b.MarshalPretty()
}

// RecordJSON renders a single resource pretty-printed.
func RecordJSON(r fhir.Resource) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// QR encodes the compact bundle JSON as a PNG QR code at recovery level M.
// JSON always contains lower-case characters, so the encoder picks byte mode.
func QR(b *fhir.Bundle) ([]byte, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(string(payload), qrcode.Medium, qrSize)
	if err != nil {
		if strings.Contains(err.Error(), "too long") {
			return nil, fmt.Errorf("%d bytes: %w", len(payload), ErrTooLargeForQR)
		}
		return nil, err
	}
	return png, nil
}

const pdfInstructions = "This summary was generated from your personal health record. " +
	"Share it only with people you trust. Bring it to appointments and ask your " +
	"provider to review medications and allergies with you. It is not a substitute " +
	"for professional medical advice."

// PDF writes a printable summary: title, generation date, summary counts,
// bundle metadata, then medications, allergies, observations and
// immunizations, static instructions, and a "Page N of M" footer.
func PDF(w io.Writer, b *fhir.Bundle, owner string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Health Record Summary", true)
	pdf.SetAuthor("phr", true)
	pdf.SetCreationDate(b.Timestamp)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Health Record Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Patient: "+owner), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Generated: "+b.Timestamp.Format(time.RFC1123), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	counts := b.CountByType()
	heading(pdf, "Summary")
	for _, t := range sortedKeys(counts) {
		pdf.CellFormat(0, 6, fmt.Sprintf("%s: %d", t, counts[t]), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Total entries: %d", b.Total), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	heading(pdf, "Bundle")
	pdf.CellFormat(0, 6, "Type: "+b.Type, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Timestamp: "+b.Timestamp.Format(time.RFC3339), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	sections := []struct {
		title string
		kind  string
	}{
		{"Medications", "MedicationStatement"},
		{"Allergies", "AllergyIntolerance"},
		{"Observations", "Observation"},
		{"Immunizations", "Immunization"},
	}
	for _, s := range sections {
		heading(pdf, s.title)
		lines := 0
		for _, e := range b.Entry {
			if e.Resource.ResourceType() != s.kind {
				continue
			}
			pdf.MultiCell(0, 5, tr("- "+describe(e.Resource)), "", "L", false)
			lines++
		}
		if lines == 0 {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.CellFormat(0, 6, "None recorded", "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
		}
		pdf.Ln(2)
	}

	heading(pdf, "Instructions")
	pdf.MultiCell(0, 5, pdfInstructions, "", "L", false)

	return pdf.Output(w)
}

// PDFBytes is PDF into a buffer.
func PDFBytes(b *fhir.Bundle, owner string) ([]byte, error) {
	var buf bytes.Buffer
	if err := PDF(&buf, b, owner); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func heading(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, title, "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func conceptText(c *fhir.CodeableConcept) string {
	if c == nil {
		return ""
	}
	return c.Text
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// describe renders one resource as a single human-readable line.
func describe(r fhir.Resource) string {
	switch v := r.(type) {
	case *fhir.MedicationStatement:
		var dose string
		if len(v.Dosage) > 0 {
			dose = v.Dosage[0].Text
		}
		return joinNonEmpty(conceptText(v.MedicationCodeableConcept), dose, v.EffectiveDateTime)
	case *fhir.AllergyIntolerance:
		var reaction, severity string
		if len(v.Reaction) > 0 {
			severity = v.Reaction[0].Severity
			if len(v.Reaction[0].Manifestation) > 0 {
				reaction = v.Reaction[0].Manifestation[0].Text
			}
		}
		return joinNonEmpty(conceptText(v.Code), reaction, severity)
	case *fhir.Observation:
		value := v.ValueString
		if v.ValueQuantity != nil && v.ValueQuantity.Value != nil {
			value = strings.TrimSpace(fmt.Sprintf("%g %s", *v.ValueQuantity.Value, v.ValueQuantity.Unit))
		}
		return joinNonEmpty(conceptText(v.Code), value, v.EffectiveDateTime)
	case *fhir.Immunization:
		return joinNonEmpty(conceptText(v.VaccineCode), v.OccurrenceDateTime, v.LotNumber)
	}
	return r.ResourceType() + "/" + r.ResourceID()
}
