// Package documents manages uploaded health-record files: their metadata
// rows, the stored binaries, and the records derived from them.
package documents

import (
	"path"
	"strings"
	"time"

	"github.com/phr/phr/internal/domain/clinical"
)

// Document is an uploaded file. DocumentType is always supplied by the
// uploader. IsShared is read from the consent ledger, never stored here.
type Document struct {
	ID            string    `json:"id"`
	OwnerIdentity string    `json:"owner_identity"`
	FilePath      string    `json:"file_path"`
	FileName      string    `json:"file_name"`
	DocumentType  string    `json:"document_type"`
	ProviderName  *string   `json:"provider_name,omitempty"`
	UploadedAt    time.Time `json:"uploaded_at"`
	IsShared      bool      `json:"is_shared"`
}

// ObjectPath builds the unique storage path <owner>/<id>-<fileName>.
func ObjectPath(owner, id, fileName string) string {
	return owner + "/" + id + "-" + SafeFileName(fileName)
}

// SafeFileName strips directories and characters that cannot appear in an
// object path segment.
func SafeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '/' {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}

type UploadInput struct {
	Owner        string
	FileName     string
	DocumentType string
	ProviderName string
}

// ParsedDocumentType is recorded for parsed uploads that name no type.
const ParsedDocumentType = "parsed_record"

// ParsedContent is what the extraction pipeline found in one document.
type ParsedContent struct {
	Provider string `json:"provider"`
	clinical.Derived
}

// ParsedRecord is a document already processed by the extraction pipeline.
// TargetPatientEmail owns the record; UserEmail, when it names someone other
// than the patient, is the provider the record is shared with.
type ParsedRecord struct {
	TargetPatientEmail string        `json:"targetPatientEmail"`
	UserEmail          string        `json:"userEmail,omitempty"`
	Parsed             ParsedContent `json:"parsed"`
	FileName           string        `json:"fileName"`
	FilePath           string        `json:"filePath"`
	DocumentType       string        `json:"documentType,omitempty"`
}

type IngestResult struct {
	Document *Document `json:"document"`
	Derived  int       `json:"derived_rows"`
}
