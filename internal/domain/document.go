package domain

import (
	"fmt"
	"strings"
	"time"
)

// DocumentType represents the category of an ingested document
type DocumentType string

const (
	DocumentTypeCV          DocumentType = "cv"
	DocumentTypeCoverLetter DocumentType = "cover_letter"
	DocumentTypeLinkedIn    DocumentType = "linkedin"
	DocumentTypeOther       DocumentType = "other"
)

// DocumentTypes lists every known document type in display order.
var DocumentTypes = []DocumentType{
	DocumentTypeCV,
	DocumentTypeCoverLetter,
	DocumentTypeLinkedIn,
	DocumentTypeOther,
}

// DateSource records which resolver produced a document's canonical date
type DateSource string

const (
	DateSourceFilename  DateSource = "filename"
	DateSourceContent   DateSource = "content"
	DateSourceIngestion DateSource = "ingestion"
)

// IndexStatus tracks whether a document's chunks are searchable
type IndexStatus string

const (
	IndexStatusPending IndexStatus = "pending"
	IndexStatusIndexed IndexStatus = "indexed"
	IndexStatusFailed  IndexStatus = "failed"
)

// DefaultManualWeight is the manual multiplier applied when the user has not set one.
const DefaultManualWeight = 1.0

// Document is a user-supplied CV, cover letter, profile or other text.
// The computed weight is deliberately absent: it depends on the current
// time and configuration and is recomputed on every use.
type Document struct {
	ID            string
	Filename      string
	Type          DocumentType
	Company       string
	Content       string
	CanonicalDate time.Time
	DateSource    DateSource
	IngestedAt    time.Time
	ManualWeight  float64
	Style         *StyleProfile
	IndexStatus   IndexStatus
	IndexError    string
	SourceKey     string
	UpdatedAt     time.Time
}

// NewDocument creates a Document with default manual weight and pending index status
func NewDocument(id, filename string, docType DocumentType, content string, ingestedAt time.Time) *Document {
	return &Document{
		ID:           id,
		Filename:     filename,
		Type:         docType,
		Content:      content,
		IngestedAt:   ingestedAt,
		ManualWeight: DefaultManualWeight,
		IndexStatus:  IndexStatusPending,
		UpdatedAt:    ingestedAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}
	if !IsValidDocumentType(d.Type) {
		return fmt.Errorf("document Type is invalid: %s", d.Type)
	}
	if strings.TrimSpace(d.Content) == "" {
		return ErrEmptyContent
	}
	if d.IngestedAt.IsZero() {
		return fmt.Errorf("document IngestedAt is required")
	}
	if d.ManualWeight < 0 {
		return fmt.Errorf("document ManualWeight cannot be negative")
	}
	return nil
}

// IsValidDocumentType checks if a DocumentType is one of the known categories
func IsValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentTypeCV, DocumentTypeCoverLetter, DocumentTypeLinkedIn, DocumentTypeOther:
		return true
	}
	return false
}

var documentTypeAliases = map[string]DocumentType{
	"cv":           DocumentTypeCV,
	"resume":       DocumentTypeCV,
	"cover_letter": DocumentTypeCoverLetter,
	"cover-letter": DocumentTypeCoverLetter,
	"coverletter":  DocumentTypeCoverLetter,
	"linkedin":     DocumentTypeLinkedIn,
	"profile":      DocumentTypeLinkedIn,
	"other":        DocumentTypeOther,
}

// ParseDocumentType maps user and filename spellings onto a DocumentType.
// The boolean is false when the value is not recognised.
func ParseDocumentType(s string) (DocumentType, bool) {
	t, ok := documentTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// Clone returns a copy of the document. The style profile is shared
// because profiles are read-only after extraction.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// IsSearchable reports whether the document's chunks may appear in retrieval.
func (d *Document) IsSearchable() bool {
	return d.IndexStatus == IndexStatusIndexed
}
