package domain

import (
	"fmt"
	"strings"
	"time"
)

// Rating bounds for a saved cover letter. Zero means unrated.
const (
	MinCoverLetterRating = 1
	MaxCoverLetterRating = 5
)

// CoverLetter is a generated letter kept in the history. It is not a
// Document: saved letters never feed style aggregation or retrieval.
type CoverLetter struct {
	ID             string    `json:"id"`
	JobTitle       string    `json:"job_title"`
	Company        string    `json:"company"`
	JobDescription string    `json:"job_description,omitempty"`
	Tone           string    `json:"tone,omitempty"`
	Content        string    `json:"content"`
	Provider       string    `json:"provider"`
	UsedFallback   bool      `json:"used_fallback"`
	DocumentIDs    []string  `json:"document_ids"`
	StyleSourceIDs []string  `json:"style_source_ids"`
	Rating         int       `json:"rating,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewCoverLetter creates an unrated CoverLetter
func NewCoverLetter(id, jobTitle, company, content string, createdAt time.Time) *CoverLetter {
	return &CoverLetter{
		ID:        id,
		JobTitle:  jobTitle,
		Company:   company,
		Content:   content,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// ValidateCoverLetter validates a CoverLetter instance
func ValidateCoverLetter(l *CoverLetter) error {
	if l == nil {
		return fmt.Errorf("cover letter cannot be nil")
	}
	if l.ID == "" {
		return fmt.Errorf("cover letter ID is required")
	}
	if strings.TrimSpace(l.JobTitle) == "" || strings.TrimSpace(l.Company) == "" {
		return ErrMissingRequiredField
	}
	if strings.TrimSpace(l.Content) == "" {
		return ErrEmptyCoverLetter
	}
	if l.Rating != 0 {
		return ValidateRating(l.Rating)
	}
	return nil
}

// ValidateRating accepts ratings from 1 to 5.
func ValidateRating(r int) error {
	if r < MinCoverLetterRating || r > MaxCoverLetterRating {
		return ErrInvalidRating
	}
	return nil
}
