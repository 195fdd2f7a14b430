package domain

// Experience is one position found in a CV. Weight ranks the CV it came
// from: with n CVs ordered newest first, the CV at position i carries
// max(1, n-i), so the most recent CV weighs most.
type Experience struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title,omitempty"`
	Company    string  `json:"company,omitempty"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date,omitempty"`
	Current    bool    `json:"current"`
	Weight     float64 `json:"weight"`
}
