package service

import (
	"testing"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		wantDate  time.Time
		hasDate   bool
		wantType  domain.DocumentType
		typeKnown bool
		company   string
	}{
		{
			name:      "canonical",
			filename:  "2024-03-15_Cover-Letter_Acme-Corp.pdf",
			wantDate:  day(2024, 3, 15),
			hasDate:   true,
			wantType:  domain.DocumentTypeCoverLetter,
			typeKnown: true,
			company:   "Acme-Corp",
		},
		{
			name:      "resume alias with underscores in company",
			filename:  "2023-11-02_resume_Big_Co.txt",
			wantDate:  day(2023, 11, 2),
			hasDate:   true,
			wantType:  domain.DocumentTypeCV,
			typeKnown: true,
			company:   "Big_Co",
		},
		{
			name:      "profile maps to linkedin",
			filename:  "2022-01-05_profile.md",
			wantDate:  day(2022, 1, 5),
			hasDate:   true,
			wantType:  domain.DocumentTypeLinkedIn,
			typeKnown: true,
		},
		{
			name:     "embedded iso date",
			filename: "letter-final-2021-06-30.txt",
			wantDate: day(2021, 6, 30),
			hasDate:  true,
		},
		{
			name:     "nothing recognisable",
			filename: "notes.txt",
		},
		{
			name:      "unknown type segment",
			filename:  "2024-01-01_Portfolio_Acme.pdf",
			wantDate:  day(2024, 1, 1),
			hasDate:   true,
			typeKnown: false,
			company:   "Acme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseFilename(tt.filename)
			assert.Equal(t, tt.hasDate, info.HasDate)
			if tt.hasDate {
				assert.True(t, tt.wantDate.Equal(info.Date), "got %v", info.Date)
			}
			assert.Equal(t, tt.typeKnown, info.TypeKnown)
			if tt.typeKnown {
				assert.Equal(t, tt.wantType, info.Type)
			}
			assert.Equal(t, tt.company, info.Company)
		})
	}
}

func TestGenerateFilename(t *testing.T) {
	d := day(2024, 3, 15)

	assert.Equal(t, "2024-03-15_Cover-Letter_Acme-Corp.pdf", GenerateFilename(d, domain.DocumentTypeCoverLetter, "Acme Corp!", ""))
	assert.Equal(t, "2024-03-15_CV.txt", GenerateFilename(d, domain.DocumentTypeCV, "", ".txt"))
	assert.Equal(t, "2024-03-15_Other_X.md", GenerateFilename(d, domain.DocumentType("bogus"), "X", "md"))
	assert.Equal(t, "2024-03-15_LinkedIn.pdf", GenerateFilename(d, domain.DocumentTypeLinkedIn, "!!!", "pdf"))
}

func TestGenerateFilename_RoundTrip(t *testing.T) {
	name := GenerateFilename(day(2020, 2, 29), domain.DocumentTypeCV, "Initech", "pdf")
	info := ParseFilename(name)

	assert.True(t, info.HasDate)
	assert.True(t, day(2020, 2, 29).Equal(info.Date))
	assert.Equal(t, domain.DocumentTypeCV, info.Type)
	assert.Equal(t, "Initech", info.Company)
}
