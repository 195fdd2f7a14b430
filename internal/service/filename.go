package service

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/domain"
)

// FilenameInfo is what can be read from a "YYYY-MM-DD_Type_Company.ext" name.
type FilenameInfo struct {
	Date      time.Time
	HasDate   bool
	Type      domain.DocumentType
	TypeKnown bool
	Company   string
}

var filenameDateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"02-01-2006",
	"01-02-2006",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
}

var embeddedISODate = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

// ParseFilename extracts the date, type and company segments of a filename.
// Missing or unparseable segments are simply left unset.
func ParseFilename(filename string) FilenameInfo {
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	parts := strings.Split(name, "_")

	var info FilenameInfo
	if len(parts) >= 2 {
		if d, ok := parseDateLayouts(parts[0], filenameDateLayouts); ok {
			info.Date, info.HasDate = d, true
		}
		info.Type, info.TypeKnown = domain.ParseDocumentType(parts[1])
	}
	if !info.HasDate {
		if m := embeddedISODate.FindString(name); m != "" {
			if d, ok := parseDateLayouts(m, filenameDateLayouts[:1]); ok {
				info.Date, info.HasDate = d, true
			}
		}
	}
	if len(parts) >= 3 {
		info.Company = strings.Join(parts[2:], "_")
	}
	return info
}

func parseDateLayouts(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

var filenameTypeLabels = map[domain.DocumentType]string{
	domain.DocumentTypeCV:          "CV",
	domain.DocumentTypeCoverLetter: "Cover-Letter",
	domain.DocumentTypeLinkedIn:    "LinkedIn",
	domain.DocumentTypeOther:       "Other",
}

var (
	companyStrip = regexp.MustCompile(`[^\w\s-]`)
	companyDash  = regexp.MustCompile(`[-\s]+`)
)

// GenerateFilename builds the canonical "YYYY-MM-DD_Type_Company.ext" name.
func GenerateFilename(date time.Time, docType domain.DocumentType, company, ext string) string {
	label, ok := filenameTypeLabels[docType]
	if !ok {
		label = filenameTypeLabels[domain.DocumentTypeOther]
	}
	if ext == "" {
		ext = "pdf"
	}
	ext = strings.TrimPrefix(ext, ".")

	name := date.Format("2006-01-02") + "_" + label
	if company != "" {
		clean := companyStrip.ReplaceAllString(company, "")
		clean = strings.Trim(companyDash.ReplaceAllString(clean, "-"), "-")
		if clean != "" {
			name += "_" + clean
		}
	}
	return name + "." + ext
}
