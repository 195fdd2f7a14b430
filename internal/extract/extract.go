// Package extract turns uploaded files into plain text.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/ledongthuc/pdf"
)

// SupportedExtensions lists the file extensions Text accepts.
var SupportedExtensions = []string{".txt", ".md", ".markdown", ".csv", ".pdf"}

// Text extracts the textual content of a file. The format is chosen from
// the filename extension, falling back to the content type.
func Text(filename, contentType string, data []byte) (string, error) {
	switch format(filename, contentType) {
	case "text":
		return normalize(string(data)), nil
	case "pdf":
		return pdfText(data)
	default:
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "unsupported document format",
			fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Ext(filename)))
	}
}

// IsSupported reports whether Text can read the file.
func IsSupported(filename, contentType string) bool {
	return format(filename, contentType) != ""
}

func format(filename, contentType string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".csv":
		return "text"
	case ".pdf":
		return "pdf"
	case "":
		// fall through to content type
	default:
		return ""
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "text/"):
		return "text"
	case ct == "application/pdf":
		return "pdf"
	}
	return ""
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "unreadable pdf", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "unreadable pdf", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return normalize(buf.String()), nil
}

func normalize(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}
