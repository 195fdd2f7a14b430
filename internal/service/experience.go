package service

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cloo-solutions/coverdraft/internal/domain"
)

const monthYear = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{4}`

var (
	experienceHeaders = []*regexp.Regexp{
		regexp.MustCompile(`(?i)work\s+experience`),
		regexp.MustCompile(`(?i)employment\s+history`),
		regexp.MustCompile(`(?i)professional\s+experience`),
		regexp.MustCompile(`(?i)career\s+history`),
		regexp.MustCompile(`(?i)job\s+history`),
	}
	// An all-caps line such as "EDUCATION" ends the experience section.
	nextSection = regexp.MustCompile(`\n[ \t]*[A-Z][A-Z \t]+\n`)

	dateRanges = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(` + monthYear + `)\s*(?:[-–—]|to)\s*(` + monthYear + `|present|current|now)\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2}/\d{4})\s*(?:[-–—]|to)\s*(\d{1,2}/\d{4}|present|current|now)\b`),
		regexp.MustCompile(`(?i)\b(\d{4})\s*(?:[-–—]|to)\s*(\d{4}|present|current|now)\b`),
	}

	titleKeyword = regexp.MustCompile(`(?:[A-Z][A-Za-z/&\-]*\s+)*(?:Engineer|Developer|Manager|Director|Lead|Analyst|Consultant|Specialist|Architect|Designer|Scientist|Administrator)\b`)
	titleAtCompany = regexp.MustCompile(`^([A-Z][A-Za-z/&\- ]+?)\s+(?:at|@)\s+(\S.*)$`)
)

// ExtractExperiences finds dated positions in CV text. A line holding a date
// range opens a position; the first line after it that looks like a job
// title fills in title and company. Only the experience section is scanned
// when a known heading is present.
func ExtractExperiences(content string) []domain.Experience {
	section := experienceSection(strings.ReplaceAll(content, "\r\n", "\n"))

	var out []domain.Experience
	var cur *domain.Experience
	for _, raw := range strings.Split(section, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if start, end, loc, ok := matchDateRange(line); ok {
			if cur != nil {
				out = append(out, *cur)
			}
			cur = &domain.Experience{StartDate: start}
			if isOngoing(end) {
				cur.Current = true
			} else {
				cur.EndDate = end
			}
			line = strings.TrimSpace(line[:loc[0]] + " " + line[loc[1]:])
		}
		if cur != nil && cur.Title == "" {
			cur.Title, cur.Company = parseTitleLine(line)
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

func experienceSection(content string) string {
	for _, h := range experienceHeaders {
		loc := h.FindStringIndex(content)
		if loc == nil {
			continue
		}
		rest := content[loc[1]:]
		if next := nextSection.FindStringIndex(rest); next != nil {
			return rest[:next[0]]
		}
		return rest
	}
	return content
}

func matchDateRange(line string) (start, end string, loc []int, ok bool) {
	for _, re := range dateRanges {
		m := re.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		return line[m[2]:m[3]], line[m[4]:m[5]], m[:2], true
	}
	return "", "", nil, false
}

func isOngoing(end string) bool {
	switch strings.ToLower(end) {
	case "present", "current", "now":
		return true
	}
	return false
}

// parseTitleLine reads "Title at Company", "Title, Company", "Title | Company"
// or a bare title.
func parseTitleLine(line string) (title, company string) {
	line = strings.Trim(line, " \t|,-–—:")
	if m := titleAtCompany.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), strings.Trim(m[2], " \t|,")
	}
	for _, sep := range []string{" | ", ", ", " - ", " – "} {
		left, right, found := strings.Cut(line, sep)
		if !found {
			continue
		}
		if t := titleKeyword.FindString(left); t != "" {
			return strings.TrimSpace(t), strings.TrimSpace(right)
		}
		if t := titleKeyword.FindString(right); t != "" {
			return strings.TrimSpace(t), strings.TrimSpace(left)
		}
	}
	return strings.TrimSpace(titleKeyword.FindString(line)), ""
}

// WeightedExperiences extracts positions from every CV, newest CV first.
// The same position listed in several CVs is kept once, with the weight of
// the newest CV that lists it.
func WeightedExperiences(docs []*domain.Document) []domain.Experience {
	cvs := make([]*domain.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil && d.Type == domain.DocumentTypeCV {
			cvs = append(cvs, d)
		}
	}
	sort.SliceStable(cvs, func(i, j int) bool {
		a, b := cvs[i], cvs[j]
		if !a.CanonicalDate.Equal(b.CanonicalDate) {
			return a.CanonicalDate.After(b.CanonicalDate)
		}
		if !a.IngestedAt.Equal(b.IngestedAt) {
			return a.IngestedAt.After(b.IngestedAt)
		}
		return a.ID < b.ID
	})

	n := len(cvs)
	seen := map[string]bool{}
	out := []domain.Experience{}
	for i, d := range cvs {
		w := float64(max(1, n-i))
		for _, e := range ExtractExperiences(d.Content) {
			key := strings.ToLower(e.Title + "\x00" + e.Company + "\x00" + e.StartDate)
			if seen[key] {
				continue
			}
			seen[key] = true
			e.DocumentID = d.ID
			e.Weight = w
			out = append(out, e)
		}
	}
	return out
}
