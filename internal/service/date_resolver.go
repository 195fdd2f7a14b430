package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/domain"
)

// ResolvedDate is a document's canonical date and where it came from.
type ResolvedDate struct {
	Date   time.Time
	Source domain.DateSource
}

// dateResolver returns ok=false when it cannot produce a date; the next
// resolver in the chain is then consulted.
type dateResolver func(filename, content string) (time.Time, bool)

// dateResolvers is ordered by precedence. Ingestion time is the implicit
// final fallback in ResolveDate.
var dateResolvers = []struct {
	source  domain.DateSource
	resolve dateResolver
}{
	{domain.DateSourceFilename, resolveFilenameDate},
	{domain.DateSourceContent, resolveContentDate},
}

// ResolveDate picks a document's canonical date: filename, then content,
// then the ingestion timestamp. It never fails.
func ResolveDate(filename, content string, ingestedAt time.Time) ResolvedDate {
	for _, r := range dateResolvers {
		if d, ok := r.resolve(filename, content); ok {
			return ResolvedDate{Date: d, Source: r.source}
		}
	}
	return ResolvedDate{Date: ingestedAt, Source: domain.DateSourceIngestion}
}

func resolveFilenameDate(filename, _ string) (time.Time, bool) {
	info := ParseFilename(filename)
	return info.Date, info.HasDate
}

const monthNames = `(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)`

var (
	isoDatePattern      = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	dayMonthYearPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+` + monthNames + `\.?,?\s+(\d{4})\b`)
	monthDayYearPattern = regexp.MustCompile(`(?i)\b` + monthNames + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	slashDatePattern    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
)

type contentDateMatcher struct {
	pattern *regexp.Regexp
	build   func(groups []string) (time.Time, bool)
}

var contentDateMatchers = []contentDateMatcher{
	{isoDatePattern, func(g []string) (time.Time, bool) {
		return buildDate(atoi(g[1]), atoi(g[2]), atoi(g[3]))
	}},
	{dayMonthYearPattern, func(g []string) (time.Time, bool) {
		return buildDate(atoi(g[3]), monthNumber(g[2]), atoi(g[1]))
	}},
	{monthDayYearPattern, func(g []string) (time.Time, bool) {
		return buildDate(atoi(g[3]), monthNumber(g[1]), atoi(g[2]))
	}},
	{slashDatePattern, func(g []string) (time.Time, bool) {
		// day-first, falling back to month-first when the day-first reading is impossible
		if d, ok := buildDate(atoi(g[3]), atoi(g[2]), atoi(g[1])); ok {
			return d, true
		}
		return buildDate(atoi(g[3]), atoi(g[1]), atoi(g[2]))
	}},
}

// resolveContentDate returns the earliest-positioned valid date in the text.
func resolveContentDate(_, content string) (time.Time, bool) {
	bestPos := -1
	var best time.Time
	for _, m := range contentDateMatchers {
		for _, idx := range m.pattern.FindAllStringSubmatchIndex(content, -1) {
			if bestPos >= 0 && idx[0] >= bestPos {
				break
			}
			groups := make([]string, len(idx)/2)
			for i := range groups {
				if idx[2*i] >= 0 {
					groups[i] = content[idx[2*i]:idx[2*i+1]]
				}
			}
			if d, ok := m.build(groups); ok {
				bestPos, best = idx[0], d
				break
			}
		}
	}
	return best, bestPos >= 0
}

func buildDate(year, month, day int) (time.Time, bool) {
	if year < 1900 || year > 2200 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

func monthNumber(name string) int {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		if name == full || name == full[:3] || (m == time.September && name == "sept") {
			return int(m)
		}
	}
	return 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
