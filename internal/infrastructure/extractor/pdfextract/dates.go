package pdfextract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

// German business documents carry dates in a handful of shapes. Numeric forms
// rank highest, spelled-out month names slightly lower because OCR mangles
// them more often.
var (
	dottedDate  = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)
	slashedDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	isoDate     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	spelledDate = regexp.MustCompile(`\b(\d{1,2})\.?\s+(Januar|Februar|März|April|Mai|Juni|Juli|August|September|Oktober|November|Dezember)\s+(\d{4})\b`)
)

var monthNames = map[string]time.Month{
	"januar":    time.January,
	"februar":   time.February,
	"märz":      time.March,
	"april":     time.April,
	"mai":       time.May,
	"juni":      time.June,
	"juli":      time.July,
	"august":    time.August,
	"september": time.September,
	"oktober":   time.October,
	"november":  time.November,
	"dezember":  time.December,
}

const maxDateCandidates = 10

func detectDates(text string) []domain.DateCandidate {
	seen := make(map[time.Time]float64)

	add := func(year, month, day int, confidence float64) {
		date, ok := makeDate(year, month, day)
		if !ok {
			return
		}
		if prev, exists := seen[date]; !exists || confidence > prev {
			seen[date] = confidence
		}
	}

	for _, m := range dottedDate.FindAllStringSubmatch(text, -1) {
		add(atoi(m[3]), atoi(m[2]), atoi(m[1]), 0.9)
	}
	for _, m := range isoDate.FindAllStringSubmatch(text, -1) {
		add(atoi(m[1]), atoi(m[2]), atoi(m[3]), 0.9)
	}
	for _, m := range slashedDate.FindAllStringSubmatch(text, -1) {
		add(atoi(m[3]), atoi(m[2]), atoi(m[1]), 0.8)
	}
	for _, m := range spelledDate.FindAllStringSubmatch(text, -1) {
		month, ok := monthNames[strings.ToLower(m[2])]
		if !ok {
			continue
		}
		add(atoi(m[3]), int(month), atoi(m[1]), 0.85)
	}

	candidates := make([]domain.DateCandidate, 0, len(seen))
	for date, confidence := range seen {
		candidates = append(candidates, domain.DateCandidate{Date: date, Confidence: confidence})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Date.After(candidates[j].Date)
	})
	if len(candidates) > maxDateCandidates {
		candidates = candidates[:maxDateCandidates]
	}
	return candidates
}

func makeDate(year, month, day int) (time.Time, bool) {
	if year < 1900 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Rejects rolled-over dates such as 31.02.
	if date.Day() != day || date.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return date, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
