package domain

import "time"

// AnalysisState tracks the lifecycle of a cached document analysis.
type AnalysisState string

const (
	AnalysisPending AnalysisState = "pending"
	AnalysisReady   AnalysisState = "ready"
	AnalysisFailed  AnalysisState = "failed"
)

// Priority orders analysis work. Lower values run first.
type Priority int

const (
	PriorityInteractive  Priority = 1
	PriorityPrefetchNear Priority = 5
	PriorityBackground   Priority = 10
)

func (p Priority) String() string {
	switch p {
	case PriorityInteractive:
		return "interactive"
	case PriorityPrefetchNear:
		return "prefetch-near"
	case PriorityBackground:
		return "prefetch-background"
	default:
		return "unknown"
	}
}

// DateCandidate is one date found in a document, ordered by extraction confidence.
type DateCandidate struct {
	Date       time.Time `json:"date"`
	Confidence float64   `json:"confidence"`
}

// DocumentFeatures is the immutable analysis output for one document version.
// The fingerprint is content-derived; renaming or moving the file does not
// change it, editing the content does.
type DocumentFeatures struct {
	Fingerprint string          `json:"fingerprint"`
	Filename    string          `json:"filename"`
	Text        string          `json:"text"`
	Keywords    []string        `json:"keywords,omitempty"`
	Dates       []DateCandidate `json:"dates,omitempty"`
	Companies   []string        `json:"companies,omitempty"`
	FileDate    time.Time       `json:"file_date"`
}

// BestDate returns the highest-confidence date candidate, if any.
func (f DocumentFeatures) BestDate() (time.Time, bool) {
	if len(f.Dates) == 0 {
		return time.Time{}, false
	}
	return f.Dates[0].Date, true
}

// CacheEntry is one persisted analysis result, keyed by fingerprint.
type CacheEntry struct {
	Fingerprint  string           `json:"fingerprint"`
	Features     DocumentFeatures `json:"features"`
	Suggestions  []Suggestion     `json:"suggestions,omitempty"`
	Names        []NameSuggestion `json:"names,omitempty"`
	State        AnalysisState    `json:"state"`
	Priority     Priority         `json:"priority"`
	Error        string           `json:"error,omitempty"`
	ComputedAt   time.Time        `json:"computed_at"`
	LastAccessed time.Time        `json:"last_accessed"`
}

// Partial reports whether the entry may be served only as an explicitly
// incomplete result.
func (e *CacheEntry) Partial() bool {
	return e.State != AnalysisReady
}
