package domain

import (
	"sort"
	"time"
)

// SuggestionSource identifies which scorer produced a suggestion.
type SuggestionSource string

const (
	SourceLocal    SuggestionSource = "local"
	SourceExternal SuggestionSource = "external"
	SourceMerged   SuggestionSource = "merged"
	SourceFallback SuggestionSource = "fallback"
)

// NameSuggestion is a proposed file name with its own confidence.
type NameSuggestion struct {
	Filename   string           `json:"filename"`
	Confidence float64          `json:"confidence"`
	Source     SuggestionSource `json:"source"`
	Reason     string           `json:"reason,omitempty"`
}

// Suggestion is one ranked destination proposal. Path is relative to a
// configured root, folder names joined by "/".
type Suggestion struct {
	Path         string           `json:"path"`
	Confidence   float64          `json:"confidence"`
	Source       SuggestionSource `json:"source"`
	Reason       string           `json:"reason,omitempty"`
	AncestorOnly bool             `json:"ancestor_only,omitempty"`
	NewSubfolder bool             `json:"new_subfolder,omitempty"`
	Name         *NameSuggestion  `json:"name,omitempty"`
}

// SortSuggestions orders by confidence descending; ties go to the most
// recently used destination per lastUsed.
func SortSuggestions(suggestions []Suggestion, lastUsed map[string]time.Time) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return lastUsed[suggestions[i].Path].After(lastUsed[suggestions[j].Path])
	})
}

// ClampConfidence bounds a score to [0, 1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
