package domain

import "time"

// DecisionSource records how the user made a placement decision.
type DecisionSource string

const (
	DecisionDrag       DecisionSource = "drag"
	DecisionDialog     DecisionSource = "dialog"
	DecisionCorrection DecisionSource = "correction"
)

// HistoryRecord is one confirmed placement decision. The history table is
// append-only; it is the complete training corpus, so the classifier model
// must always be rebuildable from these records alone.
type HistoryRecord struct {
	ID          string           `json:"id"`
	Fingerprint string           `json:"fingerprint"`
	Features    DocumentFeatures `json:"features"`
	Destination string           `json:"destination"`
	ChosenName  string           `json:"chosen_name"`
	Source      DecisionSource   `json:"source"`
	RecordedAt  time.Time        `json:"recorded_at"`
}

// FolderStats summarizes historical usage of one destination path.
type FolderStats struct {
	Path     string    `json:"path"`
	UseCount int       `json:"use_count"`
	LastUsed time.Time `json:"last_used"`
}
