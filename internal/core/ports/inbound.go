package ports

import (
	"context"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

// SuggestionService is the caller-facing contract for the suggestion pipeline.
type SuggestionService interface {
	// GetSuggestions serves cached suggestions when available; otherwise it
	// schedules computation at the given priority. Interactive requests block
	// on that single document (bounded by ctx), lower priorities return an
	// explicitly incomplete entry immediately.
	GetSuggestions(ctx context.Context, identity string, priority domain.Priority) (*domain.CacheEntry, error)
	Invalidate(ctx context.Context, identity string) error
}

// DecisionRecorder accepts confirmed user placements.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, identity, chosenPath, chosenName string, source domain.DecisionSource) error
}

// SuggestionEngine produces ranked suggestions for already-extracted features.
type SuggestionEngine interface {
	Suggest(ctx context.Context, features domain.DocumentFeatures) ([]domain.Suggestion, []domain.NameSuggestion, error)
}

// Retrainer rebuilds the learned model from the history corpus.
type Retrainer interface {
	Retrain(ctx context.Context) error
}
