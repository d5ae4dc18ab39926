package ports

import (
	"context"
	"time"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

// FeatureExtractor turns a document identity into analysis features. The
// identity is a storage path; extraction internals (OCR included) are opaque
// to the core.
type FeatureExtractor interface {
	Extract(ctx context.Context, identity string) (domain.DocumentFeatures, error)
	// Fingerprint computes the content-derived identity without a full
	// feature extraction.
	Fingerprint(ctx context.Context, identity string) (string, error)
}

// HistoryStore is the durable, append-only record of confirmed decisions.
type HistoryStore interface {
	Append(ctx context.Context, record domain.HistoryRecord) error
	AllRecords(ctx context.Context) ([]domain.HistoryRecord, error)
	RecordsSince(ctx context.Context, marker time.Time) ([]domain.HistoryRecord, error)
	FolderStats(ctx context.Context) ([]domain.FolderStats, error)
}

// CacheStore persists analysis results across restarts.
type CacheStore interface {
	Get(ctx context.Context, fingerprint string) (*domain.CacheEntry, error)
	Put(ctx context.Context, entry *domain.CacheEntry) error
	Delete(ctx context.Context, fingerprint string) error
	TouchAccess(ctx context.Context, fingerprint string, at time.Time) error
}

// FolderTree exposes the live destination hierarchy.
type FolderTree interface {
	CurrentTree(ctx context.Context) (*domain.FolderNode, error)
	CreateSubfolder(ctx context.Context, parentPath, name string) error
}

// ScoringProvider maps document features to ranked destination and naming
// suggestions. The local classifier and any external reasoning service
// implement the same contract.
type ScoringProvider interface {
	Score(ctx context.Context, features domain.DocumentFeatures, candidates []string) ([]domain.Suggestion, error)
	SuggestName(ctx context.Context, features domain.DocumentFeatures, destination string) (*domain.NameSuggestion, error)
	Available() bool
}

// Trainable is implemented by providers that learn from the history corpus.
type Trainable interface {
	Fit(ctx context.Context, records []domain.HistoryRecord) error
}

// DecisionQueue publishes/consumes decision-recorded events for asynchronous
// retraining.
type DecisionQueue interface {
	PublishDecisionRecorded(ctx context.Context, recordID string) error
	SubscribeDecisionRecorded(ctx context.Context, handler func(context.Context, string) error) error
}
