package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/mkuhn/sortmeister/internal/core/domain"
	"github.com/mkuhn/sortmeister/internal/core/ports"
)

// AnalyzeDocumentUseCase is the extraction+classification pipeline executed
// by the cache scheduler for one document.
type AnalyzeDocumentUseCase struct {
	extractor ports.FeatureExtractor
	engine    ports.SuggestionEngine
}

func NewAnalyzeDocumentUseCase(extractor ports.FeatureExtractor, engine ports.SuggestionEngine) *AnalyzeDocumentUseCase {
	return &AnalyzeDocumentUseCase{extractor: extractor, engine: engine}
}

// Analyze extracts features and produces suggestions. Extraction failure is
// not fatal: the pipeline degrades to file-level metadata and still returns a
// usable entry. Only a missing document aborts.
func (uc *AnalyzeDocumentUseCase) Analyze(ctx context.Context, identity string) (*domain.CacheEntry, error) {
	features, err := uc.extractor.Extract(ctx, identity)
	if err != nil {
		if !domain.IsKind(err, domain.ErrExtractionFailed) {
			return nil, fmt.Errorf("extract %q: %w", identity, err)
		}
		slog.Warn("extraction_degraded", "identity", identity, "error", err)
		features = metadataOnlyFeatures(identity, features)
	}

	suggestions, names, err := uc.engine.Suggest(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("suggest for %q: %w", identity, err)
	}
	if len(suggestions) == 0 && len(names) > 0 {
		// Cold start: no destination, but the naming fallback still applies.
		slog.Debug("destination_cold_start", "identity", identity)
	}

	now := time.Now().UTC()
	return &domain.CacheEntry{
		Fingerprint:  features.Fingerprint,
		Features:     features,
		Suggestions:  suggestions,
		Names:        names,
		State:        domain.AnalysisReady,
		ComputedAt:   now,
		LastAccessed: now,
	}, nil
}

// metadataOnlyFeatures builds fallback features from the file name and date
// when the document content is unreadable.
func metadataOnlyFeatures(identity string, partial domain.DocumentFeatures) domain.DocumentFeatures {
	base := path.Base(identity)
	features := partial
	if features.Filename == "" {
		features.Filename = base
	}
	if features.Text == "" {
		features.Text = strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(strings.TrimSuffix(base, path.Ext(base)))
	}
	return features
}
