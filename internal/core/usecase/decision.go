package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkuhn/sortmeister/internal/core/domain"
	"github.com/mkuhn/sortmeister/internal/core/ports"
)

// RecordDecisionUseCase appends one confirmed placement to the history store
// and publishes a retrain event. The write path stays cheap: the actual refit
// happens asynchronously in the worker.
type RecordDecisionUseCase struct {
	extractor ports.FeatureExtractor
	history   ports.HistoryStore
	tree      ports.FolderTree
	queue     ports.DecisionQueue
	cache     ports.CacheStore
}

func NewRecordDecisionUseCase(
	extractor ports.FeatureExtractor,
	history ports.HistoryStore,
	tree ports.FolderTree,
	queue ports.DecisionQueue,
	cache ports.CacheStore,
) *RecordDecisionUseCase {
	return &RecordDecisionUseCase{
		extractor: extractor,
		history:   history,
		tree:      tree,
		queue:     queue,
		cache:     cache,
	}
}

func (uc *RecordDecisionUseCase) RecordDecision(ctx context.Context, identity, chosenPath, chosenName string, source domain.DecisionSource) error {
	if chosenPath == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record decision", fmt.Errorf("empty destination path"))
	}

	features, err := uc.loadFeatures(ctx, identity)
	if err != nil {
		return err
	}

	if err := uc.ensureDestination(ctx, chosenPath); err != nil {
		return err
	}

	record := domain.HistoryRecord{
		ID:          uuid.NewString(),
		Fingerprint: features.Fingerprint,
		Features:    features,
		Destination: chosenPath,
		ChosenName:  chosenName,
		Source:      source,
		RecordedAt:  time.Now().UTC(),
	}
	if err := uc.history.Append(ctx, record); err != nil {
		return fmt.Errorf("append history record: %w", err)
	}

	if err := uc.queue.PublishDecisionRecorded(ctx, record.ID); err != nil {
		return fmt.Errorf("publish decision event: %w", err)
	}
	return nil
}

// loadFeatures prefers the cached analysis for the document so the decision
// snapshot matches what the user was shown.
func (uc *RecordDecisionUseCase) loadFeatures(ctx context.Context, identity string) (domain.DocumentFeatures, error) {
	fingerprint, err := uc.extractor.Fingerprint(ctx, identity)
	if err != nil {
		return domain.DocumentFeatures{}, domain.WrapError(domain.ErrDocumentNotFound, "fingerprint document", err)
	}
	if entry, err := uc.cache.Get(ctx, fingerprint); err == nil && entry != nil && entry.State == domain.AnalysisReady {
		return entry.Features, nil
	}

	features, err := uc.extractor.Extract(ctx, identity)
	if err != nil {
		return domain.DocumentFeatures{}, fmt.Errorf("extract features: %w", err)
	}
	return features, nil
}

// ensureDestination creates any missing trailing folders so the invariant
// holds that every recorded destination resolves to a real path.
func (uc *RecordDecisionUseCase) ensureDestination(ctx context.Context, chosenPath string) error {
	root, err := uc.tree.CurrentTree(ctx)
	if err != nil {
		return fmt.Errorf("load folder tree: %w", err)
	}
	segments := domain.SplitPath(chosenPath)
	node, matched := root.Resolve(segments)
	for i := matched; i < len(segments); i++ {
		if err := uc.tree.CreateSubfolder(ctx, node.Path(), segments[i]); err != nil {
			return fmt.Errorf("create subfolder %q: %w", segments[i], err)
		}
		child := &domain.FolderNode{Name: segments[i], Parent: node}
		node.Children = append(node.Children, child)
		node = child
	}
	return nil
}
