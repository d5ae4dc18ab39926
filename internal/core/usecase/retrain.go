package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mkuhn/sortmeister/internal/core/ports"
)

// RetrainUseCase rebuilds the local classifier from the history corpus. The
// model holds nothing a full rebuild would not reproduce, so every refit is a
// rebuild against a consistent snapshot of all records at fit start.
type RetrainUseCase struct {
	history    ports.HistoryStore
	classifier ports.Trainable

	mu         sync.Mutex
	lastMarker time.Time
}

func NewRetrainUseCase(history ports.HistoryStore, classifier ports.Trainable) *RetrainUseCase {
	return &RetrainUseCase{history: history, classifier: classifier}
}

func (uc *RetrainUseCase) Retrain(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	start := time.Now().UTC()
	records, err := uc.history.AllRecords(ctx)
	if err != nil {
		return fmt.Errorf("load history records: %w", err)
	}
	if err := uc.classifier.Fit(ctx, records); err != nil {
		return fmt.Errorf("fit classifier: %w", err)
	}
	uc.lastMarker = start
	slog.Info("classifier_retrained", "records", len(records), "duration_ms", float64(time.Since(start).Microseconds())/1000.0)
	return nil
}

// RetrainIfStale refits only when records were appended since the last fit,
// so debounced bursts of decision events collapse into one rebuild.
func (uc *RetrainUseCase) RetrainIfStale(ctx context.Context) error {
	uc.mu.Lock()
	marker := uc.lastMarker
	uc.mu.Unlock()

	fresh, err := uc.history.RecordsSince(ctx, marker)
	if err != nil {
		return fmt.Errorf("check records since %s: %w", marker.Format(time.RFC3339), err)
	}
	if len(fresh) == 0 {
		return nil
	}
	return uc.Retrain(ctx)
}
