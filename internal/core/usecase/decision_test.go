package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

func TestRecordDecisionAppendsAndPublishes(t *testing.T) {
	extractor := &fakeExtractor{features: domain.DocumentFeatures{Fingerprint: "fp-1", Filename: "rechnung.pdf"}}
	history := &fakeHistory{}
	tree := &fakeTree{root: buildTree("Energie/Stadtwerke")}
	queue := &fakeQueue{}
	cache := &fakeCacheStore{}

	uc := NewRecordDecisionUseCase(extractor, history, tree, queue, cache)
	err := uc.RecordDecision(context.Background(), "/in/rechnung.pdf", "Energie/Stadtwerke", "strom_2025-05.pdf", domain.DecisionDrag)
	if err != nil {
		t.Fatalf("record decision: %v", err)
	}

	if len(history.appended) != 1 {
		t.Fatalf("expected one history record, got %d", len(history.appended))
	}
	rec := history.appended[0]
	if rec.ID == "" || rec.Fingerprint != "fp-1" {
		t.Fatalf("got %+v", rec)
	}
	if rec.Destination != "Energie/Stadtwerke" || rec.ChosenName != "strom_2025-05.pdf" || rec.Source != domain.DecisionDrag {
		t.Fatalf("got %+v", rec)
	}
	if len(queue.published) != 1 || queue.published[0] != rec.ID {
		t.Fatalf("retrain event must carry the record id, got %v", queue.published)
	}
}

func TestRecordDecisionPrefersCachedFeatures(t *testing.T) {
	cached := domain.DocumentFeatures{Fingerprint: "fp-2", Filename: "vertrag.pdf", Keywords: []string{"vertrag"}}
	extractor := &fakeExtractor{fingerprint: "fp-2"}
	cache := &fakeCacheStore{entries: map[string]*domain.CacheEntry{
		"fp-2": {Fingerprint: "fp-2", Features: cached, State: domain.AnalysisReady, ComputedAt: time.Now()},
	}}
	history := &fakeHistory{}
	tree := &fakeTree{root: buildTree("Versicherung")}

	uc := NewRecordDecisionUseCase(extractor, history, tree, &fakeQueue{}, cache)
	if err := uc.RecordDecision(context.Background(), "/in/vertrag.pdf", "Versicherung", "", domain.DecisionDialog); err != nil {
		t.Fatalf("record decision: %v", err)
	}
	if extractor.extractCalls != 0 {
		t.Fatalf("cached features must skip re-extraction, got %d calls", extractor.extractCalls)
	}
	if history.appended[0].Features.Keywords[0] != "vertrag" {
		t.Fatalf("got %+v", history.appended[0].Features)
	}
}

func TestRecordDecisionCreatesMissingFolders(t *testing.T) {
	extractor := &fakeExtractor{features: domain.DocumentFeatures{Fingerprint: "fp-3"}}
	tree := &fakeTree{root: buildTree("Steuer")}

	uc := NewRecordDecisionUseCase(extractor, &fakeHistory{}, tree, &fakeQueue{}, &fakeCacheStore{})
	err := uc.RecordDecision(context.Background(), "/in/bescheid.pdf", "Steuer/Steuer 2026/Belege", "", domain.DecisionCorrection)
	if err != nil {
		t.Fatalf("record decision: %v", err)
	}

	want := []createdFolder{
		{parent: "Steuer", name: "Steuer 2026"},
		{parent: "Steuer/Steuer 2026", name: "Belege"},
	}
	if len(tree.created) != len(want) {
		t.Fatalf("created = %+v", tree.created)
	}
	for i := range want {
		if tree.created[i] != want[i] {
			t.Fatalf("created[%d] = %+v, want %+v", i, tree.created[i], want[i])
		}
	}
}

func TestRecordDecisionRejectsEmptyDestination(t *testing.T) {
	uc := NewRecordDecisionUseCase(&fakeExtractor{}, &fakeHistory{}, &fakeTree{root: buildTree()}, &fakeQueue{}, &fakeCacheStore{})
	err := uc.RecordDecision(context.Background(), "/in/x.pdf", "", "", domain.DecisionDrag)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
