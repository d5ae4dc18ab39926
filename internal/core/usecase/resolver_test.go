package usecase

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

func TestResolveKeepsExistingPaths(t *testing.T) {
	tree := &fakeTree{root: buildTree("Steuer/Steuer 2025", "Banken/Sparkasse")}
	r := NewPathResolver(tree, 0.25)

	in := []domain.Suggestion{{Path: "Steuer/Steuer 2025", Confidence: 0.8, Source: domain.SourceLocal}}
	out, err := r.Resolve(context.Background(), in, domain.DocumentFeatures{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(out) != 1 || out[0].Path != "Steuer/Steuer 2025" || out[0].AncestorOnly {
		t.Fatalf("existing path must pass through unchanged, got %+v", out)
	}
}

func TestResolveTruncatesToNearestAncestor(t *testing.T) {
	tree := &fakeTree{root: buildTree("Steuer/Steuer 2025")}
	r := NewPathResolver(tree, 0.25)

	in := []domain.Suggestion{{Path: "Steuer/Steuer 2019", Confidence: 0.7, Source: domain.SourceLocal}}
	out, err := r.Resolve(context.Background(), in, domain.DocumentFeatures{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected the ancestor suggestion")
	}
	got := out[0]
	if got.Path != "Steuer" || !got.AncestorOnly {
		t.Fatalf("deleted subfolder must truncate to its parent, got %+v", got)
	}
	if got.Reason != "nearest existing ancestor" {
		t.Fatalf("reason = %q", got.Reason)
	}
	if got.Confidence != 0.7 {
		t.Fatalf("truncation must not change confidence, got %.2f", got.Confidence)
	}
}

func TestResolveDropsVanishedTopLevel(t *testing.T) {
	tree := &fakeTree{root: buildTree("Banken")}
	r := NewPathResolver(tree, 0.25)

	in := []domain.Suggestion{{Path: "Hobby/Modellbau", Confidence: 0.9, Source: domain.SourceLocal}}
	out, err := r.Resolve(context.Background(), in, domain.DocumentFeatures{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("a fully vanished destination must be dropped, got %+v", out)
	}
}

func TestResolveNeverRewritesYearFolders(t *testing.T) {
	tree := &fakeTree{root: buildTree("Steuer/Steuer 2025", "Steuer/Steuer 2026")}
	r := NewPathResolver(tree, 0.25)

	features := domain.DocumentFeatures{Keywords: []string{"steuer"}}
	in := []domain.Suggestion{{Path: "Steuer/Steuer 2025", Confidence: 0.85, Source: domain.SourceLocal}}
	out, err := r.Resolve(context.Background(), in, features)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, s := range out {
		if strings.Contains(s.Path, "2026") {
			t.Fatalf("learned year folder was rewritten: %+v", out)
		}
	}
	if out[0].Path != "Steuer/Steuer 2025" {
		t.Fatalf("got %+v", out[0])
	}
}

func TestResolveTransfersLearnedSubfolderAcrossCategories(t *testing.T) {
	tree := &fakeTree{root: buildTree("Versicherung/Allianz", "Banken/Giro", "Banken/Depot")}
	r := NewPathResolver(tree, 0.25)

	in := []domain.Suggestion{
		{Path: "Versicherung/Allianz", Confidence: 0.5, Source: domain.SourceLocal},
		{Path: "Banken/Giro", Confidence: 0.35, Source: domain.SourceLocal},
		{Path: "Banken/Depot", Confidence: 0.3, Source: domain.SourceLocal},
	}
	out, err := r.Resolve(context.Background(), in, domain.DocumentFeatures{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var transfer *domain.Suggestion
	for i := range out {
		if out[i].Path == "Banken/Allianz" {
			transfer = &out[i]
		}
	}
	if transfer == nil {
		t.Fatalf("expected the leaf carried into the stronger category, got %+v", out)
	}
	if !transfer.NewSubfolder {
		t.Fatal("transfer must be flagged as a new subfolder")
	}
	if want := 0.5 * 0.9; math.Abs(transfer.Confidence-want) > 1e-9 {
		t.Fatalf("transfer confidence = %.4f, want %.4f", transfer.Confidence, want)
	}
	if transfer.Reason != "learned subfolder under best matching category" {
		t.Fatalf("reason = %q", transfer.Reason)
	}
}

func TestResolveProposesNewSubfolderWhenNothingRelevant(t *testing.T) {
	tree := &fakeTree{root: buildTree("Banken/Sparkasse")}
	r := NewPathResolver(tree, 0.25)

	features := domain.DocumentFeatures{Companies: []string{"Muster GmbH"}, Keywords: []string{"vertrag"}}
	in := []domain.Suggestion{{Path: "Banken/Sparkasse", Confidence: 0.1, Source: domain.SourceLocal}}
	out, err := r.Resolve(context.Background(), in, features)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var proposal *domain.Suggestion
	for i := range out {
		if out[i].Path == "Banken/Muster GmbH" {
			proposal = &out[i]
		}
	}
	if proposal == nil {
		t.Fatalf("expected a new subfolder proposal, got %+v", out)
	}
	if !proposal.NewSubfolder || proposal.Confidence != 0.3 || proposal.Source != domain.SourceFallback {
		t.Fatalf("got %+v", proposal)
	}
	if proposal.Reason != "new subfolder from detected entity" {
		t.Fatalf("reason = %q", proposal.Reason)
	}
}

func TestResolveColdStartStaysEmpty(t *testing.T) {
	tree := &fakeTree{root: buildTree("Banken")}
	r := NewPathResolver(tree, 0.25)

	features := domain.DocumentFeatures{Companies: []string{"Muster GmbH"}}
	out, err := r.Resolve(context.Background(), nil, features)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("no learned input must stay empty, got %+v", out)
	}
}

func TestResolveNeverTransfersYearSubfolders(t *testing.T) {
	tree := &fakeTree{root: buildTree("Steuer/Steuer 2025", "Banken/Giro", "Banken/Depot")}
	r := NewPathResolver(tree, 0.25)

	in := []domain.Suggestion{
		{Path: "Steuer/Steuer 2025", Confidence: 0.5, Source: domain.SourceLocal},
		{Path: "Banken/Giro", Confidence: 0.35, Source: domain.SourceLocal},
		{Path: "Banken/Depot", Confidence: 0.3, Source: domain.SourceLocal},
	}
	out, err := r.Resolve(context.Background(), in, domain.DocumentFeatures{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, s := range out {
		if s.Path == "Banken/Steuer 2025" {
			t.Fatalf("year-qualified leaf must stay in its category, got %+v", out)
		}
	}
}

func TestContainsYear(t *testing.T) {
	if !containsYear("Steuer 2025") || !containsYear("Archiv 1999") {
		t.Fatal("year token not detected")
	}
	if containsYear("Sparkasse") || containsYear("Raum 20456") {
		t.Fatal("false positive year detection")
	}
}
