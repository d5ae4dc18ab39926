package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mkuhn/sortmeister/internal/core/domain"
	"github.com/mkuhn/sortmeister/internal/core/ports"
)

var yearToken = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// PathResolver reconciles learned destination labels with the live folder
// tree. Labels are plain path strings; all tree-aware reasoning happens here.
type PathResolver struct {
	tree         ports.FolderTree
	minRelevance float64
}

func NewPathResolver(tree ports.FolderTree, minRelevance float64) *PathResolver {
	if minRelevance <= 0 {
		minRelevance = 0.25
	}
	return &PathResolver{tree: tree, minRelevance: minRelevance}
}

// Resolve verifies each suggestion against the current tree, truncating
// deleted paths to their nearest existing ancestor, transferring learned
// subfolder names across top-level categories, and proposing a new subfolder
// when nothing existing is relevant enough.
//
// Year-bearing folder names are emitted verbatim: a label learned for one
// year is never rewritten to another year's folder, whatever the document
// date says.
func (r *PathResolver) Resolve(ctx context.Context, suggestions []domain.Suggestion, features domain.DocumentFeatures) ([]domain.Suggestion, error) {
	root, err := r.tree.CurrentTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("load folder tree: %w", err)
	}

	resolved := make([]domain.Suggestion, 0, len(suggestions)+2)
	seen := make(map[string]struct{}, len(suggestions))
	add := func(s domain.Suggestion) {
		if _, ok := seen[s.Path]; ok || s.Path == "" {
			return
		}
		seen[s.Path] = struct{}{}
		resolved = append(resolved, s)
	}

	for _, s := range suggestions {
		segments := domain.SplitPath(s.Path)
		node, matched := root.Resolve(segments)
		switch {
		case matched == len(segments):
			add(s)
		case matched > 0:
			truncated := s
			truncated.Path = node.Path()
			truncated.AncestorOnly = true
			truncated.Reason = "nearest existing ancestor"
			add(truncated)
		default:
			// Top-level folder is gone entirely; nothing to anchor on.
		}
	}

	if transfer, ok := r.crossCategoryTransfer(root, resolved); ok {
		add(transfer)
	}

	if proposal, ok := r.newSubfolderProposal(root, resolved, features); ok {
		add(proposal)
	}

	return resolved, nil
}

// crossCategoryTransfer reuses a learned leaf subfolder name under the
// best-scoring top-level category when that category lacks it. Subfolder
// names are learned independently of their parents.
func (r *PathResolver) crossCategoryTransfer(root *domain.FolderNode, suggestions []domain.Suggestion) (domain.Suggestion, bool) {
	if len(suggestions) == 0 {
		return domain.Suggestion{}, false
	}

	topScores := make(map[string]float64)
	for _, s := range suggestions {
		segments := domain.SplitPath(s.Path)
		if len(segments) == 0 {
			continue
		}
		topScores[segments[0]] += s.Confidence
	}

	bestTop, bestScore := "", 0.0
	for name, score := range topScores {
		if score > bestScore || (score == bestScore && name < bestTop) {
			bestTop, bestScore = name, score
		}
	}
	if bestTop == "" || bestScore < r.minRelevance {
		return domain.Suggestion{}, false
	}

	// Leaf subfolder of the strongest single suggestion.
	best := suggestions[0]
	segments := domain.SplitPath(best.Path)
	if len(segments) < 2 {
		return domain.Suggestion{}, false
	}
	leaf := segments[len(segments)-1]
	if strings.EqualFold(segments[0], bestTop) {
		return domain.Suggestion{}, false
	}
	// A year-qualified subfolder belongs to its category; never replant it.
	if containsYear(leaf) {
		return domain.Suggestion{}, false
	}

	target := root.Child(bestTop)
	if target == nil || target.Child(leaf) != nil {
		return domain.Suggestion{}, false
	}

	conf := best.Confidence
	if bestScore < conf {
		conf = bestScore
	}
	return domain.Suggestion{
		Path:         domain.JoinPath([]string{bestTop, leaf}),
		Confidence:   domain.ClampConfidence(conf * 0.9),
		Source:       best.Source,
		Reason:       "learned subfolder under best matching category",
		NewSubfolder: true,
	}, true
}

// newSubfolderProposal fires when no existing destination is relevant enough:
// instead of forcing a weak match, propose a fresh subfolder named after the
// detected entity or keyword, under the nearest plausible parent.
func (r *PathResolver) newSubfolderProposal(root *domain.FolderNode, suggestions []domain.Suggestion, features domain.DocumentFeatures) (domain.Suggestion, bool) {
	if len(suggestions) == 0 {
		// Cold start stays an empty destination list; naming fallback covers it.
		return domain.Suggestion{}, false
	}
	for _, s := range suggestions {
		if s.Confidence >= r.minRelevance && !s.NewSubfolder {
			return domain.Suggestion{}, false
		}
	}

	name := ""
	switch {
	case len(features.Companies) > 0:
		name = features.Companies[0]
	case len(features.Keywords) > 0:
		name = capitalize(features.Keywords[0])
	default:
		return domain.Suggestion{}, false
	}

	segments := domain.SplitPath(suggestions[0].Path)
	if len(segments) == 0 {
		return domain.Suggestion{}, false
	}
	parent := segments[0]
	if existing := root.Child(parent); existing != nil && existing.Child(name) != nil {
		// Already exists; the plain path form covers it.
		return domain.Suggestion{
			Path:       domain.JoinPath([]string{parent, name}),
			Confidence: 0.3,
			Source:     domain.SourceFallback,
			Reason:     "existing subfolder matches detected entity",
		}, true
	}

	return domain.Suggestion{
		Path:         domain.JoinPath([]string{parent, name}),
		Confidence:   0.3,
		Source:       domain.SourceFallback,
		Reason:       "new subfolder from detected entity",
		NewSubfolder: true,
	}, true
}

// containsYear reports whether a folder name carries a four-digit year token.
func containsYear(name string) bool {
	return yearToken.MatchString(name)
}
