package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mkuhn/sortmeister/internal/core/domain"
	"github.com/mkuhn/sortmeister/internal/core/ports"
)

const (
	// Merge weights when local and external agree on a destination.
	mergeLocalWeight    = 0.6
	mergeExternalWeight = 0.4
	mergedConfidenceCap = 0.98
	frequencyCap        = 0.3
)

// SuggestUseCase is the hybrid decision engine. It always scores locally
// first, escalates to the external reasoning provider only when local
// confidence is insufficient, and merges the two result sets with honest
// confidence reporting. External failure never fails the request.
type SuggestUseCase struct {
	local     ports.ScoringProvider
	external  ports.ScoringProvider
	resolver  *PathResolver
	history   ports.HistoryStore
	tree      ports.FolderTree
	threshold float64
	topK      int

	escalations func(outcome string)
}

// SetEscalationObserver registers a callback receiving the outcome of every
// external escalation ("merged" or "degraded").
func (uc *SuggestUseCase) SetEscalationObserver(fn func(outcome string)) {
	uc.escalations = fn
}

func (uc *SuggestUseCase) observeEscalation(outcome string) {
	if uc.escalations != nil {
		uc.escalations(outcome)
	}
}

func NewSuggestUseCase(
	local ports.ScoringProvider,
	external ports.ScoringProvider,
	resolver *PathResolver,
	history ports.HistoryStore,
	tree ports.FolderTree,
	threshold float64,
	topK int,
) *SuggestUseCase {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.6
	}
	if topK <= 0 {
		topK = 5
	}
	return &SuggestUseCase{
		local:     local,
		external:  external,
		resolver:  resolver,
		history:   history,
		tree:      tree,
		threshold: threshold,
		topK:      topK,
	}
}

func (uc *SuggestUseCase) Suggest(ctx context.Context, features domain.DocumentFeatures) ([]domain.Suggestion, []domain.NameSuggestion, error) {
	local, err := uc.local.Score(ctx, features, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("local score: %w", err)
	}

	stats, err := uc.folderStats(ctx)
	if err != nil {
		return nil, nil, err
	}
	local = uc.padWithFrequent(local, stats)

	suggestions := local
	if uc.shouldEscalate(local) && uc.externalReady() {
		suggestions = uc.escalatePaths(ctx, features, local)
	}

	names := uc.suggestNames(ctx, features, suggestions)

	suggestions, err = uc.resolver.Resolve(ctx, suggestions, features)
	if err != nil {
		return nil, nil, err
	}

	lastUsed := make(map[string]time.Time, len(stats))
	for _, s := range stats {
		lastUsed[s.Path] = s.LastUsed
	}
	domain.SortSuggestions(suggestions, lastUsed)
	if len(suggestions) > uc.topK {
		suggestions = suggestions[:uc.topK]
	}
	if len(names) > 0 && len(suggestions) > 0 && suggestions[0].Name == nil {
		suggestions[0].Name = &names[0]
	}
	return suggestions, names, nil
}

// shouldEscalate implements the LOCAL_ONLY -> ESCALATED transition: empty
// local result, or top confidence below the configured threshold.
func (uc *SuggestUseCase) shouldEscalate(local []domain.Suggestion) bool {
	if len(local) == 0 {
		return true
	}
	return local[0].Confidence < uc.threshold
}

func (uc *SuggestUseCase) externalReady() bool {
	return uc.external != nil && uc.external.Available()
}

// escalatePaths issues exactly one external scoring call and merges the
// result. Any external error degrades to the unchanged local result.
func (uc *SuggestUseCase) escalatePaths(ctx context.Context, features domain.DocumentFeatures, local []domain.Suggestion) []domain.Suggestion {
	candidates := uc.candidatePaths(ctx)
	external, err := uc.external.Score(ctx, features, candidates)
	if err != nil {
		slog.Warn("external_score_failed", "fingerprint", features.Fingerprint, "error", err)
		uc.observeEscalation("degraded")
		return local
	}
	uc.observeEscalation("merged")
	return mergeSuggestions(local, external)
}

// mergeSuggestions folds external entries into the local list. Agreement on a
// path boosts confidence (weighted blend, never below the local value, capped
// below 1.0) and tags the entry as merged; disagreement keeps both entries,
// each tagged with its source.
func mergeSuggestions(local, external []domain.Suggestion) []domain.Suggestion {
	merged := make([]domain.Suggestion, len(local))
	copy(merged, local)

	for _, ext := range external {
		matched := false
		for i := range merged {
			if merged[i].Path != ext.Path {
				continue
			}
			matched = true
			combined := mergeLocalWeight*merged[i].Confidence + mergeExternalWeight*ext.Confidence
			if combined < merged[i].Confidence {
				combined = merged[i].Confidence
			}
			if combined > mergedConfidenceCap {
				combined = mergedConfidenceCap
			}
			merged[i].Confidence = combined
			merged[i].Source = domain.SourceMerged
			merged[i].Reason = merged[i].Reason + ", confirmed externally"
			break
		}
		if !matched {
			ext.Source = domain.SourceExternal
			merged = append(merged, ext)
		}
	}
	return merged
}

// suggestNames merges naming suggestions independently of path escalation:
// rule-based names plus the local learned name, escalated externally only
// when no local name reaches the threshold.
func (uc *SuggestUseCase) suggestNames(ctx context.Context, features domain.DocumentFeatures, suggestions []domain.Suggestion) []domain.NameSuggestion {
	names := RuleBasedNames(features)
	if learned, err := uc.local.SuggestName(ctx, features, topPath(suggestions)); err == nil && learned != nil {
		names = append(names, *learned)
	}

	bestLocal := 0.0
	for _, n := range names {
		if n.Confidence > bestLocal {
			bestLocal = n.Confidence
		}
	}
	if bestLocal < uc.threshold && uc.externalReady() {
		ext, err := uc.external.SuggestName(ctx, features, topPath(suggestions))
		if err != nil {
			slog.Warn("external_name_failed", "fingerprint", features.Fingerprint, "error", err)
		} else if ext != nil {
			ext.Source = domain.SourceExternal
			ext.Filename = SanitizeFilename(ext.Filename)
			names = append(names, *ext)
		}
	}

	sortNames(names)
	return names
}

func (uc *SuggestUseCase) padWithFrequent(local []domain.Suggestion, stats []domain.FolderStats) []domain.Suggestion {
	if len(local) >= uc.topK {
		return local
	}
	have := make(map[string]struct{}, len(local))
	for _, s := range local {
		have[s.Path] = struct{}{}
	}
	for _, stat := range stats {
		if len(local) >= uc.topK {
			break
		}
		if _, ok := have[stat.Path]; ok {
			continue
		}
		conf := float64(stat.UseCount) / 100
		if conf > frequencyCap {
			conf = frequencyCap
		}
		local = append(local, domain.Suggestion{
			Path:       stat.Path,
			Confidence: conf,
			Source:     domain.SourceFallback,
			Reason:     fmt.Sprintf("frequently used (%dx)", stat.UseCount),
		})
	}
	return local
}

func (uc *SuggestUseCase) folderStats(ctx context.Context) ([]domain.FolderStats, error) {
	stats, err := uc.history.FolderStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load folder stats: %w", err)
	}
	return stats, nil
}

func (uc *SuggestUseCase) candidatePaths(ctx context.Context) []string {
	root, err := uc.tree.CurrentTree(ctx)
	if err != nil {
		slog.Warn("candidate_tree_failed", "error", err)
		return nil
	}
	var paths []string
	root.Walk(func(n *domain.FolderNode) {
		if p := n.Path(); p != "" {
			paths = append(paths, p)
		}
	})
	return paths
}

func topPath(suggestions []domain.Suggestion) string {
	if len(suggestions) == 0 {
		return ""
	}
	return suggestions[0].Path
}

func sortNames(names []domain.NameSuggestion) {
	sort.SliceStable(names, func(i, j int) bool {
		return names[i].Confidence > names[j].Confidence
	})
}
