package usecase

import (
	"context"
	"time"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

type fakeScorer struct {
	available   bool
	suggestions []domain.Suggestion
	scoreErr    error
	name        *domain.NameSuggestion
	nameErr     error

	scoreCalls     int
	nameCalls      int
	lastCandidates []string
}

func (f *fakeScorer) Score(_ context.Context, _ domain.DocumentFeatures, candidates []string) ([]domain.Suggestion, error) {
	f.scoreCalls++
	f.lastCandidates = candidates
	if f.scoreErr != nil {
		return nil, f.scoreErr
	}
	out := make([]domain.Suggestion, len(f.suggestions))
	copy(out, f.suggestions)
	return out, nil
}

func (f *fakeScorer) SuggestName(_ context.Context, _ domain.DocumentFeatures, _ string) (*domain.NameSuggestion, error) {
	f.nameCalls++
	if f.nameErr != nil {
		return nil, f.nameErr
	}
	if f.name == nil {
		return nil, nil
	}
	name := *f.name
	return &name, nil
}

func (f *fakeScorer) Available() bool { return f.available }

type fakeHistory struct {
	records  []domain.HistoryRecord
	fresh    []domain.HistoryRecord
	stats    []domain.FolderStats
	appended []domain.HistoryRecord

	allCalls   int
	sinceCalls int
}

func (f *fakeHistory) Append(_ context.Context, record domain.HistoryRecord) error {
	f.appended = append(f.appended, record)
	return nil
}

func (f *fakeHistory) AllRecords(_ context.Context) ([]domain.HistoryRecord, error) {
	f.allCalls++
	return f.records, nil
}

func (f *fakeHistory) RecordsSince(_ context.Context, _ time.Time) ([]domain.HistoryRecord, error) {
	f.sinceCalls++
	return f.fresh, nil
}

func (f *fakeHistory) FolderStats(_ context.Context) ([]domain.FolderStats, error) {
	return f.stats, nil
}

type createdFolder struct {
	parent string
	name   string
}

type fakeTree struct {
	root    *domain.FolderNode
	created []createdFolder
}

func (f *fakeTree) CurrentTree(_ context.Context) (*domain.FolderNode, error) {
	return f.root, nil
}

func (f *fakeTree) CreateSubfolder(_ context.Context, parentPath, name string) error {
	f.created = append(f.created, createdFolder{parent: parentPath, name: name})
	return nil
}

type fakeQueue struct {
	published []string
}

func (f *fakeQueue) PublishDecisionRecorded(_ context.Context, recordID string) error {
	f.published = append(f.published, recordID)
	return nil
}

func (f *fakeQueue) SubscribeDecisionRecorded(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}

type fakeCacheStore struct {
	entries map[string]*domain.CacheEntry
}

func (f *fakeCacheStore) Get(_ context.Context, fingerprint string) (*domain.CacheEntry, error) {
	return f.entries[fingerprint], nil
}

func (f *fakeCacheStore) Put(_ context.Context, entry *domain.CacheEntry) error {
	if f.entries == nil {
		f.entries = map[string]*domain.CacheEntry{}
	}
	f.entries[entry.Fingerprint] = entry
	return nil
}

func (f *fakeCacheStore) Delete(_ context.Context, fingerprint string) error {
	delete(f.entries, fingerprint)
	return nil
}

func (f *fakeCacheStore) TouchAccess(_ context.Context, _ string, _ time.Time) error {
	return nil
}

type fakeExtractor struct {
	features    domain.DocumentFeatures
	extractErr  error
	fingerprint string

	extractCalls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) (domain.DocumentFeatures, error) {
	f.extractCalls++
	return f.features, f.extractErr
}

func (f *fakeExtractor) Fingerprint(_ context.Context, _ string) (string, error) {
	if f.fingerprint != "" {
		return f.fingerprint, nil
	}
	return f.features.Fingerprint, nil
}

type fakeTrainable struct {
	fitCalls    int
	lastRecords []domain.HistoryRecord
}

func (f *fakeTrainable) Fit(_ context.Context, records []domain.HistoryRecord) error {
	f.fitCalls++
	f.lastRecords = records
	return nil
}

// buildTree assembles a folder tree from relative paths like "Steuer/Steuer 2025".
func buildTree(paths ...string) *domain.FolderNode {
	root := &domain.FolderNode{}
	for _, p := range paths {
		node := root
		for _, seg := range domain.SplitPath(p) {
			child := node.Child(seg)
			if child == nil {
				child = &domain.FolderNode{Name: seg, Parent: node}
				node.Children = append(node.Children, child)
			}
			node = child
		}
	}
	return root
}
