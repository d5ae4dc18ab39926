package cache

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

// Prefetcher periodically scans the inbox for documents and schedules
// background analysis, so interactive requests hit a warm cache. Documents
// already analyzed coalesce onto their cached entry and cost one fingerprint
// read per sweep.
type Prefetcher struct {
	scheduler *Scheduler
	root      string
	interval  time.Duration
}

func NewPrefetcher(scheduler *Scheduler, root string, interval time.Duration) *Prefetcher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Prefetcher{scheduler: scheduler, root: root, interval: interval}
}

// Run sweeps the inbox immediately and then on every interval until ctx is
// cancelled. An empty root disables prefetching.
func (p *Prefetcher) Run(ctx context.Context) error {
	if p.root == "" {
		slog.Info("prefetch_disabled")
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		p.sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Prefetcher) sweep(ctx context.Context) {
	identities, err := listDocuments(p.root)
	if err != nil {
		slog.Warn("prefetch_sweep_failed", "root", p.root, "error", err)
		return
	}
	if len(identities) == 0 {
		return
	}
	slog.Debug("prefetch_sweep", "root", p.root, "documents", len(identities))
	p.scheduler.Prefetch(ctx, identities, domain.PriorityBackground)
}

// listDocuments collects supported documents under root, skipping dot
// directories. The extension set mirrors what the extractor can read.
func listDocuments(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".pdf", ".txt", ".md":
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
