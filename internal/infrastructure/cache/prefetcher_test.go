package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeInboxFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("inhalt"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPrefetcherSweepSchedulesSupportedDocuments(t *testing.T) {
	root := t.TempDir()
	writeInboxFile(t, filepath.Join(root, "rechnung.pdf"))
	writeInboxFile(t, filepath.Join(root, "banken", "kontoauszug.txt"))
	writeInboxFile(t, filepath.Join(root, "notizen.md"))
	writeInboxFile(t, filepath.Join(root, "foto.jpg"))
	writeInboxFile(t, filepath.Join(root, ".versteckt", "entwurf.pdf"))

	store := newMemoryStore()
	s := NewScheduler(readyCompute(0), identityExtractor{}, store, 1, nil)
	startScheduler(t, s)

	p := NewPrefetcher(s, root, time.Minute)
	p.sweep(context.Background())

	wanted := []string{
		filepath.Join(root, "rechnung.pdf"),
		filepath.Join(root, "banken", "kontoauszug.txt"),
		filepath.Join(root, "notizen.md"),
	}
	deadline := time.After(time.Second)
	for _, fingerprint := range wanted {
		for {
			entry, _ := store.Get(context.Background(), fingerprint)
			if entry != nil {
				break
			}
			select {
			case <-deadline:
				t.Fatalf("document %s was never analyzed", fingerprint)
			case <-time.After(5 * time.Millisecond):
			}
		}
	}

	for _, fingerprint := range []string{
		filepath.Join(root, "foto.jpg"),
		filepath.Join(root, ".versteckt", "entwurf.pdf"),
	} {
		if entry, _ := store.Get(context.Background(), fingerprint); entry != nil {
			t.Fatalf("document %s must not be scheduled", fingerprint)
		}
	}
}

func TestPrefetcherDisabledWithoutRoot(t *testing.T) {
	p := NewPrefetcher(nil, "", time.Minute)
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("disabled prefetcher must return immediately")
	}
}

func TestListDocumentsFailsOnMissingRoot(t *testing.T) {
	if _, err := listDocuments(filepath.Join(t.TempDir(), "fehlt")); err == nil {
		t.Fatal("expected error for missing root")
	}
}
