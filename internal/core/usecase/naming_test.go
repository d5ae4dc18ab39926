package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

func TestRuleBasedNamesWithFullFeatures(t *testing.T) {
	features := domain.DocumentFeatures{
		Filename:  "scan_0042.pdf",
		Keywords:  []string{"rechnung"},
		Companies: []string{"Stadtwerke München GmbH"},
		Dates:     []domain.DateCandidate{{Date: time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC), Confidence: 0.9}},
	}

	names := RuleBasedNames(features)
	if len(names) != 3 {
		t.Fatalf("expected three rule names, got %+v", names)
	}
	if names[0].Filename != "Rechnung Stadtwerke München GmbH 2025-05.pdf" || names[0].Confidence != 0.75 {
		t.Fatalf("got %+v", names[0])
	}
	if names[1].Filename != "2025-05 scan_0042.pdf" || names[1].Confidence != 0.7 {
		t.Fatalf("got %+v", names[1])
	}
	if names[2].Filename != "Rechnung scan_0042.pdf" || names[2].Confidence != 0.6 {
		t.Fatalf("got %+v", names[2])
	}
}

func TestRuleBasedNamesCategoryOnly(t *testing.T) {
	features := domain.DocumentFeatures{Filename: "brief.pdf", Keywords: []string{"versicherung"}}
	names := RuleBasedNames(features)
	if len(names) != 1 || names[0].Filename != "Versicherung brief.pdf" || names[0].Confidence != 0.6 {
		t.Fatalf("got %+v", names)
	}
}

func TestRuleBasedNamesMetadataFallback(t *testing.T) {
	features := domain.DocumentFeatures{
		FileDate: time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC),
	}
	names := RuleBasedNames(features)
	if len(names) != 1 {
		t.Fatalf("expected the single fallback name, got %+v", names)
	}
	got := names[0]
	if got.Filename != "2025-01-02 Dokument.pdf" || got.Confidence != 0.3 {
		t.Fatalf("got %+v", got)
	}
	if got.Source != domain.SourceFallback || got.Reason != "file metadata only" {
		t.Fatalf("got %+v", got)
	}
}

func TestSanitizeFilenameStripsInvalidCharacters(t *testing.T) {
	got := SanitizeFilename(`Rechnung: <Strom>/2025 "Mai"?.pdf`)
	if strings.ContainsAny(got, `<>:"/\|?*`) {
		t.Fatalf("invalid characters survived: %q", got)
	}
	if got != "Rechnung Strom2025 Mai.pdf" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("ä", 120) + ".pdf"
	got := SanitizeFilename(long)
	if want := strings.Repeat("ä", 80) + ".pdf"; got != want {
		t.Fatalf("length cap failed, got %d runes", len([]rune(got)))
	}
}
