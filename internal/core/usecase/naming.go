package usecase

import (
	"path"
	"strings"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

// RuleBasedNames derives file name proposals from extracted features alone.
// This is the cold-start path: it produces a usable name even when the
// history corpus is empty or the document text could not be read.
func RuleBasedNames(features domain.DocumentFeatures) []domain.NameSuggestion {
	var out []domain.NameSuggestion

	category := ""
	if len(features.Keywords) > 0 {
		category = capitalize(features.Keywords[0])
	}
	company := ""
	if len(features.Companies) > 0 {
		company = features.Companies[0]
	}

	if date, ok := features.BestDate(); ok {
		month := date.Format("2006-01")
		if category != "" {
			parts := []string{category}
			if company != "" {
				parts = append(parts, company)
			}
			parts = append(parts, month)
			out = append(out, domain.NameSuggestion{
				Filename:   SanitizeFilename(strings.Join(parts, " ") + ".pdf"),
				Confidence: 0.75,
				Source:     domain.SourceFallback,
				Reason:     "date and category",
			})
		}
		out = append(out, domain.NameSuggestion{
			Filename:   SanitizeFilename(month + " " + baseName(features.Filename) + ".pdf"),
			Confidence: 0.7,
			Source:     domain.SourceFallback,
			Reason:     "detected date",
		})
	}

	if category != "" {
		out = append(out, domain.NameSuggestion{
			Filename:   SanitizeFilename(category + " " + baseName(features.Filename) + ".pdf"),
			Confidence: 0.6,
			Source:     domain.SourceFallback,
			Reason:     "detected category",
		})
	}

	if len(out) == 0 {
		name := baseName(features.Filename)
		if name == "" {
			name = "Dokument"
		}
		if !features.FileDate.IsZero() {
			name = features.FileDate.Format("2006-01-02") + " " + name
		}
		out = append(out, domain.NameSuggestion{
			Filename:   SanitizeFilename(name + ".pdf"),
			Confidence: 0.3,
			Source:     domain.SourceFallback,
			Reason:     "file metadata only",
		})
	}
	return out
}

// SanitizeFilename strips characters that are invalid in file names and caps
// the length, keeping the extension.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if len([]rune(name)) > 84 {
		ext := path.Ext(name)
		runes := []rune(strings.TrimSuffix(name, ext))
		name = string(runes[:80]) + ext
	}
	return name
}

func baseName(filename string) string {
	name := strings.TrimSuffix(filename, path.Ext(filename))
	return strings.TrimSpace(name)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	return strings.ToUpper(string(runes[:1])) + string(runes[1:])
}
