package openai

import (
	"fmt"
	"strings"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

// truncateText cuts the document body to the configured budget before it is
// placed into any prompt.
func truncateText(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}

func buildClassifyPrompt(text string, keywords, candidates []string) string {
	var b strings.Builder
	b.WriteString(`You file German business documents into an existing folder tree.
Pick the single best destination from the list of folders below.
Return strict JSON object with keys:
folder (string, exactly one entry from the list), confidence (number from 0 to 1), reason (short string).
If no folder fits, use an empty string for folder.

Folders:
`)
	for _, candidate := range candidates {
		b.WriteString("- ")
		b.WriteString(candidate)
		b.WriteString("\n")
	}
	if len(keywords) > 0 {
		b.WriteString("\nDetected keywords: ")
		b.WriteString(strings.Join(keywords, ", "))
		b.WriteString("\n")
	}
	b.WriteString("\nDocument:\n")
	b.WriteString(text)
	return b.String()
}

func buildNamePrompt(text string, features domain.DocumentFeatures, destination string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Propose a descriptive file name for a German business document that will be filed under "%s".
Keep the original file extension, prefer the pattern <category>_<company>_<YYYY-MM>, and never change years that appear in the document.
Return strict JSON object with keys:
filename (string), confidence (number from 0 to 1), reason (short string).

Current file name: %s
`, destination, features.Filename)
	if len(features.Companies) > 0 {
		fmt.Fprintf(&b, "Detected companies: %s\n", strings.Join(features.Companies, ", "))
	}
	if date, ok := features.BestDate(); ok {
		fmt.Fprintf(&b, "Document date: %s\n", date.Format("2006-01-02"))
	}
	b.WriteString("\nDocument:\n")
	b.WriteString(text)
	return b.String()
}
