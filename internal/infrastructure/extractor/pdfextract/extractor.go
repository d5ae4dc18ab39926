// Package pdfextract reads documents from the local filesystem and turns them
// into analysis features: plain text, content fingerprint, dates, keywords,
// and company names. PDF bodies are parsed with ledongthuc/pdf; UTF-8 text
// files pass through unchanged.
package pdfextract

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

// maxTextBytes bounds how much extracted text is carried per document.
// Scans of long contracts do not need more than this for classification.
const maxTextBytes = 200 * 1024

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, identity string) (domain.DocumentFeatures, error) {
	raw, info, err := readFile(identity)
	if err != nil {
		return domain.DocumentFeatures{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.DocumentFeatures{}, err
	}

	features := domain.DocumentFeatures{
		Fingerprint: fingerprint(raw),
		Filename:    filepath.Base(identity),
		FileDate:    info.ModTime(),
	}

	text, err := extractText(identity, raw)
	if err != nil {
		// Partial features still identify the document; callers degrade to
		// metadata-only analysis on this error kind.
		return features, domain.WrapError(domain.ErrExtractionFailed, "extract text", err)
	}
	features.Text = text
	searchable := text + "\n" + features.Filename
	features.Keywords = detectKeywords(searchable)
	features.Dates = detectDates(searchable)
	features.Companies = detectCompanies(searchable)
	return features, nil
}

func (e *Extractor) Fingerprint(ctx context.Context, identity string) (string, error) {
	raw, _, err := readFile(identity)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fingerprint(raw), nil
}

func readFile(identity string) ([]byte, os.FileInfo, error) {
	info, err := os.Stat(identity)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, domain.WrapError(domain.ErrDocumentNotFound, "stat document", err)
		}
		return nil, nil, fmt.Errorf("stat document: %w", err)
	}
	raw, err := os.ReadFile(identity)
	if err != nil {
		return nil, nil, fmt.Errorf("read document: %w", err)
	}
	return raw, info, nil
}

func fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func extractText(identity string, raw []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(identity)) {
	case ".pdf":
		return pdfText(raw)
	case ".txt", ".md":
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("text file is not valid UTF-8: %s", filepath.Base(identity))
		}
		return clampText(strings.TrimSpace(string(raw))), nil
	default:
		return "", fmt.Errorf("unsupported document type: %s", filepath.Base(identity))
	}
}

func pdfText(raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, io.LimitReader(plain, maxTextBytes)); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return text, nil
}

func clampText(text string) string {
	if len(text) <= maxTextBytes {
		return text
	}
	cut := text[:maxTextBytes]
	for !utf8.ValidString(cut) && len(cut) > 0 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
