package tfidf

import (
	"strings"
	"unicode"
)

// German boilerplate words carry no routing signal and are dropped before
// vectorization.
var stopwords = map[string]struct{}{
	"der": {}, "die": {}, "das": {}, "und": {}, "in": {}, "zu": {}, "den": {},
	"von": {}, "ist": {}, "mit": {}, "sich": {}, "des": {}, "auf": {}, "für": {},
	"nicht": {}, "ein": {}, "eine": {}, "als": {}, "auch": {}, "es": {}, "an": {},
	"werden": {}, "aus": {}, "er": {}, "hat": {}, "dass": {}, "sie": {}, "nach": {},
	"wird": {}, "bei": {}, "einer": {}, "um": {}, "am": {}, "sind": {}, "noch": {},
	"wie": {}, "einem": {}, "über": {}, "so": {}, "zum": {}, "kann": {}, "nur": {},
	"ihr": {}, "seine": {}, "ich": {}, "oder": {}, "aber": {}, "vor": {}, "zur": {},
	"bis": {}, "mehr": {}, "durch": {}, "man": {}, "sehr": {}, "diese": {},
	"wenn": {}, "war": {}, "haben": {}, "wurde": {}, "alle": {}, "können": {},
	"diesem": {}, "dieser": {},
}

// tokenize lowercases and splits on non-alphanumeric runes, keeping unicode
// letters so umlauts survive, then drops stopwords and tokens shorter than
// three runes.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 32)
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		token := b.String()
		b.Reset()
		if len([]rune(token)) <= 2 {
			return
		}
		if _, ok := stopwords[token]; ok {
			return
		}
		out = append(out, token)
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return out
}

func termFrequencies(tokens []string) map[string]float64 {
	if len(tokens) == 0 {
		return nil
	}
	tf := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		tf[token]++
	}
	return tf
}
