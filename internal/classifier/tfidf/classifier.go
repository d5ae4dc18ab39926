// Package tfidf implements the local similarity classifier: a term-weighted
// vector space over historical document texts, queried by cosine similarity.
// The model is a pure function of the history corpus and is rebuilt from it
// on every fit.
package tfidf

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

const (
	// Neighbors below this cosine similarity are ignored.
	similarityFloor = 0.1
	// Local confidence never exceeds this; external agreement can lift the
	// merged score above it.
	localConfidenceCap = 0.95
	maxWeight          = 0.7
	avgWeight          = 0.3
	corroborationStep  = 0.05
	corroborationMax   = 3
)

type docVector struct {
	weights     map[string]float64
	destination string
	chosenName  string
	keywords    []string
}

// model is an immutable fit snapshot. Suggest observes exactly one model;
// a concurrent fit swaps in a complete replacement.
type model struct {
	idf  map[string]float64
	docs []docVector
}

type Classifier struct {
	fitMu   sync.Mutex
	current atomic.Pointer[model]
	topK    int
}

func New(topK int) *Classifier {
	if topK <= 0 {
		topK = 5
	}
	c := &Classifier{topK: topK}
	c.current.Store(&model{})
	return c
}

// Fit rebuilds the vector space from the given records. Fits are serialized;
// an empty corpus yields an empty model, not an error.
func (c *Classifier) Fit(ctx context.Context, records []domain.HistoryRecord) error {
	c.fitMu.Lock()
	defer c.fitMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tokenized := make([][]string, len(records))
	df := make(map[string]float64)
	for i, record := range records {
		tokens := tokenize(record.Features.Text)
		tokenized[i] = tokens
		seen := make(map[string]struct{}, len(tokens))
		for _, token := range tokens {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			df[token]++
		}
	}

	next := &model{idf: make(map[string]float64, len(df))}
	total := float64(len(records))
	for term, count := range df {
		next.idf[term] = math.Log((1+total)/(1+count)) + 1
	}

	next.docs = make([]docVector, 0, len(records))
	for i, record := range records {
		weights := weighTokens(termFrequencies(tokenized[i]), next.idf)
		if len(weights) == 0 {
			continue
		}
		next.docs = append(next.docs, docVector{
			weights:     weights,
			destination: record.Destination,
			chosenName:  record.ChosenName,
			keywords:    record.Features.Keywords,
		})
	}

	c.current.Store(next)
	return nil
}

// TrainingCount returns the number of vectors in the current model.
func (c *Classifier) TrainingCount() int {
	return len(c.current.Load().docs)
}

func (c *Classifier) Available() bool { return true }

// Score ranks historical destinations by similarity to the given features.
// The candidates argument is unused locally; the model's own label space is
// the candidate set. Cold start returns an empty slice.
func (c *Classifier) Score(ctx context.Context, features domain.DocumentFeatures, _ []string) ([]domain.Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := c.current.Load()
	if len(m.docs) == 0 {
		return nil, nil
	}

	query := weighTokens(termFrequencies(tokenize(features.Text)), m.idf)
	byDest := make(map[string][]float64)
	if len(query) > 0 {
		for _, doc := range m.docs {
			sim := cosine(query, doc.weights)
			if sim > similarityFloor {
				byDest[doc.destination] = append(byDest[doc.destination], sim)
			}
		}
	}

	suggestions := make([]domain.Suggestion, 0, len(byDest))
	for dest, sims := range byDest {
		suggestions = append(suggestions, domain.Suggestion{
			Path:       dest,
			Confidence: aggregate(sims),
			Source:     domain.SourceLocal,
			Reason:     "similar content",
		})
	}

	suggestions = mergeKeywordMatches(suggestions, m.docs, features.Keywords)

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].Path < suggestions[j].Path
	})
	if len(suggestions) > c.topK {
		suggestions = suggestions[:c.topK]
	}
	return suggestions, nil
}

// SuggestName proposes the chosen name of the single most similar historical
// document, or nil when nothing is similar enough.
func (c *Classifier) SuggestName(ctx context.Context, features domain.DocumentFeatures, _ string) (*domain.NameSuggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := c.current.Load()
	query := weighTokens(termFrequencies(tokenize(features.Text)), m.idf)
	if len(query) == 0 {
		return nil, nil
	}

	best := -1.0
	var name string
	for _, doc := range m.docs {
		if doc.chosenName == "" {
			continue
		}
		if sim := cosine(query, doc.weights); sim > best {
			best = sim
			name = doc.chosenName
		}
	}
	if best <= similarityFloor {
		return nil, nil
	}
	return &domain.NameSuggestion{
		Filename:   name,
		Confidence: domain.ClampConfidence(best),
		Source:     domain.SourceLocal,
		Reason:     "named like most similar document",
	}, nil
}

// aggregate combines neighbor similarities into one confidence. The blend of
// best and average match follows the weighting the sorting history was tuned
// with; the corroboration term guarantees that more same-destination
// neighbors never lower the score.
func aggregate(sims []float64) float64 {
	if len(sims) == 0 {
		return 0
	}
	maxSim, sum := 0.0, 0.0
	for _, s := range sims {
		s = domain.ClampConfidence(s)
		if s > maxSim {
			maxSim = s
		}
		sum += s
	}
	conf := maxWeight*maxSim + avgWeight*(sum/float64(len(sims)))
	extra := len(sims) - 1
	if extra > corroborationMax {
		extra = corroborationMax
	}
	conf += corroborationStep * float64(extra) * (1 - conf)
	if conf > localConfidenceCap {
		conf = localConfidenceCap
	}
	return domain.ClampConfidence(conf)
}

// mergeKeywordMatches appends destinations whose history shares extracted
// keywords, without displacing similarity-based entries for the same path.
func mergeKeywordMatches(suggestions []domain.Suggestion, docs []docVector, keywords []string) []domain.Suggestion {
	if len(keywords) == 0 {
		return suggestions
	}
	wanted := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		wanted[k] = struct{}{}
	}

	counts := make(map[string]int)
	total := 0
	for _, doc := range docs {
		for _, k := range doc.keywords {
			if _, ok := wanted[k]; ok {
				counts[doc.destination]++
				total++
				break
			}
		}
	}
	if total == 0 {
		return suggestions
	}

	have := make(map[string]struct{}, len(suggestions))
	for _, s := range suggestions {
		have[s.Path] = struct{}{}
	}
	for dest, count := range counts {
		if _, ok := have[dest]; ok {
			continue
		}
		conf := float64(count) / float64(total) * 0.8
		if conf > 0.8 {
			conf = 0.8
		}
		suggestions = append(suggestions, domain.Suggestion{
			Path:       dest,
			Confidence: conf,
			Source:     domain.SourceLocal,
			Reason:     "matching keywords",
		})
	}
	return suggestions
}

func weighTokens(tf map[string]float64, idf map[string]float64) map[string]float64 {
	if len(tf) == 0 {
		return nil
	}
	weights := make(map[string]float64, len(tf))
	var norm float64
	for term, freq := range tf {
		w, ok := idf[term]
		if !ok {
			continue
		}
		v := freq * w
		weights[term] = v
		norm += v * v
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for term := range weights {
		weights[term] /= norm
	}
	return weights
}

// cosine assumes both vectors are L2-normalized.
func cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, av := range a {
		if bv, ok := b[term]; ok {
			dot += av * bv
		}
	}
	if dot < 0 {
		return 0
	}
	return dot
}
