package vectorspace

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

//go:embed stopwords.txt
var stopwordsFile string

//go:embed corpus.txt
var corpusFile string

var (
	// ErrDependencyUnavailable is returned when the resources the model needs
	// to fit (stopword list, seed corpus) are missing.
	ErrDependencyUnavailable = errors.New("text processing resources unavailable")

	// ErrInitialization is returned when fitting the vocabulary fails.
	ErrInitialization = errors.New("vector space model initialization failed")

	// ErrNotInitialized is returned by Embed when the model cannot be initialized.
	ErrNotInitialized = errors.New("vector space model not initialized")
)

// DefaultMaxFeatures caps the vocabulary size.
const DefaultMaxFeatures = 1000

const probeText = "test text"

// Model is a TF-IDF term weighting model over unigrams and bigrams. It is fit
// once and is read-only afterwards; Embed is safe for concurrent use.
type Model struct {
	maxFeatures int
	corpus      []string
	stopwords   string
	logger      *slog.Logger

	mu    sync.Mutex
	state atomic.Pointer[fitted]
}

type fitted struct {
	analyzer analyzer
	index    map[string]int
	terms    []string
	idf      []float64
}

type Option func(*Model)

// WithMaxFeatures overrides DefaultMaxFeatures. Values <= 0 are ignored.
func WithMaxFeatures(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.maxFeatures = n
		}
	}
}

// WithCorpus fits the model from docs instead of the embedded seed corpus.
func WithCorpus(docs []string) Option {
	return func(m *Model) {
		m.corpus = docs
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

func withStopwords(src string) Option {
	return func(m *Model) {
		m.stopwords = src
	}
}

// New returns an uninitialized Model.
func New(opts ...Option) *Model {
	m := &Model{
		maxFeatures: DefaultMaxFeatures,
		stopwords:   stopwordsFile,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialized reports whether the vocabulary has been fit.
func (m *Model) Initialized() bool {
	return m.state.Load() != nil
}

// Initialize fits the vocabulary and IDF weights. It returns nil immediately
// if the model is already initialized. Concurrent callers wait for the one
// fit in progress. On failure the model stays uninitialized.
func (m *Model) Initialize() error {
	if m.Initialized() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Initialized() {
		return nil
	}

	stop := parseStopwords(m.stopwords)
	if len(stop) == 0 {
		m.logger.Error("vector space model: stopword list is empty")
		return fmt.Errorf("%w: stopword list is empty", ErrDependencyUnavailable)
	}

	docs := m.corpus
	if docs == nil {
		var err error
		docs, err = LoadCorpus(strings.NewReader(corpusFile))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
		}
		if len(docs) == 0 {
			return fmt.Errorf("%w: seed corpus is empty", ErrDependencyUnavailable)
		}
	}

	f, err := fit(newAnalyzer(stop), docs, m.maxFeatures)
	if err != nil {
		m.logger.Error("vector space model: fit failed", "error", err)
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	if probe := f.transform(probeText); len(probe) == 0 {
		return fmt.Errorf("%w: probe transform produced an empty vector", ErrInitialization)
	}

	m.state.Store(f)
	m.logger.Info("vector space model initialized", "documents", len(docs), "vocabulary", len(f.terms))
	return nil
}

// Embed returns the L2-normalised TF-IDF vector of text. The vector length
// equals the vocabulary size; terms outside the vocabulary are ignored. The
// model is initialized on first use.
func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := m.state.Load()
	if f == nil {
		if err := m.Initialize(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotInitialized, err)
		}
		f = m.state.Load()
	}
	return f.transform(text), nil
}

// Dimensions returns the vocabulary size, or 0 before initialization.
func (m *Model) Dimensions() int {
	if f := m.state.Load(); f != nil {
		return len(f.terms)
	}
	return 0
}

// Vocabulary returns the fitted terms in index order.
func (m *Model) Vocabulary() []string {
	f := m.state.Load()
	if f == nil {
		return nil
	}
	out := make([]string, len(f.terms))
	copy(out, f.terms)
	return out
}

type termStat struct {
	term  string
	count int
	df    int
}

func fit(a analyzer, docs []string, maxFeatures int) (*fitted, error) {
	stats := make(map[string]*termStat)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, t := range a.terms(doc) {
			s, ok := stats[t]
			if !ok {
				s = &termStat{term: t}
				stats[t] = s
			}
			s.count++
			if _, dup := seen[t]; !dup {
				seen[t] = struct{}{}
				s.df++
			}
		}
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("empty vocabulary; corpus contains only stopwords")
	}

	kept := make([]*termStat, 0, len(stats))
	for _, s := range stats {
		kept = append(kept, s)
	}
	if len(kept) > maxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if kept[i].count != kept[j].count {
				return kept[i].count > kept[j].count
			}
			return kept[i].term < kept[j].term
		})
		kept = kept[:maxFeatures]
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].term < kept[j].term })

	n := float64(len(docs))
	f := &fitted{
		analyzer: a,
		index:    make(map[string]int, len(kept)),
		terms:    make([]string, len(kept)),
		idf:      make([]float64, len(kept)),
	}
	for i, s := range kept {
		f.index[s.term] = i
		f.terms[i] = s.term
		// Smoothed IDF: every term is treated as seen once more in an extra document.
		f.idf[i] = math.Log((1+n)/(1+float64(s.df))) + 1
	}
	return f, nil
}

func (f *fitted) transform(text string) []float32 {
	weights := make([]float64, len(f.terms))
	for _, t := range f.analyzer.terms(text) {
		if i, ok := f.index[t]; ok {
			weights[i]++
		}
	}

	var sumSq float64
	for i, tf := range weights {
		if tf == 0 {
			continue
		}
		weights[i] = tf * f.idf[i]
		sumSq += weights[i] * weights[i]
	}

	vec := make([]float32, len(weights))
	if sumSq == 0 {
		return vec
	}
	norm := math.Sqrt(sumSq)
	for i, w := range weights {
		vec[i] = float32(w / norm)
	}
	return vec
}
