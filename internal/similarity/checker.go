// Package similarity checks generated exam text against previously
// published texts before it is shown to learners.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Severity grades a violation.
type Severity string

const (
	Critical Severity = "critical"
	High     Severity = "high"
	Medium   Severity = "medium"
	Low      Severity = "low"
)

// Deduction returns the points a violation of this severity costs.
func (s Severity) Deduction() float64 {
	switch s {
	case Critical:
		return 25
	case High:
		return 15
	case Medium:
		return 8
	case Low:
		return 3
	}
	return 0
}

// Violation types.
const (
	ViolationPattern     = "forbidden_pattern"
	ViolationEmbedding   = "embedding_similarity"
	ViolationNGram       = "ngram_similarity"
	ViolationExactPhrase = "exact_phrase"
)

// Violation is one discrete finding.
type Violation struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail"`
}

// Recommendation is the action suggested for a checked text.
type Recommendation string

const (
	Approve Recommendation = "approve"
	Review  Recommendation = "review"
	Reject  Recommendation = "reject"
)

// Verdict is the result of checking one text against a corpus.
type Verdict struct {
	Safe                   bool           `json:"safe"`
	Score                  float64        `json:"score"`
	MaxEmbeddingSimilarity float64        `json:"max_embedding_similarity"`
	MaxNGramSimilarity     float64        `json:"max_ngram_similarity"`
	NGramThreshold         float64        `json:"ngram_threshold"`
	LongestExactMatch      int            `json:"longest_exact_match"`
	Violations             []Violation    `json:"violations"`
	Recommendation         Recommendation `json:"recommendation"`
}

// ErrEmbedding wraps failures of the embedding provider.
var ErrEmbedding = errors.New("embedding failed")

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds the checker thresholds.
type Config struct {
	CriticalSimilarity float64
	WarningSimilarity  float64
	MinPhraseWords     int
	MaxPhraseWords     int
	// CriticalPhraseWords is the exact-match length at which a shared
	// phrase becomes critical.
	CriticalPhraseWords int
	ApproveScore        float64
	ReviewScore         float64
	Patterns            []Pattern
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		CriticalSimilarity:  0.85,
		WarningSimilarity:   0.75,
		MinPhraseWords:      5,
		MaxPhraseWords:      10,
		CriticalPhraseWords: 8,
		ApproveScore:        80,
		ReviewScore:         60,
		Patterns:            DefaultPatterns(),
	}
}

// Checker runs all similarity checks. A nil embedder skips the embedding
// check.
type Checker struct {
	cfg      Config
	embedder Embedder
}

// New returns a Checker.
func New(embedder Embedder, cfg Config) *Checker {
	return &Checker{cfg: cfg, embedder: embedder}
}

// Validate checks candidate against every text in corpus.
func (c *Checker) Validate(ctx context.Context, candidate string, corpus []string) (*Verdict, error) {
	v := &Verdict{Score: 100, Violations: []Violation{}}

	v.Violations = append(v.Violations, c.checkPatterns(candidate)...)

	if c.embedder != nil && len(corpus) > 0 {
		if err := c.checkEmbeddings(ctx, v, candidate, corpus); err != nil {
			return nil, err
		}
	}

	tokens := Tokenize(candidate)
	corpusTokens := make([][]string, len(corpus))
	for i, text := range corpus {
		corpusTokens[i] = Tokenize(text)
	}
	c.checkNGrams(v, tokens, corpusTokens)
	c.checkExactPhrases(v, tokens, corpusTokens)

	c.score(v)
	return v, nil
}

func (c *Checker) checkPatterns(text string) []Violation {
	var out []Violation
	for _, p := range c.cfg.Patterns {
		if m := p.Regexp.FindString(text); m != "" {
			out = append(out, Violation{
				Type:     ViolationPattern,
				Severity: p.Severity,
				Detail:   fmt.Sprintf("%s: %q", p.Name, m),
			})
		}
	}
	return out
}

// Embeddings are fetched one at a time; the cache in front of the provider
// makes repeated corpus texts cheap.
func (c *Checker) checkEmbeddings(ctx context.Context, v *Verdict, candidate string, corpus []string) error {
	cv, err := c.embedder.Embed(ctx, candidate)
	if err != nil {
		return fmt.Errorf("%w: candidate: %w", ErrEmbedding, err)
	}
	best := -1
	for i, text := range corpus {
		ev, err := c.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("%w: corpus text %d: %w", ErrEmbedding, i, err)
		}
		if sim := CosineSimilarity(cv, ev); best < 0 || sim > v.MaxEmbeddingSimilarity {
			v.MaxEmbeddingSimilarity = sim
			best = i
		}
	}

	switch {
	case v.MaxEmbeddingSimilarity > c.cfg.CriticalSimilarity:
		v.Violations = append(v.Violations, Violation{
			Type:     ViolationEmbedding,
			Severity: Critical,
			Detail:   fmt.Sprintf("cosine similarity %.3f with corpus text %d", v.MaxEmbeddingSimilarity, best),
		})
	case v.MaxEmbeddingSimilarity > c.cfg.WarningSimilarity:
		v.Violations = append(v.Violations, Violation{
			Type:     ViolationEmbedding,
			Severity: High,
			Detail:   fmt.Sprintf("cosine similarity %.3f with corpus text %d", v.MaxEmbeddingSimilarity, best),
		})
	}
	return nil
}

func (c *Checker) checkNGrams(v *Verdict, tokens []string, corpus [][]string) {
	v.NGramThreshold = NGramThreshold(len(tokens))
	best := -1
	for i, other := range corpus {
		if sim := NGramSimilarity(tokens, other); sim > v.MaxNGramSimilarity {
			v.MaxNGramSimilarity = sim
			best = i
		}
	}
	if v.MaxNGramSimilarity > v.NGramThreshold {
		v.Violations = append(v.Violations, Violation{
			Type:     ViolationNGram,
			Severity: High,
			Detail: fmt.Sprintf("n-gram similarity %.3f with corpus text %d exceeds %.2f",
				v.MaxNGramSimilarity, best, v.NGramThreshold),
		})
	}
}

// checkExactPhrases looks for the longest run of MaxPhraseWords down to
// MinPhraseWords candidate words that appears verbatim in a corpus text.
func (c *Checker) checkExactPhrases(v *Verdict, tokens []string, corpus [][]string) {
	if len(corpus) == 0 {
		return
	}
	// Pad with spaces so a window only matches on word boundaries.
	joined := make([]string, len(corpus))
	for i, other := range corpus {
		joined[i] = " " + strings.Join(other, " ") + " "
	}

	for size := c.cfg.MaxPhraseWords; size >= c.cfg.MinPhraseWords; size-- {
		for start := 0; start+size <= len(tokens); start++ {
			phrase := strings.Join(tokens[start:start+size], " ")
			for _, text := range joined {
				if !strings.Contains(text, " "+phrase+" ") {
					continue
				}
				v.LongestExactMatch = size
				sev := Medium
				if size >= c.cfg.CriticalPhraseWords {
					sev = Critical
				}
				v.Violations = append(v.Violations, Violation{
					Type:     ViolationExactPhrase,
					Severity: sev,
					Detail:   fmt.Sprintf("%d-word phrase %q copied verbatim", size, phrase),
				})
				return
			}
		}
	}
}

// score applies severity deductions, then deductions proportional to how
// far each similarity exceeds its threshold. A similarity violation
// therefore costs both its severity and its magnitude.
func (c *Checker) score(v *Verdict) {
	score := 100.0
	critical := false
	for _, vi := range v.Violations {
		score -= vi.Severity.Deduction()
		if vi.Severity == Critical {
			critical = true
		}
	}
	if v.MaxEmbeddingSimilarity > c.cfg.WarningSimilarity {
		score -= (v.MaxEmbeddingSimilarity - c.cfg.WarningSimilarity) * 100
	}
	if v.MaxNGramSimilarity > v.NGramThreshold {
		score -= (v.MaxNGramSimilarity - v.NGramThreshold) * 100
	}
	v.Score = math.Round(math.Max(0, math.Min(100, score))*100) / 100

	switch {
	case critical:
		v.Recommendation = Reject
	case v.Score >= c.cfg.ApproveScore:
		v.Recommendation = Approve
	case v.Score >= c.cfg.ReviewScore:
		v.Recommendation = Review
	default:
		v.Recommendation = Reject
	}
	v.Safe = v.Recommendation == Approve
}
