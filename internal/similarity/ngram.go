package similarity

import (
	"math"
	"strings"
	"unicode"
)

// Tokenize lowercases text, splits it on whitespace and trims punctuation
// from the edges of each token. Tokens that are all punctuation are dropped.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// GenerateNGrams returns the distinct n-grams of text in order of first
// appearance. Text shorter than n words yields none.
func GenerateNGrams(text string, n int) []string {
	return ngrams(Tokenize(text), n)
}

func ngrams(tokens []string, n int) []string {
	if n <= 0 || len(tokens) < n {
		return nil
	}
	seen := make(map[string]struct{}, len(tokens)-n+1)
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		g := strings.Join(tokens[i:i+n], " ")
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

// Set builds a set from items.
func Set(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when both sets are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var intersection int
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// NGramSimilarity averages the bigram and trigram Jaccard similarity of two
// token sequences.
func NGramSimilarity(a, b []string) float64 {
	var sum float64
	for _, n := range []int{2, 3} {
		sum += Jaccard(Set(ngrams(a, n)), Set(ngrams(b, n)))
	}
	return sum / 2
}

// NGramThreshold returns the n-gram similarity above which a text of
// wordCount words is flagged. Short texts share boilerplate less often, so
// their threshold is lower.
func NGramThreshold(wordCount int) float64 {
	switch {
	case wordCount < 100:
		return 0.10
	case wordCount < 300:
		return 0.12
	default:
		return 0.15
	}
}

// CosineSimilarity calculates cosine similarity between two vectors.
// Vectors of different length, or with zero norm, score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
