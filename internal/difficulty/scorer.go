// Package difficulty scores how hard a vocabulary word is for a Japanese
// learner of English and decides whether the word should be annotated.
package difficulty

import (
	"math"
	"unicode"

	"github.com/kobeya/studypartner/internal/domain"
)

// AnnotateThreshold is the minimum final score at which a word is annotated.
const AnnotateThreshold = 60

// LongWordLength is the letter count from which a word earns the length bonus.
const LongWordLength = 10

// Weights holds the contribution of each 0-100 component to the final score.
type Weights struct {
	CEFR      float64
	Frequency float64
	List      float64
	L1        float64
	Length    float64
}

// DefaultWeights returns the canonical weighting. The weights sum to 1.0.
func DefaultWeights() Weights {
	return Weights{
		CEFR:      0.35,
		Frequency: 0.30,
		List:      0.20,
		L1:        0.10,
		Length:    0.05,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.CEFR + w.Frequency + w.List + w.L1 + w.Length
}

// Adjustments are point offsets applied after weighting for L1 interference.
type Adjustments struct {
	KatakanaLoanword   float64
	FalseCognate       float64
	L1InterferenceRisk float64
}

// DefaultAdjustments returns the standard L1 interference offsets.
func DefaultAdjustments() Adjustments {
	return Adjustments{
		KatakanaLoanword:   -10,
		FalseCognate:       15,
		L1InterferenceRisk: 5,
	}
}

// l1Coefficients is the per-level learnability coefficient (0-10).
var l1Coefficients = map[domain.CEFRLevel]float64{
	domain.A1: 0,
	domain.A2: 2,
	domain.B1: 4,
	domain.B2: 6,
	domain.C1: 8,
	domain.C2: 10,
}

// Score is the result of scoring one word.
type Score struct {
	CEFR           float64 `json:"cefr"`
	Frequency      float64 `json:"frequency"`
	List           float64 `json:"list"`
	L1             float64 `json:"l1"`
	Length         float64 `json:"length"`
	Adjustment     float64 `json:"adjustment"`
	Final          int     `json:"final"`
	ShouldAnnotate bool    `json:"should_annotate"`
}

// Scorer computes difficulty scores. The zero value is not usable; use New.
type Scorer struct {
	weights     Weights
	adjustments Adjustments
}

// New returns a Scorer with the default weights and adjustments.
func New() *Scorer {
	return &Scorer{
		weights:     DefaultWeights(),
		adjustments: DefaultAdjustments(),
	}
}

// NewWithWeights returns a Scorer with custom weights.
func NewWithWeights(w Weights, a Adjustments) *Scorer {
	return &Scorer{weights: w, adjustments: a}
}

var defaultScorer = New()

// CalculateDifficulty scores a word with the default scorer.
func CalculateDifficulty(word domain.VocabularyWord) Score {
	return defaultScorer.CalculateDifficulty(word)
}

// CalculateDifficulty scores a word. Missing optional fields fall back to
// documented defaults; it never fails.
func (s *Scorer) CalculateDifficulty(word domain.VocabularyWord) Score {
	level := word.CEFR
	numeric := level.Numeric()
	if numeric == 0 {
		numeric = clampInt(word.CEFRNumeric, 1, 6)
		level = domain.Levels()[numeric-1]
	}

	sc := Score{
		CEFR:      cefrComponent(numeric),
		Frequency: frequencyComponent(word.ZipfScore),
		List:      listComponent(word.InNGSL, word.InNAWL),
		L1:        l1Coefficients[level] * 10,
		Length:    lengthComponent(word.Word),
	}

	if word.KatakanaLoanword {
		sc.Adjustment += s.adjustments.KatakanaLoanword
	}
	if word.FalseCognate {
		sc.Adjustment += s.adjustments.FalseCognate
	}
	if word.L1InterferenceRisk {
		sc.Adjustment += s.adjustments.L1InterferenceRisk
	}

	total := sc.CEFR*s.weights.CEFR +
		sc.Frequency*s.weights.Frequency +
		sc.List*s.weights.List +
		sc.L1*s.weights.L1 +
		sc.Length*s.weights.Length +
		sc.Adjustment

	sc.Final = clampInt(int(math.Round(total)), 0, 100)
	sc.ShouldAnnotate = sc.Final >= AnnotateThreshold && !word.KatakanaLoanword
	return sc
}

func cefrComponent(numeric int) float64 {
	return float64(numeric) / 6 * 100
}

// frequencyComponent maps a Zipf score to 0-100; rarer words score higher.
// A missing or non-finite score sits at the midpoint.
func frequencyComponent(zipf *float64) float64 {
	if zipf == nil || math.IsNaN(*zipf) || math.IsInf(*zipf, 0) {
		return 50
	}
	penalty := math.Max(0, (5.0-*zipf)*2.0)
	return math.Min(100, penalty*10)
}

func listComponent(ngsl, nawl bool) float64 {
	switch {
	case ngsl:
		return 0
	case nawl:
		return 50
	default:
		return 100
	}
}

func lengthComponent(word string) float64 {
	letters := 0
	for _, r := range word {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters >= LongWordLength {
		return 100
	}
	return 0
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
