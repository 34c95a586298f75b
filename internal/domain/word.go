package domain

import (
	"fmt"
	"strings"
	"time"
)

// CEFRLevel is one of the six Common European Framework levels.
type CEFRLevel string

const (
	A1 CEFRLevel = "A1"
	A2 CEFRLevel = "A2"
	B1 CEFRLevel = "B1"
	B2 CEFRLevel = "B2"
	C1 CEFRLevel = "C1"
	C2 CEFRLevel = "C2"
)

var cefrNumeric = map[CEFRLevel]int{
	A1: 1,
	A2: 2,
	B1: 3,
	B2: 4,
	C1: 5,
	C2: 6,
}

// Levels lists every CEFR level in ascending order.
func Levels() []CEFRLevel {
	return []CEFRLevel{A1, A2, B1, B2, C1, C2}
}

// Numeric returns the 1-6 value for the level, or 0 for an unknown level.
func (l CEFRLevel) Numeric() int {
	return cefrNumeric[l]
}

// Valid reports whether l is one of A1..C2.
func (l CEFRLevel) Valid() bool {
	_, ok := cefrNumeric[l]
	return ok
}

// ParseCEFR parses a level case-insensitively.
func ParseCEFR(s string) (CEFRLevel, error) {
	l := CEFRLevel(strings.ToUpper(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown CEFR level %q", s)
	}
	return l, nil
}

// VocabularyWord is a single lexical entry.
type VocabularyWord struct {
	ID                 int64     `json:"id" db:"id"`
	Word               string    `json:"word" db:"word"`
	PartOfSpeech       string    `json:"part_of_speech" db:"part_of_speech"`
	CEFR               CEFRLevel `json:"cefr_level" db:"cefr_level"`
	CEFRNumeric        int       `json:"cefr_numeric" db:"cefr_numeric"`
	FrequencyRank      *int      `json:"frequency_rank,omitempty" db:"frequency_rank"`
	ZipfScore          *float64  `json:"zipf_score,omitempty" db:"zipf_score"`
	InNGSL             bool      `json:"in_ngsl" db:"in_ngsl"`
	InNAWL             bool      `json:"in_nawl" db:"in_nawl"`
	KatakanaLoanword   bool      `json:"katakana_loanword" db:"katakana_loanword"`
	FalseCognate       bool      `json:"false_cognate" db:"false_cognate"`
	L1InterferenceRisk bool      `json:"l1_interference_risk" db:"l1_interference_risk"`
	Definition         *string   `json:"definition,omitempty" db:"definition"`
	DifficultyScore    *int      `json:"difficulty_score,omitempty" db:"difficulty_score"`
	ShouldAnnotate     bool      `json:"should_annotate" db:"should_annotate"`
	SourceID           *int64    `json:"source_id,omitempty" db:"source_id"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// SyncCEFRNumeric sets CEFRNumeric from CEFR so the two never disagree.
func (w *VocabularyWord) SyncCEFRNumeric() {
	w.CEFRNumeric = w.CEFR.Numeric()
}
