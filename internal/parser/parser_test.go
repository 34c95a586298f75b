package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kobeya/studypartner/internal/domain"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name           string
		input          string
		format         Format
		expectedWords  int
		expectedErrors int
		expectedWord   string
		expectedCEFR   domain.CEFRLevel
	}{
		{
			name:          "Simple CSV",
			input:         "word,cefr\ncomprehend,C1",
			format:        CSV,
			expectedWords: 1,
			expectedWord:  "comprehend",
			expectedCEFR:  domain.C1,
		},
		{
			name:          "Header aliases and case",
			input:         "Headword,Part of Speech,Level,Zipf Score\nthe,det,a1,7.9",
			format:        CSV,
			expectedWords: 1,
			expectedWord:  "the",
			expectedCEFR:  domain.A1,
		},
		{
			name:          "TSV",
			input:         "word\tcefr\tngsl\nsmall\tA1\ttrue\nlarge\tA2\t1",
			format:        TSV,
			expectedWords: 2,
			expectedWord:  "small",
			expectedCEFR:  domain.A1,
		},
		{
			name:           "Bad rows are reported and skipped",
			input:          "word,cefr,zipf\n,B1,\nbicycle,Z9,\nbridge,B1,abc\nbrave,B1,4.1",
			format:         CSV,
			expectedWords:  1,
			expectedErrors: 3,
			expectedWord:   "brave",
			expectedCEFR:   domain.B1,
		},
		{
			name:          "Blank lines ignored",
			input:         "word,cefr\n\nquiet,A2\n,\n",
			format:        CSV,
			expectedWords: 1,
			expectedWord:  "quiet",
			expectedCEFR:  domain.A2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Parse(strings.NewReader(tc.input), tc.format)
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}

			if len(result.Words) != tc.expectedWords {
				t.Fatalf("Expected %d words, but got %d", tc.expectedWords, len(result.Words))
			}
			if len(result.Errors) != tc.expectedErrors {
				t.Fatalf("Expected %d row errors, but got %d: %v", tc.expectedErrors, len(result.Errors), result.Errors)
			}

			w := result.Words[0]
			if w.Word != tc.expectedWord {
				t.Errorf("Expected word '%s', but got '%s'", tc.expectedWord, w.Word)
			}
			if w.CEFR != tc.expectedCEFR {
				t.Errorf("Expected CEFR '%s', but got '%s'", tc.expectedCEFR, w.CEFR)
			}
			if w.CEFRNumeric != tc.expectedCEFR.Numeric() {
				t.Errorf("Expected CEFR numeric %d, but got %d", tc.expectedCEFR.Numeric(), w.CEFRNumeric)
			}
		})
	}
}

func TestParseRejectsNonFiniteZipf(t *testing.T) {
	input := "word,cefr,zipf\ncomprehend,C2,NaN\nfoo,B1,+Inf\nbar,B1,-inf\nbaz,B1,3.5\n"

	result, err := Parse(strings.NewReader(input), CSV)
	if err != nil {
		t.Fatalf("Parse() returned an unexpected error: %v", err)
	}
	if len(result.Words) != 1 || result.Words[0].Word != "baz" {
		t.Fatalf("Expected only 'baz' to be accepted, got %+v", result.Words)
	}
	if len(result.Errors) != 3 {
		t.Fatalf("Expected 3 row errors, got %d: %v", len(result.Errors), result.Errors)
	}
	for _, rowErr := range result.Errors {
		if !strings.Contains(rowErr.Error(), "invalid zipf score") {
			t.Errorf("Unexpected row error: %v", rowErr)
		}
	}
}

func TestParseAllColumns(t *testing.T) {
	input := "word,pos,cefr,rank,zipf,ngsl,nawl,katakana,false_cognate,l1_risk,definition\n" +
		"mansion,noun,B2,5400,3.4,no,yes,x,y,1,a large impressive house\n"

	result, err := Parse(strings.NewReader(input), CSV)
	if err != nil {
		t.Fatalf("Parse() returned an unexpected error: %v", err)
	}
	if len(result.Words) != 1 {
		t.Fatalf("Expected 1 word, got %d", len(result.Words))
	}

	w := result.Words[0]
	if w.PartOfSpeech != "noun" {
		t.Errorf("Expected part of speech 'noun', got '%s'", w.PartOfSpeech)
	}
	if w.FrequencyRank == nil || *w.FrequencyRank != 5400 {
		t.Errorf("Expected rank 5400, got %v", w.FrequencyRank)
	}
	if w.ZipfScore == nil || *w.ZipfScore != 3.4 {
		t.Errorf("Expected zipf 3.4, got %v", w.ZipfScore)
	}
	if w.InNGSL || !w.InNAWL || !w.KatakanaLoanword || !w.FalseCognate || !w.L1InterferenceRisk {
		t.Errorf("Unexpected flags: %+v", w)
	}
	if w.Definition == nil || *w.Definition != "a large impressive house" {
		t.Errorf("Unexpected definition: %v", w.Definition)
	}
}

func TestParseMissingHeader(t *testing.T) {
	_, err := Parse(strings.NewReader("lemma,zipf\nthe,7.9"), CSV)
	if err == nil {
		t.Fatal("Expected an error for a wordlist without a cefr column")
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"word", "cefr", "nawl"},
		{"analyse", "B2", "TRUE"},
		{"hypothesis", "C1", "TRUE"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	result, err := Parse(buf, XLSX)
	if err != nil {
		t.Fatalf("Parse() returned an unexpected error: %v", err)
	}
	if len(result.Words) != 2 {
		t.Fatalf("Expected 2 words, got %d", len(result.Words))
	}
	if !result.Words[1].InNAWL || result.Words[1].CEFR != domain.C1 {
		t.Errorf("Unexpected second word: %+v", result.Words[1])
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eiken-pre2.csv")
	if err := os.WriteFile(path, []byte("word,cefr\nenvironment,B1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() returned an unexpected error: %v", err)
	}
	if len(result.Words) != 1 {
		t.Errorf("Expected 1 word, got %d", len(result.Words))
	}

	_, err = ParseFile(filepath.Join(dir, "notes.md"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}
