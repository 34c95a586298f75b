package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kobeya/studypartner/internal/domain"
)

// Format is a supported wordlist file format.
type Format int

const (
	CSV Format = iota
	TSV
	XLSX
)

// ErrUnsupportedFormat is returned for files that are not wordlists.
var ErrUnsupportedFormat = errors.New("unsupported wordlist format")

// FormatFromPath returns the format implied by a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, nil
	case ".tsv", ".tab":
		return TSV, nil
	case ".xlsx":
		return XLSX, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// IsWordlist reports whether path has a wordlist extension.
func IsWordlist(path string) bool {
	_, err := FormatFromPath(path)
	return err == nil
}

type column int

const (
	colWord column = iota
	colPOS
	colCEFR
	colRank
	colZipf
	colNGSL
	colNAWL
	colKatakana
	colFalseCognate
	colL1Risk
	colDefinition
)

var headerAliases = map[string]column{
	"word":            colWord,
	"headword":        colWord,
	"lemma":           colWord,
	"pos":             colPOS,
	"part_of_speech":  colPOS,
	"cefr":            colCEFR,
	"cefr_level":      colCEFR,
	"level":           colCEFR,
	"rank":            colRank,
	"frequency_rank":  colRank,
	"zipf":            colZipf,
	"zipf_score":      colZipf,
	"ngsl":            colNGSL,
	"nawl":            colNAWL,
	"katakana":        colKatakana,
	"loanword":        colKatakana,
	"false_cognate":   colFalseCognate,
	"l1_risk":         colL1Risk,
	"l1_interference": colL1Risk,
	"definition":      colDefinition,
}

// RowError describes a row that could not be turned into a word.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Result holds the words parsed from one wordlist and the rows skipped.
type Result struct {
	Words  []domain.VocabularyWord
	Errors []RowError
}

// ParseFile reads a wordlist from the given path.
func ParseFile(path string) (*Result, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file, format)
}

// Parse reads a wordlist with a header row from r.
func Parse(r io.Reader, format Format) (*Result, error) {
	switch format {
	case CSV, TSV:
		reader := csv.NewReader(r)
		if format == TSV {
			reader.Comma = '\t'
			reader.LazyQuotes = true
		}
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		rows, err := reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to read delimited wordlist: %w", err)
		}
		return parseRows(rows)
	case XLSX:
		return ParseXLSX(r)
	}
	return nil, ErrUnsupportedFormat
}

// ParseXLSX reads the first sheet of a workbook.
func ParseXLSX(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Result{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) (*Result, error) {
	result := &Result{}
	if len(rows) == 0 {
		return result, nil
	}

	header := make(map[column]int)
	for i, name := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		if col, ok := headerAliases[key]; ok {
			if _, seen := header[col]; !seen {
				header[col] = i
			}
		}
	}
	if _, ok := header[colWord]; !ok {
		return nil, errors.New("wordlist header has no word column")
	}
	if _, ok := header[colCEFR]; !ok {
		return nil, errors.New("wordlist header has no cefr column")
	}

	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header
		if isBlank(row) {
			continue
		}
		word, err := parseRow(row, header)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Err: err})
			continue
		}
		result.Words = append(result.Words, word)
	}
	return result, nil
}

func parseRow(row []string, header map[column]int) (domain.VocabularyWord, error) {
	get := func(c column) string {
		i, ok := header[c]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	w := domain.VocabularyWord{
		Word:         get(colWord),
		PartOfSpeech: strings.ToLower(get(colPOS)),
	}
	if w.Word == "" {
		return w, errors.New("missing word")
	}

	level, err := domain.ParseCEFR(get(colCEFR))
	if err != nil {
		return w, err
	}
	w.CEFR = level
	w.SyncCEFRNumeric()

	if v := get(colRank); v != "" {
		rank, err := strconv.Atoi(v)
		if err != nil || rank <= 0 {
			return w, fmt.Errorf("invalid frequency rank %q", v)
		}
		w.FrequencyRank = &rank
	}
	if v := get(colZipf); v != "" {
		z, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(z) || math.IsInf(z, 0) {
			return w, fmt.Errorf("invalid zipf score %q", v)
		}
		w.ZipfScore = &z
	}
	if v := get(colDefinition); v != "" {
		w.Definition = &v
	}

	w.InNGSL = parseFlag(get(colNGSL))
	w.InNAWL = parseFlag(get(colNAWL))
	w.KatakanaLoanword = parseFlag(get(colKatakana))
	w.FalseCognate = parseFlag(get(colFalseCognate))
	w.L1InterferenceRisk = parseFlag(get(colL1Risk))
	return w, nil
}

func parseFlag(v string) bool {
	switch strings.ToLower(v) {
	case "y", "yes", "x", "✓", "○":
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
