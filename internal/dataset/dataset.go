package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"llmclass/internal/config"
	"llmclass/internal/fileutil"
	"llmclass/internal/services"
)

// Columns names the dataset headers read by LoadCSV.
type Columns = config.Columns

// Row is one statement from the dataset with its ground-truth labels as
// written in the file.
type Row struct {
	// Line is the 1-based line number in the source file.
	Line        int
	BioNum      string
	FraseNum    string
	Sentence    string
	Sense       string
	Reference   string
	Attribution string
}

// ID identifies the row in logs.
func (r Row) ID() string {
	if r.BioNum != "" || r.FraseNum != "" {
		return fmt.Sprintf("%s/%s", r.BioNum, r.FraseNum)
	}
	return fmt.Sprintf("line %d", r.Line)
}

// LoadCSV reads the dataset at path. The sentence column is required; the
// identifier and label columns may be absent, in which case they read as
// empty. limit > 0 truncates the result.
func LoadCSV(path string, cols Columns, limit int) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "dataset", "open", path, err)
	}
	defer file.Close()
	rows, err := ReadCSV(file, cols, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// ReadCSV parses a dataset from r; see LoadCSV. A leading UTF-8 or UTF-16
// byte order mark selects the encoding and is dropped.
func ReadCSV(r io.Reader, cols Columns, limit int) ([]Row, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, services.Wrap(services.ErrInput, "dataset", "read header", "file is empty", nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "dataset", "read header", "", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	sentenceIdx, ok := index[cols.Sentence]
	if !ok {
		return nil, services.Wrap(services.ErrInput, "dataset", "read header", fmt.Sprintf("missing column %q", cols.Sentence), nil)
	}
	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrInput, "dataset", "parse", "", err)
		}
		line, _ := reader.FieldPos(0)
		if sentenceIdx >= len(record) {
			return nil, services.Wrap(services.ErrInput, "dataset", "parse", fmt.Sprintf("line %d: missing sentence", line), nil)
		}
		rows = append(rows, Row{
			Line:        line,
			BioNum:      strings.TrimSpace(field(record, cols.BioNum)),
			FraseNum:    strings.TrimSpace(field(record, cols.FraseNum)),
			Sentence:    record[sentenceIdx],
			Sense:       field(record, cols.Sense),
			Reference:   field(record, cols.Reference),
			Attribution: field(record, cols.Attribution),
		})
		if limit > 0 && len(rows) >= limit {
			break
		}
	}
	return rows, nil
}

// ResultHeader is the column order of result and checkpoint files.
var ResultHeader = []string{
	"bio_num", "frase_num", "frase",
	"sense_true", "sense_predicted",
	"reference_true", "reference_predicted",
	"attribution_true", "attribution_predicted",
	"gpt_response", "error",
}

// Result is one persisted classification row.
type Result struct {
	BioNum               string
	FraseNum             string
	Sentence             string
	SenseTrue            string
	SensePredicted       string
	ReferenceTrue        string
	ReferencePredicted   string
	AttributionTrue      string
	AttributionPredicted string
	Response             string
	Error                string
}

func (r Result) record() []string {
	return []string{
		r.BioNum, r.FraseNum, r.Sentence,
		r.SenseTrue, r.SensePredicted,
		r.ReferenceTrue, r.ReferencePredicted,
		r.AttributionTrue, r.AttributionPredicted,
		r.Response, r.Error,
	}
}

// WriteResults writes the header and one line per result.
func WriteResults(w io.Writer, results []Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ResultHeader); err != nil {
		return err
	}
	for _, result := range results {
		if err := writer.Write(result.record()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteResultsFile writes results to path atomically.
func WriteResultsFile(path string, results []Result) error {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return WriteResults(w, results)
	})
}

// ReadResultsFile loads a results or checkpoint file written by
// WriteResultsFile.
func ReadResultsFile(path string) ([]Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header", path)
	}
	results := make([]Result, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < len(ResultHeader) {
			padded := make([]string, len(ResultHeader))
			copy(padded, rec)
			rec = padded
		}
		results = append(results, Result{
			BioNum: rec[0], FraseNum: rec[1], Sentence: rec[2],
			SenseTrue: rec[3], SensePredicted: rec[4],
			ReferenceTrue: rec[5], ReferencePredicted: rec[6],
			AttributionTrue: rec[7], AttributionPredicted: rec[8],
			Response: rec[9], Error: rec[10],
		})
	}
	return results, nil
}
