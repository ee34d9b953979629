package dataset

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"

	"llmclass/internal/config"
	"llmclass/internal/services"
)

const sample = "\ufeffbio_num,frase_num,frase,sense_ME,reference_ME,attribution_ME\n" +
	"1,1,Soy alto,Physical,Physical Characteristics,Self\n" +
	"1,2,\"Me gusta, mucho, el mar\",Preference,,\n" +
	"2,1,Trabajo,Activity,Job\n"

func TestReadCSV(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(sample), config.DefaultColumns(), 0)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].BioNum != "1" || rows[0].Sentence != "Soy alto" || rows[0].Reference != "Physical Characteristics" {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].Sentence != "Me gusta, mucho, el mar" || rows[1].Reference != "" {
		t.Fatalf("unexpected quoted row %+v", rows[1])
	}
	if rows[2].Attribution != "" || rows[2].Line != 4 {
		t.Fatalf("short row should read missing cells as empty: %+v", rows[2])
	}
	if rows[1].ID() != "1/2" {
		t.Fatalf("unexpected id %q", rows[1].ID())
	}
}

func TestReadCSVUTF16WithBOM(t *testing.T) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(strings.TrimPrefix(sample, "\ufeff"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rows, err := ReadCSV(strings.NewReader(encoded), config.DefaultColumns(), 0)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 3 || rows[0].BioNum != "1" || rows[2].Sentence != "Trabajo" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestReadCSVLimitAndCustomColumns(t *testing.T) {
	data := "id,text\n7,uno\n8,dos\n9,tres\n"
	cols := Columns{BioNum: "id", Sentence: "text"}
	rows, err := ReadCSV(strings.NewReader(data), cols, 2)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 2 || rows[1].Sentence != "dos" || rows[1].BioNum != "8" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestReadCSVErrors(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader(""), config.DefaultColumns(), 0); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for empty file, got %v", err)
	}
	if _, err := ReadCSV(strings.NewReader("a,b\n1,2\n"), config.DefaultColumns(), 0); err == nil || !strings.Contains(err.Error(), "frase") {
		t.Fatalf("expected missing column error, got %v", err)
	}
	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), config.DefaultColumns(), 0); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for missing file, got %v", err)
	}
}

func TestWriteAndReadResults(t *testing.T) {
	results := []Result{
		{BioNum: "1", FraseNum: "1", Sentence: "Soy \"yo\"", SenseTrue: "Consensual", SensePredicted: "Consensual",
			ReferenceTrue: "NA", ReferencePredicted: "Anclaje", AttributionTrue: "Self", AttributionPredicted: "Self",
			Response: `{"sentences":[]}`},
		{BioNum: "1", FraseNum: "2", Sentence: "x", SensePredicted: "ERROR", ReferencePredicted: "ERROR",
			AttributionPredicted: "ERROR", Error: "Error: JSON parsing error"},
	}
	var buf bytes.Buffer
	if err := WriteResults(&buf, results); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}
	firstLine := strings.SplitN(buf.String(), "\n", 2)[0]
	if firstLine != strings.Join(ResultHeader, ",") {
		t.Fatalf("unexpected header %q", firstLine)
	}

	path := filepath.Join(t.TempDir(), "out", "results.csv")
	if err := WriteResultsFile(path, results); err != nil {
		t.Fatalf("WriteResultsFile: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected only the results file, got %v (%v)", entries, err)
	}
	back, err := ReadResultsFile(path)
	if err != nil {
		t.Fatalf("ReadResultsFile: %v", err)
	}
	if len(back) != 2 || back[0] != results[0] || back[1] != results[1] {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}
