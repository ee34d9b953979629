package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"llmclass/internal/dataset"
	"llmclass/internal/textclass"
)

type scriptedClassifier struct {
	fail  map[string]bool
	calls []string
}

func (s *scriptedClassifier) Classify(_ context.Context, sentence string) textclass.Classification {
	s.calls = append(s.calls, sentence)
	if s.fail[sentence] {
		return textclass.Classification{Reply: textclass.Reply{Failure: &textclass.Failure{Reason: textclass.ReasonJSONParse}}, Attempts: 3}
	}
	return textclass.Classification{
		Reply:    textclass.Normalize(`{"sentences":[{"sense":"Physical","reference":"Job","attribution":"Self"}]}`),
		Attempts: 1,
	}
}

type recordingSink struct {
	processed []int
	sizes     []int
	err       error
}

func (r *recordingSink) Checkpoint(_ context.Context, processed int, results []TextResult) error {
	r.processed = append(r.processed, processed)
	r.sizes = append(r.sizes, len(results))
	return r.err
}

func makeRows(n int) []dataset.Row {
	rows := make([]dataset.Row, n)
	for i := range rows {
		rows[i] = dataset.Row{
			Line:      i + 2,
			BioNum:    "1",
			FraseNum:  fmt.Sprint(i + 1),
			Sentence:  fmt.Sprintf("frase %d", i+1),
			Sense:     "Attitudinal",
			Reference: "",
		}
	}
	return rows
}

func TestTextRunnerOneResultPerRowInOrder(t *testing.T) {
	rows := makeRows(25)
	classifier := &scriptedClassifier{fail: map[string]bool{"frase 3": true, "frase 17": true}}
	sink := &recordingSink{}
	var sleeps []time.Duration
	var progress []int
	runner := &TextRunner{
		Classifier: classifier,
		Sink:       sink,
		Interval:   10,
		Delay:      500 * time.Millisecond,
		Progress:   func(done, total int, _ string) { progress = append(progress, done) },
		Sleep: func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		},
	}

	results, err := runner.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != len(rows) {
		t.Fatalf("expected %d results, got %d", len(rows), len(results))
	}
	for i, r := range results {
		if r.Row.Sentence != rows[i].Sentence {
			t.Fatalf("result %d out of order: %q", i, r.Row.Sentence)
		}
		wantFail := rows[i].Sentence == "frase 3" || rows[i].Sentence == "frase 17"
		if r.OK() == wantFail {
			t.Fatalf("result %d ok=%v, want failure=%v", i, r.OK(), wantFail)
		}
		if r.SenseTrue != "Subconsensual" || r.ReferenceTrue != "NA" || r.AttributionTrue != "NA" {
			t.Fatalf("unexpected ground truth %+v", r)
		}
	}
	if fmt.Sprint(sink.processed) != "[10 20]" || fmt.Sprint(sink.sizes) != "[10 20]" {
		t.Fatalf("unexpected checkpoints %v sizes %v", sink.processed, sink.sizes)
	}
	if len(sleeps) != len(rows)-1 || sleeps[0] != 500*time.Millisecond {
		t.Fatalf("expected %d delays of 500ms, got %v", len(rows)-1, sleeps)
	}
	if len(progress) != len(rows) || progress[len(progress)-1] != len(rows) {
		t.Fatalf("unexpected progress calls %v", progress)
	}

	failed := results[2].Record()
	if failed.SensePredicted != "ERROR" || failed.Error != "Error: JSON parsing error" {
		t.Fatalf("unexpected failed record %+v", failed)
	}
	ok := results[0].Record()
	if ok.SensePredicted != "Consensual" || ok.ReferencePredicted != "Anclaje" || ok.Error != "" {
		t.Fatalf("unexpected record %+v", ok)
	}
}

func TestTextRunnerCheckpointFailureDoesNotAbort(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	runner := &TextRunner{Classifier: &scriptedClassifier{}, Sink: sink, Interval: 2}
	results, err := runner.Run(context.Background(), makeRows(5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 5 || len(sink.processed) != 2 {
		t.Fatalf("expected 5 results and 2 checkpoint attempts, got %d and %d", len(results), len(sink.processed))
	}
}

func TestTextRunnerCancellationReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	classifier := &scriptedClassifier{}
	runner := &TextRunner{
		Classifier: classifier,
		Delay:      time.Second,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			if len(classifier.calls) == 3 {
				cancel()
				return ctx.Err()
			}
			return nil
		},
	}
	results, err := runner.Run(ctx, makeRows(10))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 partial results, got %d", len(results))
	}
}

func TestCSVCheckpointSink(t *testing.T) {
	dir := t.TempDir()
	runner := &TextRunner{Classifier: &scriptedClassifier{}, Sink: CSVCheckpointSink{Dir: dir}, Interval: 10}
	if _, err := runner.Run(context.Background(), makeRows(21)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, n := range []int{10, 20} {
		path := filepath.Join(dir, fmt.Sprintf("temp_results_%d.csv", n))
		back, err := dataset.ReadResultsFile(path)
		if err != nil {
			t.Fatalf("read checkpoint %d: %v", n, err)
		}
		if len(back) != n {
			t.Fatalf("checkpoint %d has %d rows", n, len(back))
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "temp_results_21.csv")); !os.IsNotExist(err) {
		t.Fatalf("unexpected checkpoint for partial interval: %v", err)
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{err: errors.New("boom")}
	err := MultiSink{a, nil, b, NopSink{}}.Checkpoint(context.Background(), 1, nil)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(a.processed) != 1 || len(b.processed) != 1 {
		t.Fatal("expected both sinks to be called")
	}
}

func TestSummarizeText(t *testing.T) {
	classifier := &scriptedClassifier{fail: map[string]bool{"frase 1": true}}
	results, _ := (&TextRunner{Classifier: classifier}).Run(context.Background(), makeRows(4))
	s := SummarizeText(results, 1500*time.Millisecond)
	if s.Total != 4 || s.Succeeded != 3 || s.Failed != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if !strings.Contains(s.String(), "3 successful, 1 errors") {
		t.Fatalf("unexpected summary text %q", s.String())
	}
}
