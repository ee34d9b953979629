package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"llmclass/internal/batch"
	"llmclass/internal/store"
	"llmclass/internal/taxonomy"
)

const classificationPreview = 200

func renderImageResults(results []batch.ImageResult) string {
	rows := make([][]string, 0, len(results))
	for i, r := range results {
		classification := r.Classification
		if !r.OK() {
			classification = taxonomy.ErrorLabel + ": " + r.Message
		}
		size := "-"
		if r.Size > 0 {
			size = humanize.IBytes(uint64(r.Size))
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.File,
			truncate(oneLine(classification), classificationPreview),
			size,
			strconv.Itoa(r.Attempts),
		})
	}
	return renderTable([]column{numCol("#"), textCol("File"), wrapCol("Classification", 60), numCol("Sent"), numCol("Attempts")}, rows)
}

func renderRuns(runs []store.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.Pipeline,
			string(run.Status),
			run.Model,
			strconv.Itoa(run.Processed) + "/" + strconv.Itoa(run.Total),
			strconv.Itoa(run.Succeeded),
			strconv.Itoa(run.Failed),
			humanize.Time(run.StartedAt),
			runDuration(run),
		})
	}
	return renderTable([]column{
		textCol("ID"), textCol("Pipeline"), textCol("Status"), textCol("Model"),
		numCol("Items"), numCol("OK"), numCol("Errors"), textCol("Started"), numCol("Duration"),
	}, rows)
}

func renderRunResults(results []store.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		output := r.Output
		if !r.OK {
			status = "error"
			output = r.Error
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Seq + 1),
			r.Item,
			status,
			truncate(oneLine(output), 80),
			strconv.Itoa(r.Attempts),
		})
	}
	return renderTable([]column{numCol("#"), textCol("Item"), textCol("Status"), wrapCol("Output", 60), numCol("Attempts")}, rows)
}

func runDuration(run store.Run) string {
	if run.FinishedAt.IsZero() || run.StartedAt.IsZero() {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func oneLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
