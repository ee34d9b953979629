package batch

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Summary counts the outcome of a batch.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	// Bytes is the total JPEG payload sent (image pipeline only).
	Bytes int64
}

// SummarizeText counts text results.
func SummarizeText(results []TextResult, elapsed time.Duration) Summary {
	s := Summary{Total: len(results), Elapsed: elapsed}
	for _, r := range results {
		if r.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// SummarizeImages counts image results.
func SummarizeImages(results []ImageResult, elapsed time.Duration) Summary {
	s := Summary{Total: len(results), Elapsed: elapsed}
	for _, r := range results {
		s.Bytes += int64(r.Size)
		if r.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

func (s Summary) String() string {
	out := fmt.Sprintf("%d processed, %d successful, %d errors in %s",
		s.Total, s.Succeeded, s.Failed, s.Elapsed.Round(10*time.Millisecond))
	if s.Bytes > 0 {
		out += fmt.Sprintf(" (%s sent)", humanize.IBytes(uint64(s.Bytes)))
	}
	return out
}
