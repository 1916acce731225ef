package trace

import (
	"errors"
	"io"
)

// TraceSummary aggregates statistics over the entries of a trace.
type TraceSummary struct {
	Header          Header
	TotalRecords    int
	FirstTime       int64
	LastTime        int64
	TagDistribution map[string]int // data set name → record count
}

// Summarize drains r and counts its entries.
// Safe for a trace without records (returns zero-value fields).
func Summarize(r *Reader) (*TraceSummary, error) {
	summary := &TraceSummary{
		Header:          r.Header(),
		TagDistribution: make(map[string]int),
	}
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return summary, nil
		}
		if err != nil {
			return summary, err
		}
		if summary.TotalRecords == 0 {
			summary.FirstTime = e.Time
		}
		summary.TotalRecords++
		summary.LastTime = e.Time
		summary.TagDistribution[e.Tag]++
	}
}
