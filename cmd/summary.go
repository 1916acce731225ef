package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/inference-sim/netsim/sim/scenario"
	"github.com/inference-sim/netsim/sim/trace"
)

func printSummary(w io.Writer, sum *scenario.Summary, elapsed time.Duration) {
	fmt.Fprintf(w, "=== Simulation Summary: %s ===\n", sum.Name)
	fmt.Fprintf(w, "%-18s %s\n", "virtual time:", humanize.Comma(sum.Now))
	fmt.Fprintf(w, "%-18s %s\n", "events:", humanize.Comma(int64(sum.Dispatched)))
	fmt.Fprintf(w, "%-18s %s\n", "entities:", humanize.Comma(int64(sum.Entities)))
	for _, name := range sum.CounterNames() {
		fmt.Fprintf(w, "%-18s %s\n", name+":", humanize.Comma(int64(sum.Counters[name])))
	}
	fmt.Fprintf(w, "%-18s %s\n", "wall time:", elapsed.Round(time.Microsecond))
}

func printTraceSummary(w io.Writer, path string, size int64, ts *trace.TraceSummary) {
	fmt.Fprintf(w, "=== Trace Summary: %s (%s) ===\n", path, humanize.Bytes(uint64(size)))
	fmt.Fprintf(w, "%-18s %s\n", "run id:", ts.Header.RunID)
	fmt.Fprintf(w, "%-18s %d\n", "seed:", ts.Header.Seed)
	fmt.Fprintf(w, "%-18s %s\n", "records:", humanize.Comma(int64(ts.TotalRecords)))
	fmt.Fprintf(w, "%-18s [%s, %s]\n", "time span:", humanize.Comma(ts.FirstTime), humanize.Comma(ts.LastTime))
	tags := make([]string, 0, len(ts.TagDistribution))
	for tag := range ts.TagDistribution {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		fmt.Fprintf(w, "  %-16s %s\n", tag+":", humanize.Comma(int64(ts.TagDistribution[tag])))
	}
}

// printMetrics prints every non-zero counter series in reg, sorted.
func printMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			v := m.GetCounter().GetValue()
			if v == 0 {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %s", mf.GetName(), strings.Join(labels, ","), humanize.Comma(int64(v))))
		}
	}
	sort.Strings(lines)
	fmt.Fprintln(w, "=== RPC Metrics ===")
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	return nil
}
