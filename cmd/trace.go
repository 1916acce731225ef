package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/netsim/sim/trace"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Inspect trace files written by run --trace",
}

var traceSummarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Print record counts per data set",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := summarizeTrace(args[0], os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func summarizeTrace(path string, out io.Writer) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading trace: %w", err)
	}
	r, err := trace.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	ts, err := trace.Summarize(r)
	if err != nil {
		return err
	}
	printTraceSummary(out, path, info.Size(), ts)
	return nil
}

func init() {
	traceCmd.AddCommand(traceSummarizeCmd)
}
