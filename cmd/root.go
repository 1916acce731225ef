package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/netsim/sim"
	"github.com/inference-sim/netsim/sim/rpc"
	"github.com/inference-sim/netsim/sim/scenario"
	"github.com/inference-sim/netsim/sim/trace"
)

var (
	configPath   string // Optional YAML run configuration
	seed         int64  // Seed for latency draws and scenario wiring
	horizon      int64  // Simulation horizon in ticks (0 = until the queue drains)
	logLevel     string // Log verbosity level
	scenarioName string // Scenario to run
	nodes        int    // Node count for network scenarios
	tracePath    string // Trace output file
	traceGzip    bool   // Compress the trace output
	showMetrics  bool   // Print RPC counters after the run
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "netsim",
	Short: "Deterministic discrete-event simulator for distributed protocols",
}

// runCmd runs one scenario using the config file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a bundled scenario",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := loadRunConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := runSimulation(cfg, showMetrics, os.Stdout); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// loadRunConfig reads --config (or the defaults) and applies only the flags
// the user actually set, so file values are not clobbered by flag defaults.
func loadRunConfig(cmd *cobra.Command) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if configPath != "" {
		loaded, err := sim.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = *loaded
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("horizon") {
		cfg.Horizon = horizon
	}
	if flags.Changed("scenario") {
		cfg.Scenario.Name = scenarioName
	}
	if flags.Changed("nodes") {
		cfg.Scenario.Nodes = nodes
	}
	if flags.Changed("trace") {
		cfg.Trace.Path = tracePath
	}
	if flags.Changed("gzip") {
		cfg.Trace.Gzip = traceGzip
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// runSimulation runs the configured scenario and prints its summary to out.
func runSimulation(cfg sim.Config, metrics bool, out io.Writer) error {
	logrus.Infof("Starting %s with seed=%d, horizon=%d, latency=%s[%d,+%d)",
		cfg.Scenario.Name, cfg.Seed, cfg.Horizon, cfg.Latency.Distribution, cfg.Latency.Base, cfg.Latency.Mean)
	startTime := time.Now()

	s := sim.NewSimulator(sim.NewSimulationKey(cfg.Seed))

	var w *trace.Writer
	if cfg.Trace.Path != "" {
		var err error
		w, err = trace.Create(cfg.Trace.Path, cfg.Trace.Gzip, trace.NewHeader(cfg.Seed))
		if err != nil {
			return err
		}
	}
	reg := trace.NewRegistry(s, w)
	s.AddFlusher(reg)

	promReg := prometheus.NewRegistry()
	m, err := rpc.NewMetrics(promReg)
	if err != nil {
		return err
	}

	sum, runErr := scenario.Run(scenario.Env{Sim: s, Trace: reg, Metrics: m}, cfg)
	if err := reg.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return runErr
	}

	printSummary(out, sum, time.Since(startTime))
	if cfg.Trace.Path != "" {
		fmt.Fprintf(out, "Trace written to %s\n", cfg.Trace.Path)
	}
	if metrics {
		return printMetrics(out, promReg)
	}
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerRunFlags binds the run flags to cmd. Defining a flag resets its
// variable to the default.
func registerRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML run configuration")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for latency draws and scenario wiring")
	cmd.Flags().Int64Var(&horizon, "horizon", 0, "Total simulation horizon (in ticks, 0 = until the queue drains)")
	cmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	cmd.Flags().StringVar(&scenarioName, "scenario", scenario.NameProducerConsumer, "Scenario (producer-consumer, broadcast, liveness, rpc-flood)")
	cmd.Flags().IntVar(&nodes, "nodes", 10, "Number of nodes in network scenarios")
	cmd.Flags().StringVar(&tracePath, "trace", "", "Write DataSet records to this file")
	cmd.Flags().BoolVar(&traceGzip, "gzip", false, "Gzip the trace file")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print RPC message counters after the run")
}

// init sets up CLI flags and subcommands
func init() {
	registerRunFlags(runCmd)

	// Attach subcommands to `root`
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(configCmd)
}
