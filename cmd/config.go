package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/netsim/sim"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Work with run configuration files",
}

// configDefaultCmd prints a config file that run --config accepts as-is.
var configDefaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Print the default configuration as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		if err := writeDefaultConfig(os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func writeDefaultConfig(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(sim.DefaultConfig()); err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	return enc.Close()
}

func init() {
	configCmd.AddCommand(configDefaultCmd)
}
