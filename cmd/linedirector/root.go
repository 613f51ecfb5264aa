// linedirector computes safe two-stage generation parameters for animation
// line cleanup from qualitative observation reports.
//
// Usage:
//
//	linedirector plan -i sketch.json [-r reference.json] [-o plan.json]
//	linedirector batch -i frames.json [--parallel=N] [--shared]
//	linedirector profiles
//	linedirector serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"linedirector/internal/logging"
	"linedirector/internal/policy"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	policyPath string
	logLevel   string
	logFormat  string
}

var rootCmd = &cobra.Command{
	Use:   "linedirector",
	Short: "Deterministic parameter planning for two-stage sketch cleanup",
	Long: "Linedirector turns qualitative sketch observations, an optional style\n" +
		"reference, and caller intent into a clamped, reproducible parameter plan\n" +
		"for a two-stage diffusion cleanup pipeline.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return err
		}
		logging.Init(level, rootFlags.logFormat)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.policyPath, "policy", "", "Policy table YAML path (default: embedded table)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

// loadTable loads the policy table named by --policy, or the embedded default.
func loadTable() (*policy.Table, error) {
	if rootFlags.policyPath != "" {
		return policy.LoadFile(rootFlags.policyPath)
	}
	return policy.Default()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
