// Package cli implements the safetyctl command line.
package cli

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "safetyctl",
	Short: "Run and inspect safety state machines",
	Long: "Loads a safety configuration, checks that every level can reach the off\n" +
		"level, and runs it on a fixed tick against simulated IO.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *log.Logger {
	return log.New(os.Stderr, "safetyctl: ", log.LstdFlags|log.Lmicroseconds)
}
