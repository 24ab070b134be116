package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AkinduIB/GreenGuard/internal/logger"
)

var (
	// Global flags
	logLevel            string
	recommendationsPath string
)

var rootCmd = &cobra.Command{
	Use:   "greenguard",
	Short: "GreenGuard - plant leaf disease check",
	Long: `GreenGuard classifies a photo of a potato or bell pepper leaf and prints
treatment and prevention advice for the detected condition.

The classifier is a stand-in: it reads the condition from the file name
(e.g. leaf_late_blight_03.jpg) and simulates model latency.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Keep stdout for results.
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&recommendationsPath, "recommendations", "", "recommendation table JSON (default: built-in)")

	rootCmd.AddCommand(classifyCmd, recommendCmd, labelsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
