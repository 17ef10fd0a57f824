package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/hexkit/cmd/hexctl/logger"
	"github.com/joshuapare/hexkit/pkg/hexkit"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	logDir  string
	useMmap bool

	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "hexctl",
	Short: "Inspect and patch binary files",
	Long: `hexctl inspects, searches and patches arbitrary binary files.
Patches are applied in memory and written back with an atomic
temp-file-and-rename, so an interrupted write never corrupts the file.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		closeFn, err := logger.Init(logger.Options{Enabled: logDir != "", LogDir: logDir, Level: level})
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		closeLog = closeFn
		logger.L.Debug("command start", "cmd", cmd.Name(), "args", args)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVar(&logDir, "log-dir", "", "Write JSON logs to this directory (30 day retention)")
	rootCmd.PersistentFlags().BoolVar(&useMmap, "mmap", false, "Memory-map input files instead of reading them")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// operationOptions maps global flags onto library options.
func operationOptions() *hexkit.OperationOptions {
	return &hexkit.OperationOptions{Mmap: useMmap, Logger: logger.L}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
