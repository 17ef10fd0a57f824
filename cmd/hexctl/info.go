package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/hexkit/pkg/hexkit"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Report size, mode and fingerprint of a file",
		Long: `The info command reports basic metadata for a file: its size,
permissions, modification time and xxhash64 fingerprint.

Example:
  hexctl info firmware.bin
  hexctl info firmware.bin --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
	return cmd
}

func runInfo(args []string) error {
	path := args[0]

	printVerbose("Inspecting: %s\n", path)

	info, err := hexkit.Info(path, operationOptions())
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nFile Information:\n")
	printInfo("  File: %s\n", info.Path)
	printInfo("  Size: %s (%s bytes)\n", humanize.IBytes(uint64(info.Size)), humanize.Comma(info.Size))
	printInfo("  Mode: %s\n", info.Mode)
	printInfo("  Modified: %s (%s)\n", info.ModTime.Format("2006-01-02 15:04:05"), humanize.Time(info.ModTime))
	printInfo("  Fingerprint: %016x\n", info.Fingerprint)
	return nil
}
