package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/hexkit/display"
	"github.com/joshuapare/hexkit/pkg/hexkit"
)

var (
	findText       bool
	findBackward   bool
	findStart      string
	findMaxResults int
)

func init() {
	cmd := newFindCmd()
	cmd.Flags().BoolVar(&findText, "text", false, "Treat the pattern as literal text instead of hex")
	cmd.Flags().BoolVar(&findBackward, "backward", false, "Scan from the end towards the start")
	cmd.Flags().StringVar(&findStart, "start", "", "Start offset (default: start, or end with --backward)")
	cmd.Flags().IntVar(&findMaxResults, "max-results", 0, "Limit results (0 = unlimited)")
	rootCmd.AddCommand(cmd)
}

func newFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <file> <pattern>",
		Short: "Find the offsets of a byte pattern",
		Long: `The find command lists every offset where the pattern occurs,
overlapping matches included. The pattern is hex by default.

Example:
  hexctl find firmware.bin "de ad be ef"
  hexctl find firmware.bin 0x7f454c46 --max-results 1
  hexctl find firmware.bin "ELF" --text --backward`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd.Context(), args)
		},
	}
	return cmd
}

type findResult struct {
	Pattern string  `json:"pattern"`
	Offsets []int64 `json:"offsets"`
}

func runFind(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	path := args[0]

	format := display.Hex
	if findText {
		format = display.Raw
	}
	pattern, err := display.ParsePattern(args[1], format)
	if err != nil {
		return err
	}

	fopts := &hexkit.FindOptions{Backward: findBackward, MaxResults: findMaxResults, Start: -1}
	if findStart != "" {
		if fopts.Start, err = hexkit.ParseOffset(findStart); err != nil {
			return err
		}
	} else if !findBackward {
		fopts.Start = 0
	}

	printVerbose("Searching %s for %s\n", path, display.Hex.Encode(pattern))
	offsets, err := hexkit.Find(ctx, path, pattern, fopts, operationOptions())
	if err != nil {
		return fmt.Errorf("failed to search %s: %w", path, err)
	}

	if jsonOut {
		return printJSON(findResult{Pattern: display.HexStream.Encode(pattern), Offsets: offsets})
	}
	for _, off := range offsets {
		printInfo("0x%08x\n", off)
	}
	printVerbose("%d match(es)\n", len(offsets))
	return nil
}
