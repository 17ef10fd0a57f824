package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/hexkit/display"
	"github.com/joshuapare/hexkit/pkg/hexkit"
)

var (
	dumpOffset  string
	dumpLength  string
	dumpWidth   int
	dumpGroup   int
	dumpFormat  string
	dumpCharset string
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().StringVarP(&dumpOffset, "offset", "s", "0", "Start offset (decimal or 0x hex)")
	cmd.Flags().StringVarP(&dumpLength, "length", "n", "", "Number of bytes (default: to end of file)")
	cmd.Flags().IntVarP(&dumpWidth, "width", "w", display.DefaultBytesPerRow, "Bytes per row")
	cmd.Flags().IntVarP(&dumpGroup, "group", "g", display.DefaultGroup, "Bytes per hex group")
	cmd.Flags().StringVarP(&dumpFormat, "format", "f", "hex", "Output format: hex, hex-stream, raw")
	cmd.Flags().StringVar(&dumpCharset, "charset", "ascii", "Text column charset: ascii, latin1, cp437, windows-1252")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print a hex dump of a file range",
		Long: `The dump command prints bytes of a file as canonical hex dump rows,
as a plain hex stream, or raw.

Example:
  hexctl dump firmware.bin
  hexctl dump firmware.bin --offset 0x100 --length 64
  hexctl dump firmware.bin -w 8 -g 2 --charset cp437
  hexctl dump firmware.bin -s 0x10 -n 4 -f hex-stream`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
	return cmd
}

func dumpOptions() (display.Options, error) {
	format, err := display.ParseFormat(dumpFormat)
	if err != nil {
		return display.Options{}, err
	}
	charset, err := display.ParseCharset(dumpCharset)
	if err != nil {
		return display.Options{}, err
	}
	return display.Options{
		BytesPerRow: dumpWidth,
		Group:       dumpGroup,
		Format:      format,
		Charset:     charset,
	}, nil
}

func runDump(args []string) error {
	path := args[0]

	dopts, err := dumpOptions()
	if err != nil {
		return err
	}
	off, err := hexkit.ParseOffset(dumpOffset)
	if err != nil {
		return err
	}
	n := int64(-1)
	if dumpLength != "" {
		if n, err = hexkit.ParseOffset(dumpLength); err != nil {
			return err
		}
	}

	printVerbose("Dumping %s from 0x%x\n", path, off)
	if err := hexkit.Dump(os.Stdout, path, off, n, dopts, operationOptions()); err != nil {
		return fmt.Errorf("failed to dump %s: %w", path, err)
	}
	return nil
}
