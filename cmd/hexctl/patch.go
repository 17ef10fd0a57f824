package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/hexkit/persist"
	"github.com/joshuapare/hexkit/pkg/hexkit"
)

var (
	patchBackup bool
	patchDryRun bool
	patchSync   string
)

func init() {
	cmd := newPatchCmd()
	cmd.Flags().BoolVar(&patchBackup, "backup", false, "Keep the previous content at <file>.bak")
	cmd.Flags().BoolVar(&patchDryRun, "dry-run", false, "Apply in memory only and report the result")
	cmd.Flags().StringVar(&patchSync, "sync", "auto", "Durability: auto, none, full")
	rootCmd.AddCommand(cmd)
}

func newPatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch <file> <op>...",
		Short: "Apply byte patches to a file atomically",
		Long: `The patch command applies edits in order and saves the file with an
atomic replace. If any edit is out of range nothing is written.

Edit forms (offsets and counts are decimal or 0x hex):
  OFFSET=HEX   overwrite bytes
  OFFSET+HEX   insert bytes
  OFFSET-N     delete N bytes

Example:
  hexctl patch firmware.bin 0x10=ebfe
  hexctl patch firmware.bin 0x200+00000000 0x40-4 --backup
  hexctl patch firmware.bin 0=7f454c46 --dry-run --json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatch(cmd.Context(), args)
		},
	}
	return cmd
}

func runPatch(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	path := args[0]

	ops := make([]hexkit.PatchOp, 0, len(args)-1)
	for _, a := range args[1:] {
		op, err := hexkit.ParsePatch(a)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	mode, err := persist.ParseSyncMode(patchSync)
	if err != nil {
		return err
	}
	opts := operationOptions()
	opts.CreateBackup = patchBackup
	opts.DryRun = patchDryRun
	opts.Sync = mode

	for _, op := range ops {
		printVerbose("  %s\n", op)
	}
	res, err := hexkit.Patch(ctx, path, ops, opts)
	if err != nil {
		return fmt.Errorf("failed to patch %s: %w", path, err)
	}

	if jsonOut {
		return printJSON(res)
	}
	switch {
	case patchDryRun:
		printInfo("Dry run: %d edit(s) would change %d range(s); %s not modified\n",
			res.Applied, len(res.Modified), path)
	case res.Saved:
		printInfo("✓ Applied %d edit(s) to %s (%d bytes)\n", res.Applied, path, res.Size)
	default:
		printInfo("No net change; %s not modified\n", path)
	}
	return nil
}
