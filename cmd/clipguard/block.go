package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clipguard/internal/fingerprint"
	"clipguard/internal/registry"
)

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Manage the blocklist",
}

var blockAddCmd = &cobra.Command{
	Use:   "add <clip>...",
	Short: "Fingerprint clips and add them to the blocklist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		for _, path := range args {
			src, err := app.openSource(path)
			if err != nil {
				return err
			}

			fp, added, err := app.detector.Block(ctx, src, registry.OriginManual)
			if err != nil {
				return fmt.Errorf("block %s: %w", path, err)
			}
			if added {
				fmt.Fprintf(cmd.OutOrStdout(), "blocked %s (%s)\n", path, shortFingerprint(string(fp)))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "already blocked %s (%s)\n", path, shortFingerprint(string(fp)))
			}
		}
		return nil
	},
}

var blockListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blocklist entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := app.store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "blocklist is empty")
			return nil
		}

		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			rows = append(rows, []string{
				string(rec.Fingerprint),
				string(rec.Origin),
				rec.CreatedAt.Local().Format(time.RFC3339),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"Fingerprint", "Origin", "Created"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft},
		))
		return nil
	},
}

var blockRemoveCmd = &cobra.Command{
	Use:   "remove <fingerprint>",
	Short: "Remove a blocklist entry by exact fingerprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fp, err := fingerprint.Parse(args[0])
		if err != nil {
			return err
		}

		removed, err := app.store.Remove(cmd.Context(), fp)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("fingerprint not in blocklist: %s", shortFingerprint(args[0]))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "removed")
		return nil
	},
}

var blockClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all blocklist entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.store.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "blocklist cleared")
		return nil
	},
}

func init() {
	blockCmd.AddCommand(blockAddCmd, blockListCmd, blockRemoveCmd, blockClearCmd)
	rootCmd.AddCommand(blockCmd)
}
