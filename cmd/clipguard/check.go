package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clipguard/internal/detector"
	"clipguard/internal/resilience"
)

var checkCmd = &cobra.Command{
	Use:   "check <clip>...",
	Short: "Check clips against the blocklist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rows := make([][]string, 0, len(args))

		for _, path := range args {
			src, err := app.openSource(path)
			if err != nil {
				return err
			}

			var v detector.Verdict
			err = resilience.Retry(ctx, resilience.TimeoutRetryConfig(), func() error {
				var checkErr error
				v, checkErr = app.detector.Check(ctx, src, detector.CheckPriority)
				return checkErr
			})
			if err != nil {
				return fmt.Errorf("check %s: %w", path, err)
			}

			distance := "-"
			if v.Match != nil {
				distance = strconv.Itoa(v.Match.Distance)
			}
			rows = append(rows, []string{path, v.Status.String(), distance, shortFingerprint(string(v.Fingerprint))})
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"Clip", "Verdict", "Distance", "Fingerprint"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
