package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"clipguard/internal/detector"
	"clipguard/internal/registry"
	"clipguard/internal/resilience"
)

var clipExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".webm": true,
	".mov":  true,
	".avi":  true,
}

var scanAutoBlock bool

type scanResult struct {
	path    string
	verdict detector.Verdict
	blocked bool
	err     error
}

var scanCmd = &cobra.Command{
	Use:   "scan <directory>",
	Short: "Check every clip under a directory against the blocklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clips, err := collectClips(args[0])
		if err != nil {
			return err
		}
		if len(clips) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no clips found")
			return nil
		}

		bar := progressbar.NewOptions(len(clips),
			progressbar.OptionSetDescription("scanning clips"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)

		// One extraction pipeline shared by all clips; repeated ffmpeg
		// failures trip the breaker instead of grinding through the rest.
		breaker := resilience.NewBreaker(resilience.ExtractionBreakerConfig())

		ctx := cmd.Context()
		results := make([]scanResult, len(clips))
		var wg sync.WaitGroup

		// The queue bounds concurrent fingerprint jobs, so one goroutine
		// per clip never runs more than max_concurrent extractions.
		for i, path := range clips {
			wg.Add(1)
			go func(i int, path string) {
				defer wg.Done()
				defer func() { _ = bar.Add(1) }()
				results[i] = scanOne(ctx, path, breaker)
			}(i, path)
		}
		wg.Wait()
		fmt.Fprintln(os.Stderr)

		rows := make([][]string, 0, len(results))
		for _, res := range results {
			switch {
			case res.err != nil:
				rows = append(rows, []string{res.path, "error", "-", res.err.Error()})
			case res.blocked:
				rows = append(rows, []string{res.path, "auto-blocked", "-", shortFingerprint(string(res.verdict.Fingerprint))})
			default:
				distance := "-"
				if res.verdict.Match != nil {
					distance = strconv.Itoa(res.verdict.Match.Distance)
				}
				rows = append(rows, []string{res.path, res.verdict.Status.String(), distance, shortFingerprint(string(res.verdict.Fingerprint))})
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"Clip", "Verdict", "Distance", "Detail"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		))
		return nil
	},
}

func scanOne(ctx context.Context, path string, breaker *resilience.Breaker) scanResult {
	src, err := app.openSource(path)
	if err != nil {
		return scanResult{path: path, err: err}
	}

	var v detector.Verdict
	err = breaker.Execute(func() error {
		var checkErr error
		v, checkErr = app.detector.Check(ctx, src, detector.ScanPriority)
		return checkErr
	})
	if err != nil {
		return scanResult{path: path, err: err}
	}

	res := scanResult{path: path, verdict: v}
	if scanAutoBlock && v.Status == detector.StatusClean {
		added, addErr := app.store.Add(ctx, registry.Record{Fingerprint: v.Fingerprint, Origin: registry.OriginAutomatic})
		if addErr != nil {
			res.err = addErr
		} else {
			res.blocked = added
		}
	}
	return res
}

func collectClips(root string) ([]string, error) {
	var clips []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if clipExtensions[strings.ToLower(filepath.Ext(path))] {
			clips = append(clips, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return clips, nil
}

func init() {
	scanCmd.Flags().BoolVar(&scanAutoBlock, "block", false, "Add clean clips to the blocklist with automatic origin")
	rootCmd.AddCommand(scanCmd)
}
