package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	codescanner "github.com/e7canasta/orion-care-sensor/modules/code-scanner"
)

type scanOptions struct {
	Continuous bool
	Timeout    time.Duration
	Adaptive   bool
}

func newScanCommand(a *app) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a code from a camera",
		Long: `Open a camera and poll it until a code is decoded. With --continuous the
scanner restarts after every detection and never repeats the previous value.`,
		Example: `  codescan scan
  codescan scan --device /dev/video2 --quality high
  codescan scan --continuous --formats qr,ean13`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("adaptive") {
				a.cfg.Scanner.AdaptiveInterval = opts.Adaptive
			}
			return runScan(cmd.Context(), a, opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.Continuous, "continuous", "c", false, "Keep scanning after each detection")
	flags.DurationVar(&opts.Timeout, "timeout", 0, "Give up after this long (0 = no limit)")
	flags.BoolVar(&opts.Adaptive, "adaptive", false, "Slow polling down while nothing is found")
	return cmd
}

func runScan(parent context.Context, a *app, opts *scanOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	s, err := a.newScanner()
	if err != nil {
		return err
	}
	defer s.Stop()

	deviceID := a.cfg.Scanner.DeviceID
	fmt.Fprintf(os.Stderr, "%s (Ctrl+C to stop)\n", faintColor.Sprint("Scanning..."))

	for {
		results, err := s.Start(ctx, deviceID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			printHint(os.Stderr, err)
			return err
		}

		detected, err := waitResult(ctx, s, results)
		if err != nil {
			printHint(os.Stderr, err)
			return err
		}
		if !detected || !opts.Continuous {
			break
		}
	}

	printSummary(s.Stats())
	return nil
}

// waitResult prints the run's detection, if any, and guidance changes
// while scanning. It returns false when the run ended without a value.
func waitResult(ctx context.Context, s *codescanner.Scanner, results <-chan codescanner.Detection) (bool, error) {
	guidance := time.NewTicker(500 * time.Millisecond)
	defer guidance.Stop()
	lastHint := ""

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return false, nil

		case d, ok := <-results:
			if ok {
				printDetection(os.Stdout, d)
				return true, nil
			}
			if sess := s.Session(); sess.Status == codescanner.StatusFailed {
				return false, sess.Err
			}
			return false, nil

		case <-guidance.C:
			h := s.Session().Guidance.String()
			if h != lastHint && h != "none" {
				fmt.Fprintf(os.Stderr, "%s %s\n", warnColor.Sprint("»"), h)
			}
			lastHint = h
		}
	}
}

func printSummary(stats codescanner.Stats) {
	fmt.Fprintf(os.Stderr, "%s ticks=%d skipped=%d cycles=%d detections=%d duplicates=%d opens=%d closes=%d\n",
		faintColor.Sprint("stats:"),
		stats.Scan.Ticks,
		stats.Scan.TicksSkipped,
		stats.Scan.Cycles,
		stats.Scan.Detections,
		stats.Scan.Duplicates,
		stats.Capture.Opens,
		stats.Capture.Closes,
	)
}
