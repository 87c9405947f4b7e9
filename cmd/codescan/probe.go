package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	codescanner "github.com/e7canasta/orion-care-sensor/modules/code-scanner"
)

func newProbeCommand(a *app) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Measure a camera's frame delivery and suggest a polling interval",
		Example: `  codescan probe
  codescan probe --device /dev/video0 --duration 10s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newScanner()
			if err != nil {
				return err
			}

			fmt.Printf("Probing camera for %s...\n", duration)
			stats, err := s.Probe(cmd.Context(), a.cfg.Scanner.DeviceID, duration)
			if stats == nil {
				printHint(cmd.ErrOrStderr(), err)
				return err
			}

			printWarmup(stats, a.cfg.Scanner.Interval)
			if errors.Is(err, codescanner.ErrUnstable) {
				fmt.Printf("\n%s camera delivery is unstable (high FPS variance or jitter)\n", warnColor.Sprint("WARNING:"))
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "Measurement window")
	return cmd
}

func printWarmup(stats *codescanner.WarmupStats, configured time.Duration) {
	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Probe Complete\n")
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Frames Received:    %6d frames\n", stats.FramesReceived)
	fmt.Printf("│ Duration:           %6.1f seconds\n", stats.Duration.Seconds())
	fmt.Printf("│ FPS Mean:           %6.2f fps\n", stats.FPSMean)
	fmt.Printf("│ FPS StdDev:         %6.2f fps\n", stats.FPSStdDev)
	fmt.Printf("│ FPS Range:          %6.1f - %.1f fps\n", stats.FPSMin, stats.FPSMax)
	fmt.Printf("│ Jitter Mean:        %6.3f s\n", stats.JitterMean)
	fmt.Printf("│ Jitter Max:         %6.3f s\n", stats.JitterMax)
	fmt.Printf("│ Stable:             %6v\n", stats.IsStable)
	fmt.Printf("│ Interval:           %6s (recommended %s)\n",
		configured, codescanner.RecommendedInterval(stats, configured))
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
}
