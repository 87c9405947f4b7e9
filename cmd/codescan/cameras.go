package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type camerasOptions struct {
	OutputFormat string
}

func newCamerasCommand(a *app) *cobra.Command {
	opts := &camerasOptions{}

	cmd := &cobra.Command{
		Use:   "cameras",
		Short: "List cameras in scanning preference order",
		Example: `  codescan cameras
  codescan cameras --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCameras(cmd, a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFormat, "output", "o", "text", "Output format (json or text)")
	cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "text"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

type cameraJSON struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Facing string `json:"facing"`
}

func runCameras(cmd *cobra.Command, a *app, opts *camerasOptions) error {
	s, err := a.newScanner()
	if err != nil {
		return err
	}

	devices, err := s.ListCameras(cmd.Context())
	if err != nil {
		printHint(os.Stderr, err)
		return err
	}

	switch opts.OutputFormat {
	case "json":
		out := make([]cameraJSON, 0, len(devices))
		for _, d := range devices {
			out = append(out, cameraJSON{ID: d.ID, Label: d.Label, Facing: d.Facing.String()})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)

	case "text":
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tID\tLABEL\tFACING")
		for i, d := range devices {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, d.ID, d.Label, facingColor(d.Facing).Sprint(d.Facing))
		}
		return tw.Flush()

	default:
		return fmt.Errorf("unsupported output format %q (must be json or text)", opts.OutputFormat)
	}
}
