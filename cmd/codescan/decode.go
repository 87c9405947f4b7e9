package main

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/spf13/cobra"
	_ "golang.org/x/image/webp"

	codescanner "github.com/e7canasta/orion-care-sensor/modules/code-scanner"
)

func newDecodeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <image>...",
		Short: "Decode codes from image files (jpeg, png, webp)",
		Example: `  codescan decode label.jpg
  codescan decode --formats ean13 shelf/*.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(a, args)
		},
	}
}

func runDecode(a *app, paths []string) error {
	cfg, err := a.scannerConfig()
	if err != nil {
		return err
	}
	dec, err := codescanner.NewDecoder(cfg.Backends)
	if err != nil {
		return err
	}

	failed := 0
	for _, path := range paths {
		img, err := loadImage(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", warnColor.Sprint("skip"), path, err)
			failed++
			continue
		}

		d, err := dec.Decode(img)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", faintColor.Sprint("none"), path, err)
			failed++
			continue
		}
		if len(paths) > 1 {
			fmt.Fprintf(os.Stdout, "%s: ", path)
		}
		printDetection(os.Stdout, d)
	}

	if failed == len(paths) {
		return fmt.Errorf("no code decoded from %d file(s)", failed)
	}
	return nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
