package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	codescanner "github.com/e7canasta/orion-care-sensor/modules/code-scanner"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/gstcam"
)

// app holds state shared by every subcommand once the root pre-run has
// resolved the layered configuration.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "codescan",
		Short: "Scan barcodes and QR codes",
		Long: `codescan opens a camera, polls it for barcodes and QR codes and prints the
first new value it decodes. It can also decode still images and measure a
camera's frame delivery.

Settings are read from the config file, then CODESCAN_* environment
variables, then flags.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", fmt.Sprintf("Config file (default %s)", config.DefaultPath()))
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text, json")
	flags.String("device", "", "Camera device ID (default: best-ranked camera)")
	flags.String("quality", "medium", "Capture quality: low, medium, high")
	flags.Duration("interval", codescanner.DefaultInterval, "Polling interval (50ms-5s)")
	flags.StringSlice("formats", nil, "Restrict decoding to these symbologies (e.g. qr,ean13)")

	bind := map[string]string{
		"log.level":         "log-level",
		"log.format":        "log-format",
		"scanner.device_id": "device",
		"scanner.quality":   "quality",
		"scanner.interval":  "interval",
		"detection.formats": "formats",
	}
	for key, flag := range bind {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	root.RegisterFlagCompletionFunc("quality", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"low", "medium", "high"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newCamerasCommand(a),
		newScanCommand(a),
		newDecodeCommand(a),
		newProbeCommand(a),
		newConfigCommand(a),
	)
	return root
}

// load layers file, environment and flags, then configures logging.
func (a *app) load(cmd *cobra.Command) error {
	path, required := a.configPath, true
	if path == "" {
		path, required = config.DefaultPath(), false
	}
	if err := config.ReadFile(a.v, path, required); err != nil {
		return err
	}

	cfg, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	setupLogging(cfg.Log)
	slog.Debug("codescan: configuration loaded",
		"config_file", a.v.ConfigFileUsed(),
		"interval", cfg.Scanner.Interval,
		"quality", cfg.Scanner.Quality,
	)
	return nil
}

func setupLogging(lc config.LogConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// scannerConfig maps the file/env/flag configuration onto the library's.
func (a *app) scannerConfig() (codescanner.Config, error) {
	c := a.cfg

	quality, err := codescanner.ParseQuality(c.Scanner.Quality)
	if err != nil {
		return codescanner.Config{}, err
	}
	formats, err := codescanner.ParseFormats(c.Detection.Formats)
	if err != nil {
		return codescanner.Config{}, err
	}

	return codescanner.Config{
		Interval:    c.Scanner.Interval,
		Adaptive:    c.Scanner.AdaptiveInterval,
		Quality:     quality,
		OpenTimeout: c.Capture.OpenTimeout,
		Keywords:    c.Keywords(),
		Backends: codescanner.BackendOptions{
			Native:    c.Detection.Native,
			Software:  c.Detection.Software,
			Enhance:   c.Detection.Enhance,
			Heuristic: c.Detection.Heuristic,
			Formats:   formats,
		},
	}, nil
}

// newScanner creates a GStreamer-backed scanner.
func (a *app) newScanner() (*codescanner.Scanner, error) {
	cfg, err := a.scannerConfig()
	if err != nil {
		return nil, err
	}
	platform, err := gstcam.New()
	if err != nil {
		return nil, err
	}
	return codescanner.New(cfg, platform)
}
