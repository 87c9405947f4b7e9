package main

import (
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	codescanner "github.com/e7canasta/orion-care-sensor/modules/code-scanner"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/config"
)

func TestApp_ScannerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Scanner.Quality = "high"
	cfg.Scanner.Interval = 250 * time.Millisecond
	cfg.Scanner.AdaptiveInterval = true
	cfg.Detection.Native = false
	cfg.Detection.Formats = []string{"qr", "EAN-13"}
	cfg.Capture.RearKeywords = []string{"trasera"}

	a := &app{cfg: cfg}
	got, err := a.scannerConfig()
	require.NoError(t, err)

	assert.Equal(t, codescanner.QualityHigh, got.Quality)
	assert.Equal(t, 250*time.Millisecond, got.Interval)
	assert.True(t, got.Adaptive)
	assert.False(t, got.Backends.Native)
	assert.True(t, got.Backends.Software)
	assert.Len(t, got.Backends.Formats, 2)
	assert.Equal(t, []string{"trasera"}, got.Keywords.Rear)
	require.NoError(t, got.Validate())
}

func TestHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no device", fmt.Errorf("scan: start: %w", codescanner.ErrNoDeviceFound), "no camera found"},
		{"permission", &capture.UnavailableError{Attempts: 3, Err: errors.New("open: permission denied")}, "access denied"},
		{"busy", &capture.UnavailableError{Attempts: 3, Err: errors.New("Device or resource busy")}, "in use"},
		{"format", &capture.UnavailableError{Attempts: 3, Err: errors.New("streaming stopped, reason not-negotiated")}, "--quality low"},
		{"other", errors.New("boom"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want == "" {
				assert.Empty(t, hint(tt.err))
				return
			}
			assert.Contains(t, hint(tt.err), tt.want)
		})
	}
}

func writeQRPNG(t *testing.T, dir, name, content string) string {
	t.Helper()
	matrix, err := qrcode.NewQRCodeWriter().Encode(content, gozxing.BarcodeFormat_QR_CODE, 200, 200, nil)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, matrix))
	return path
}

func TestRunDecode(t *testing.T) {
	dir := t.TempDir()
	qr := writeQRPNG(t, dir, "code.png", "shelf-17")

	notImage := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("hello"), 0o644))

	a := &app{cfg: config.Default()}

	require.NoError(t, runDecode(a, []string{qr}))
	require.NoError(t, runDecode(a, []string{notImage, qr}), "one decodable file is enough")
	require.Error(t, runDecode(a, []string{notImage}))
	require.Error(t, runDecode(a, []string{filepath.Join(dir, "missing.png")}))
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	img, err := loadImage(writeQRPNG(t, dir, "code.png", "abc"))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
}
