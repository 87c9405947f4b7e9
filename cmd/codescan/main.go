// Command codescan scans barcodes and QR codes from a camera or an image.
package main

import (
	"fmt"
	"os"
)

// Version information
const version = "v0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
