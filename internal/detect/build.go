package detect

import (
	"errors"
	"fmt"
	"log/slog"
)

// Options select the backends of a standard chain.
type Options struct {
	Native    bool
	Software  bool
	Enhance   bool // binarized retry of the software decoder
	Heuristic bool
	// Formats restricts the software decoder (empty = all)
	Formats []Format
}

// DefaultOptions enables every backend and format.
func DefaultOptions() Options {
	return Options{Native: true, Software: true, Enhance: true, Heuristic: true}
}

// Build assembles the standard precedence: native, software, binarized
// software, heuristic. A native decoder that is not compiled in is skipped.
func Build(opts Options) (*Chain, error) {
	var backends []Backend

	if opts.Native {
		nb, err := NewNativeBackend()
		switch {
		case errors.Is(err, ErrNativeUnavailable):
			slog.Info("detect: native decoder not available, skipping")
		case err != nil:
			return nil, fmt.Errorf("detect: native backend: %w", err)
		default:
			backends = append(backends, nb)
		}
	}

	if opts.Software || opts.Enhance {
		sb, err := NewSoftwareBackend(opts.Formats)
		if err != nil {
			return nil, err
		}
		if opts.Software {
			backends = append(backends, sb)
		}
		if opts.Enhance {
			backends = append(backends, sb.Binarized())
		}
	}

	if opts.Heuristic {
		backends = append(backends, NewHeuristicBackend())
	}

	chain, err := NewChain(backends...)
	if err != nil {
		return nil, err
	}

	slog.Info("detect: backend chain ready", "backends", chain.Backends())
	return chain, nil
}
