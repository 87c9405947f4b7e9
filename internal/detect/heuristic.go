package detect

import "github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"

const (
	// edgeThreshold is the minimum gray-level step between neighbouring
	// columns that counts as an edge
	edgeThreshold = 100
	// columnEdgeFraction is the share of rows that must carry an edge for a
	// column to look like a bar boundary
	columnEdgeFraction = 0.2
	// minBarColumns is the number of bar-boundary columns needed to call
	// the frame barcode-like
	minBarColumns = 15
)

// HeuristicBackend looks for bar-like vertical structure.
//
// It never decodes: the best it reports is KindPatternOnly, which lets the
// orchestrator tell "nothing in frame" apart from "something unreadable".
type HeuristicBackend struct{}

// NewHeuristicBackend creates the structure detector.
func NewHeuristicBackend() *HeuristicBackend {
	return &HeuristicBackend{}
}

// ID implements Backend.
func (HeuristicBackend) ID() BackendID {
	return BackendHeuristic
}

// Detect implements Backend.
func (HeuristicBackend) Detect(frame capture.Frame) (Result, error) {
	if BarColumns(frame) > minBarColumns {
		return Result{Kind: KindPatternOnly, Source: BackendHeuristic}, nil
	}
	return NoMatch(BackendHeuristic), nil
}

// BarColumns counts the columns x whose gray-level step to column x+1
// exceeds edgeThreshold on more than 20% of the rows.
func BarColumns(frame capture.Frame) int {
	if !frame.Valid() || frame.Width < 2 {
		return 0
	}
	w, h := frame.Width, frame.Height
	gray := Gray(frame)
	minEdges := float64(h) * columnEdgeFraction

	columns := 0
	for x := 0; x < w-1; x++ {
		edges := 0
		for y := 0; y < h; y++ {
			d := int(gray[y*w+x]) - int(gray[y*w+x+1])
			if d > edgeThreshold || d < -edgeThreshold {
				edges++
			}
		}
		if float64(edges) > minEdges {
			columns++
		}
	}
	return columns
}
