package detect

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
)

// stubBackend returns a fixed result (or error, or panic) and counts calls.
type stubBackend struct {
	id     BackendID
	result Result
	err    error
	panic  any
	calls  atomic.Int32
}

func (s *stubBackend) ID() BackendID { return s.id }

func (s *stubBackend) Detect(capture.Frame) (Result, error) {
	s.calls.Add(1)
	if s.panic != nil {
		panic(s.panic)
	}
	return s.result, s.err
}

func match(id BackendID, value string) *stubBackend {
	return &stubBackend{id: id, result: Result{Kind: KindMatch, Value: value, Format: FormatEAN13}}
}

func testFrame() capture.Frame {
	return capture.Frame{Width: 2, Height: 2, Pix: make([]byte, 12), TraceID: "t"}
}

func TestChain_Precedence(t *testing.T) {
	first := match("first", "111")
	second := match("second", "222")

	chain, err := NewChain(first, second)
	require.NoError(t, err)

	res := chain.Detect(testFrame())
	assert.Equal(t, "111", res.Value)
	assert.Equal(t, BackendID("first"), res.Source)
	assert.EqualValues(t, 0, second.calls.Load(), "later backends are skipped after a match")
}

func TestChain_ErrorContinues(t *testing.T) {
	tests := []struct {
		name   string
		faulty *stubBackend
	}{
		{"error", &stubBackend{id: "faulty", err: errors.New("corrupt bitmap")}},
		{"panic", &stubBackend{id: "faulty", panic: "index out of range"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := match("next", "42")
			chain, err := NewChain(tt.faulty, next)
			require.NoError(t, err)

			res := chain.Detect(testFrame())
			assert.Equal(t, "42", res.Value)

			stats := chain.Stats()
			assert.EqualValues(t, 1, stats[0].Errors)
			assert.EqualValues(t, 1, stats[1].Matches)
		})
	}
}

func TestChain_EmptyValueIsNotMatch(t *testing.T) {
	empty := &stubBackend{id: "empty", result: Result{Kind: KindMatch}}
	next := match("next", "7")

	chain, err := NewChain(empty, next)
	require.NoError(t, err)
	assert.Equal(t, "7", chain.Detect(testFrame()).Value)
}

func TestChain_PatternOnly(t *testing.T) {
	pattern := &stubBackend{id: "heuristic", result: Result{Kind: KindPatternOnly}}
	miss := &stubBackend{id: "miss", result: NoMatch("miss")}

	chain, err := NewChain(miss, pattern)
	require.NoError(t, err)

	res := chain.Detect(testFrame())
	assert.Equal(t, KindPatternOnly, res.Kind)
	assert.Equal(t, BackendID("heuristic"), res.Source)
	assert.Empty(t, res.Value)

	// A later decode still wins over an earlier pattern.
	chain, err = NewChain(pattern, match("late", "9"))
	require.NoError(t, err)
	assert.Equal(t, "9", chain.Detect(testFrame()).Value)
}

func TestChain_AllMiss(t *testing.T) {
	chain, err := NewChain(&stubBackend{id: "a"}, &stubBackend{id: "b", err: errors.New("boom")})
	require.NoError(t, err)

	res := chain.Detect(testFrame())
	assert.Equal(t, KindNoMatch, res.Kind)
	assert.False(t, res.Matched())
}

func TestNewChain_Validation(t *testing.T) {
	_, err := NewChain()
	assert.Error(t, err)

	_, err = NewChain(match("a", "1"), nil)
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	chain, err := Build(DefaultOptions())
	require.NoError(t, err)

	ids := chain.Backends()
	// native only present with the gocv build tag
	if ids[0] == BackendNative {
		ids = ids[1:]
	}
	assert.Equal(t, []BackendID{BackendSoftware, BackendEnhanced, BackendHeuristic}, ids)

	chain, err = Build(Options{Heuristic: true})
	require.NoError(t, err)
	assert.Equal(t, []BackendID{BackendHeuristic}, chain.Backends())

	_, err = Build(Options{})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"ean_13":      FormatEAN13,
		"EAN-13":      FormatEAN13,
		"ean13":       FormatEAN13,
		"QR":          FormatQRCode,
		"qr_code":     FormatQRCode,
		"Data Matrix": FormatDataMatrix,
		"code128":     FormatCode128,
		"rss14":       FormatRSS14,
		"RSS-14":      FormatRSS14,
		"GS1 DataBar": FormatRSS14,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("maxicode")
	assert.Error(t, err)

	assert.True(t, FormatUPCE.Linear())
	assert.True(t, FormatRSS14.Linear())
	assert.False(t, FormatQRCode.Linear())
}
