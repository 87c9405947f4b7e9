package detect

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
)

// BackendStats are the counters of one backend in a chain.
type BackendStats struct {
	ID       BackendID
	Calls    uint64
	Matches  uint64
	Patterns uint64
	Errors   uint64
	// TotalTime is the cumulative time spent in Detect
	TotalTime time.Duration
}

type member struct {
	backend Backend

	calls    atomic.Uint64
	matches  atomic.Uint64
	patterns atomic.Uint64
	errors   atomic.Uint64
	nanos    atomic.Int64
}

// Chain runs backends in fixed precedence order.
//
// The first backend that returns a decoded value wins and the rest are
// skipped for that frame. A PatternOnly result does not stop the chain but
// is reported when nothing decodes. Errors and panics are absorbed per
// backend.
type Chain struct {
	members []*member
}

// NewChain creates a chain; backends are tried in argument order.
func NewChain(backends ...Backend) (*Chain, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("detect: chain needs at least one backend")
	}
	c := &Chain{members: make([]*member, 0, len(backends))}
	for i, b := range backends {
		if b == nil {
			return nil, fmt.Errorf("detect: backend %d is nil", i)
		}
		c.members = append(c.members, &member{backend: b})
	}
	return c, nil
}

// Backends returns the backend IDs in precedence order.
func (c *Chain) Backends() []BackendID {
	ids := make([]BackendID, len(c.members))
	for i, m := range c.members {
		ids[i] = m.backend.ID()
	}
	return ids
}

// Detect runs the chain over one frame. It never fails: the worst outcome
// is a NoMatch result.
func (c *Chain) Detect(frame capture.Frame) Result {
	var pattern *Result

	for _, m := range c.members {
		res, err := m.run(frame)
		if err != nil {
			slog.Warn("detect: backend failed, continuing chain",
				"backend", string(m.backend.ID()),
				"trace_id", frame.TraceID,
				"error", err,
			)
			continue
		}

		switch {
		case res.Matched():
			res.Source = m.backend.ID()
			slog.Debug("detect: symbol decoded",
				"backend", string(res.Source),
				"format", string(res.Format),
				"trace_id", frame.TraceID,
			)
			return res
		case res.Kind == KindPatternOnly && pattern == nil:
			res.Source = m.backend.ID()
			pattern = &res
		}
	}

	if pattern != nil {
		return *pattern
	}
	return NoMatch("")
}

// Stats returns per-backend counters in precedence order.
//
// Thread-safe - uses atomic operations for counters.
func (c *Chain) Stats() []BackendStats {
	out := make([]BackendStats, len(c.members))
	for i, m := range c.members {
		out[i] = BackendStats{
			ID:        m.backend.ID(),
			Calls:     m.calls.Load(),
			Matches:   m.matches.Load(),
			Patterns:  m.patterns.Load(),
			Errors:    m.errors.Load(),
			TotalTime: time.Duration(m.nanos.Load()),
		}
	}
	return out
}

// run invokes one backend, turning errors and panics into ErrBackendDecode.
func (m *member) run(frame capture.Frame) (res Result, err error) {
	id := m.backend.ID()
	start := time.Now()
	m.calls.Add(1)

	defer func() {
		m.nanos.Add(int64(time.Since(start)))
		if r := recover(); r != nil {
			res, err = NoMatch(id), fmt.Errorf("%w: %s: panic: %v", ErrBackendDecode, id, r)
		}
		switch {
		case err != nil:
			m.errors.Add(1)
		case res.Matched():
			m.matches.Add(1)
		case res.Kind == KindPatternOnly:
			m.patterns.Add(1)
		}
	}()

	res, err = m.backend.Detect(frame)
	if err != nil {
		return NoMatch(id), fmt.Errorf("%w: %s: %w", ErrBackendDecode, id, err)
	}
	return res, nil
}
