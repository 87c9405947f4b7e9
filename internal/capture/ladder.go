package capture

import (
	"fmt"
	"strings"
)

// Tier is a requested capture resolution.
type Tier int

// The zero Tier is unset and resolves to TierMedium.
const (
	// TierLow represents 640x480
	TierLow Tier = iota + 1
	// TierMedium represents 1280x720 (default)
	TierMedium
	// TierHigh represents 1920x1080
	TierHigh
)

// Dimensions returns the width and height for the tier
func (t Tier) Dimensions() (width, height int) {
	switch t {
	case TierLow:
		return 640, 480
	case TierHigh:
		return 1920, 1080
	default:
		return 1280, 720
	}
}

// String returns a human-readable string representation of the tier
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierHigh:
		return "high"
	default:
		return "medium"
	}
}

// ParseTier parses "low", "medium" or "high".
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "480p":
		return TierLow, nil
	case "", "medium", "720p":
		return TierMedium, nil
	case "high", "1080p":
		return TierHigh, nil
	default:
		return TierMedium, fmt.Errorf("invalid quality tier %q (must be low, medium or high)", s)
	}
}

// OrDefault returns TierMedium for the zero Tier and t otherwise.
func (t Tier) OrDefault() Tier {
	if t == 0 {
		return TierMedium
	}
	return t
}

// lower returns the tiers below t, highest first.
func (t Tier) lower() []Tier {
	var tiers []Tier
	for l := t.OrDefault() - 1; l >= TierLow; l-- {
		tiers = append(tiers, l)
	}
	return tiers
}

// Constraints describe one stream request. Zero values mean "unconstrained".
type Constraints struct {
	DeviceID string
	Width    int
	Height   int
	Facing   Facing
}

// String renders the constraints for logs.
func (c Constraints) String() string {
	dev := c.DeviceID
	if dev == "" {
		dev = "any"
	}
	res := "any"
	if c.Width > 0 && c.Height > 0 {
		res = fmt.Sprintf("%dx%d", c.Width, c.Height)
	}
	return fmt.Sprintf("device=%s resolution=%s facing=%s", dev, res, c.Facing)
}

// Rung is one step of the acquisition fallback ladder. Its attempts are
// tried in order; the first that opens wins the whole ladder.
type Rung struct {
	Name     string
	Attempts []Constraints
}

// Rung names, in ladder order.
const (
	RungExactDevice   = "exact-device"
	RungLowerTier     = "lower-tier"
	RungRearPreferred = "rear-preferred"
	RungAnyDevice     = "any-device"
	RungDefaults      = "defaults"
)

// BuildLadder returns the progressive fallback ladder for a request.
//
// target is the requested device, or the best-ranked device when the
// caller did not ask for one. ranked must already be ordered by Rank.
//  1. exact-device:   target at the requested tier
//  2. lower-tier:     target at every lower tier, highest first
//  3. rear-preferred: every other device at the requested tier, rear first
//  4. any-device:     every device without resolution constraint
//  5. defaults:       empty constraints (platform default source)
//
// Rungs without attempts are kept so logs show the full ladder.
func BuildLadder(target Device, ranked []Device, tier Tier) []Rung {
	tier = tier.OrDefault()
	w, h := tier.Dimensions()

	exact := Rung{Name: RungExactDevice}
	lower := Rung{Name: RungLowerTier}
	if target.ID != "" {
		exact.Attempts = append(exact.Attempts, Constraints{
			DeviceID: target.ID, Width: w, Height: h, Facing: target.Facing,
		})
		for _, t := range tier.lower() {
			lw, lh := t.Dimensions()
			lower.Attempts = append(lower.Attempts, Constraints{
				DeviceID: target.ID, Width: lw, Height: lh, Facing: target.Facing,
			})
		}
	}

	rear := Rung{Name: RungRearPreferred}
	for _, d := range ranked {
		if d.ID == target.ID {
			continue
		}
		rear.Attempts = append(rear.Attempts, Constraints{
			DeviceID: d.ID, Width: w, Height: h, Facing: d.Facing,
		})
	}

	any := Rung{Name: RungAnyDevice}
	for _, d := range ranked {
		any.Attempts = append(any.Attempts, Constraints{DeviceID: d.ID, Facing: d.Facing})
	}

	defaults := Rung{
		Name:     RungDefaults,
		Attempts: []Constraints{{}},
	}

	return []Rung{exact, lower, rear, any, defaults}
}
