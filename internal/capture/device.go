package capture

import (
	"sort"
	"strings"
)

// Facing is the sensor orientation guessed from a device label.
type Facing int

const (
	// FacingUnknown is an unlabeled or unrecognised camera
	FacingUnknown Facing = iota
	// FacingRear is a rear/environment-facing sensor (preferred for scanning)
	FacingRear
	// FacingFront is a user-facing sensor
	FacingFront
	// FacingVirtual is a software loopback camera (OBS, v4l2loopback, ...)
	FacingVirtual
)

// String returns a human-readable string representation of the facing hint
func (f Facing) String() string {
	switch f {
	case FacingRear:
		return "rear"
	case FacingFront:
		return "front"
	case FacingVirtual:
		return "virtual"
	default:
		return "unknown"
	}
}

// Device is an enumerated video input.
type Device struct {
	ID     string
	Label  string
	Facing Facing
}

// Keywords drive the label-based ranking. Matching is case-insensitive.
type Keywords struct {
	Virtual []string
	Rear    []string
	Front   []string
}

// DefaultKeywords returns the label keywords used when none are configured.
func DefaultKeywords() Keywords {
	return Keywords{
		Virtual: []string{"obs", "virtual", "loopback", "dummy"},
		Rear:    []string{"back", "rear", "environment", "world"},
		Front:   []string{"front", "user", "facetime", "selfie"},
	}
}

// Classify guesses the facing of a device from its label.
//
// Virtual wins over everything: a "Virtual Back Camera" is still a
// loopback device.
func (k Keywords) Classify(label string) Facing {
	l := strings.ToLower(label)
	switch {
	case containsAny(l, k.Virtual):
		return FacingVirtual
	case containsAny(l, k.Rear):
		return FacingRear
	case containsAny(l, k.Front):
		return FacingFront
	default:
		return FacingUnknown
	}
}

// Rank returns a copy of devices ordered for barcode scanning: rear first,
// then unknown, then front, virtual last. Enumeration order breaks ties.
func (k Keywords) Rank(devices []Device) []Device {
	ranked := make([]Device, len(devices))
	copy(ranked, devices)
	for i := range ranked {
		ranked[i].Facing = k.Classify(ranked[i].Label)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return facingRank(ranked[i].Facing) < facingRank(ranked[j].Facing)
	})
	return ranked
}

func facingRank(f Facing) int {
	switch f {
	case FacingRear:
		return 0
	case FacingUnknown:
		return 1
	case FacingFront:
		return 2
	default:
		return 3
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
