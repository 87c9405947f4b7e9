package capture

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywords_Classify(t *testing.T) {
	kw := DefaultKeywords()

	tests := []struct {
		label string
		want  Facing
	}{
		{"Back Camera", FacingRear},
		{"camera2 1, facing environment", FacingRear},
		{"FaceTime HD Camera", FacingFront},
		{"Front Camera", FacingFront},
		{"OBS Virtual Camera", FacingVirtual},
		{"Virtual Back Camera", FacingVirtual},
		{"Dummy video device (0x0000)", FacingVirtual},
		{"HD Pro Webcam C920", FacingUnknown},
		{"", FacingUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, kw.Classify(tt.label))
		})
	}
}

func TestKeywords_Rank(t *testing.T) {
	devices := []Device{
		{ID: "obs", Label: "OBS Virtual Camera"},
		{ID: "front", Label: "Front Camera"},
		{ID: "usb-1", Label: "USB Camera"},
		{ID: "back", Label: "Back Camera"},
		{ID: "usb-2", Label: "USB Camera"},
	}

	ranked := DefaultKeywords().Rank(devices)

	ids := make([]string, len(ranked))
	for i, d := range ranked {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"back", "usb-1", "usb-2", "front", "obs"}, ids)

	// Input untouched
	assert.Equal(t, "obs", devices[0].ID)
	assert.Equal(t, FacingUnknown, devices[0].Facing)
}

func TestBuildLadder(t *testing.T) {
	target := Device{ID: "a", Facing: FacingRear}
	ranked := []Device{target, {ID: "b"}, {ID: "c", Facing: FacingFront}}

	ladder := BuildLadder(target, ranked, TierHigh)

	names := make([]string, len(ladder))
	for i, r := range ladder {
		names[i] = r.Name
	}
	assert.Equal(t, []string{
		RungExactDevice, RungLowerTier, RungRearPreferred, RungAnyDevice, RungDefaults,
	}, names)

	assert.Equal(t, []Constraints{{DeviceID: "a", Width: 1920, Height: 1080, Facing: FacingRear}}, ladder[0].Attempts)
	assert.Equal(t, []Constraints{
		{DeviceID: "a", Width: 1280, Height: 720, Facing: FacingRear},
		{DeviceID: "a", Width: 640, Height: 480, Facing: FacingRear},
	}, ladder[1].Attempts)
	assert.Equal(t, []Constraints{
		{DeviceID: "b", Width: 1920, Height: 1080, Facing: FacingUnknown},
		{DeviceID: "c", Width: 1920, Height: 1080, Facing: FacingFront},
	}, ladder[2].Attempts, "rear-preferred keeps each device's own facing")
	assert.Len(t, ladder[3].Attempts, 3)
	assert.Equal(t, []Constraints{{}}, ladder[4].Attempts)
}

func TestBuildLadder_NoDevices(t *testing.T) {
	ladder := BuildLadder(Device{}, nil, TierLow)

	total := 0
	for _, r := range ladder {
		total += len(r.Attempts)
	}
	assert.Equal(t, 1, total, "only the defaults rung is attemptable")
}

func TestBuildLadder_ZeroTier(t *testing.T) {
	target := Device{ID: "a", Facing: FacingRear}

	ladder := BuildLadder(target, []Device{target}, Tier(0))

	assert.Equal(t, []Constraints{{DeviceID: "a", Width: 1280, Height: 720, Facing: FacingRear}}, ladder[0].Attempts)
	assert.Equal(t, []Constraints{{DeviceID: "a", Width: 640, Height: 480, Facing: FacingRear}}, ladder[1].Attempts)
	assert.Equal(t, TierMedium, Tier(0).OrDefault())
	assert.Equal(t, TierLow, TierLow.OrDefault())
}

func TestParseTier(t *testing.T) {
	for in, want := range map[string]Tier{"low": TierLow, "": TierMedium, "720p": TierMedium, "HIGH": TierHigh} {
		got, err := ParseTier(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTier("4k")
	assert.Error(t, err)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorCategory
	}{
		{"Could not open device '/dev/video0' for reading and writing: Permission denied", ErrCategoryPermission},
		{"NotAllowedError: permission dismissed", ErrCategoryPermission},
		{"Device '/dev/video0' is busy", ErrCategoryBusy},
		{"Internal data stream error: not-negotiated", ErrCategoryFormat},
		{"Cannot identify device '/dev/video7'", ErrCategoryNotFound},
		{"something odd", ErrCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(errors.New(tt.msg)))
		})
	}
	assert.Equal(t, ErrCategoryUnknown, ClassifyError(nil))
}
