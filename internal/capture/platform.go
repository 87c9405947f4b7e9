package capture

import "context"

// Platform is the camera-access API the capture source is built on.
//
// Implementations must guarantee:
//   - Devices() reports every video input currently enumerable
//   - Open() either returns a started stream or fails; it never returns a
//     half-open stream that still holds the device
//   - Open() gives up when ctx is cancelled
type Platform interface {
	// Devices enumerates video inputs in platform order.
	Devices(ctx context.Context) ([]Device, error)

	// Open acquires a stream matching the constraints.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is one open hardware grab.
//
// Implementations must guarantee:
//   - Snapshot() is safe to call from any goroutine
//   - Snapshot() returns ErrFrameNotReady until a frame was decoded
//   - Snapshot() returns a frame the caller owns (no shared buffers)
//   - Stop() is idempotent and releases the device
type Stream interface {
	// Snapshot returns the most recent decoded frame.
	Snapshot() (Frame, error)

	// Stop releases the device.
	Stop() error
}
