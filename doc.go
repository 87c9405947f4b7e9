// Package codescanner turns a live camera feed into decoded barcode and
// QR values.
//
// A Scanner owns one camera session at a time. Start opens the camera
// through a progressive fallback ladder (requested device and quality,
// lower qualities, rear-facing cameras, any camera, platform defaults) and
// polls it at a fixed interval. Each frame goes through a chain of
// decoders (native, software, binarized software, bar-pattern heuristic);
// the first decoder that yields a value wins. A value equal to the last
// confirmed one is ignored, so a continuous scanner never reports the same
// code twice in a row. On detection the camera is released before the
// result is delivered.
//
// Example:
//
//	platform, err := gstcam.New()
//	if err != nil {
//		return err
//	}
//	s, err := codescanner.New(codescanner.DefaultConfig(), platform)
//	if err != nil {
//		return err
//	}
//	results, err := s.Start(ctx, "")
//	if err != nil {
//		return err
//	}
//	for d := range results {
//		fmt.Println(d.Format, d.Value)
//	}
//
// The camera platform is pluggable (see Platform); internal/gstcam provides
// a GStreamer implementation.
package codescanner
