// Package vboard runs compiled Arduino-style sketches against a virtual
// board so firmware can be exercised without hardware.
//
// A Toolchain builds a Sketch once while its BuildLogReader streams the
// build output. A Board then starts the compiled sketch with a BoardConfig
// and returns a BoardHandle. The handle controls the session and exposes a
// BoardView whose accessors read and write the simulated pins, UART
// channels and frame buffers.
//
//	tc, log, err := vboard.NewToolchain(resourceDir)
//	if err != nil {
//		return err
//	}
//	go log.Drain(ctx, os.Stdout, 50*time.Millisecond)
//	if err := tc.Compile(sketch); err != nil {
//		return err
//	}
//
//	h, err := vboard.NewBoard().Start(cfg, sketch)
//	if err != nil {
//		return err
//	}
//	defer h.Stop()
//
// Lifecycle calls on a Board and its handle must come from one goroutine.
// Device accessors may be used from any goroutine; they fail with
// ErrSessionEnded once the session they belong to is gone.
package vboard
