// Package engine implements the real-time audio transport core: a
// lifecycle-managed duplex engine that moves interleaved float32 PCM
// between application threads and a platform audio callback through
// lock-free SPSC ring buffers.
//
// Data flow:
//
//	application -> Send -> output ring -> [render callback] -> hardware
//	hardware -> [capture callback] -> input ring -> Receive -> application
//
// The engine owns one ring buffer per enabled direction, an optional
// resampler per direction when the application rate differs from the
// device rate, and a buffer pool backing the receive path. The platform
// side is abstracted behind the Backend interface; the real-time
// contract its callbacks must satisfy is documented on StreamHandler.
//
// Key invariants:
//   - Nothing on the render/capture path locks, allocates, or blocks.
//   - Underruns produce silence and a counter increment, never an error.
//   - Capture overflow drops the newest data, never blocks the callback.
//   - Ring buffers are created at Initialize and discarded at Stop; they
//     are never reused across a stop/start cycle.
package engine
